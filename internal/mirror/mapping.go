package mirror

import (
	"encoding/json"

	"github.com/docbridge/docbridge/internal/schema"
)

// Mapping is the search index field schema. An interior node carries
// Properties, one envelope per nesting level; a leaf carries the literal
// field mapping declared on the schema. Exactly one of the two is set.
type Mapping struct {
	Properties map[string]*Mapping
	Options    map[string]interface{}
}

// MarshalJSON renders interior nodes as {"properties": ...} and leaves as
// their literal options object.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	if m.Properties != nil {
		return json.Marshal(map[string]map[string]*Mapping{"properties": m.Properties})
	}
	return json.Marshal(m.Options)
}

// Plain converts the mapping into nested plain maps for backend request
// bodies.
func (m *Mapping) Plain() map[string]interface{} {
	if m == nil {
		return nil
	}
	if m.Properties == nil {
		return m.Options
	}
	props := make(map[string]interface{}, len(m.Properties))
	for name, child := range m.Properties {
		props[name] = child.Plain()
	}
	return map[string]interface{}{"properties": props}
}

// RenderMapping derives a search index mapping from a schema tree. Scalar
// fields with a declared index mapping are emitted verbatim; embedded
// sub-schemas nest recursively; references resolve against the population
// registry and nest the referenced model's own mapping. A declared mapping on
// a reference field wins over population. Returns nil when no field
// contributes.
//
// Mutually referencing models terminate: a model already being expanded on
// the active call path contributes nothing, so a back-reference unrolls at
// most one level.
func RenderMapping(tree schema.Tree, population map[string]schema.Tree) *Mapping {
	return renderMapping(tree, population, map[string]bool{})
}

func renderMapping(tree schema.Tree, population map[string]schema.Tree, active map[string]bool) *Mapping {
	props := make(map[string]*Mapping)

	for _, field := range tree {
		// Declared mapping wins, whatever the field's shape.
		if field.IndexMapping != nil {
			props[field.Name] = &Mapping{Options: field.IndexMapping}
			continue
		}

		switch field.Kind {
		case schema.KindEmbedded:
			if nested := renderMapping(field.Elements, population, active); nested != nil {
				props[field.Name] = nested
			}
		case schema.KindReference:
			refTree, ok := population[field.Ref]
			if !ok || active[field.Ref] {
				continue
			}
			active[field.Ref] = true
			nested := renderMapping(refTree, population, active)
			delete(active, field.Ref)
			if nested != nil {
				props[field.Name] = nested
			}
		}
	}

	if len(props) == 0 {
		return nil
	}
	return &Mapping{Properties: props}
}

// propertyNames returns the names of the tree's fields that contribute to its
// rendered mapping, in declaration order.
func propertyNames(tree schema.Tree, m *Mapping) []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Properties))
	for _, field := range tree {
		if _, ok := m.Properties[field.Name]; ok {
			names = append(names, field.Name)
		}
	}
	return names
}

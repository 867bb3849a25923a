package mirror

import "github.com/docbridge/docbridge/internal/schema"

// PopulationNode describes how one resolved reference field is populated at
// indexing time: which of the referenced model's fields to include, and how
// to populate the referenced model's own references in turn. Many marks a
// one-to-many field, which always renders as a list.
type PopulationNode struct {
	Model  string         `json:"model"`
	Many   bool           `json:"many,omitempty"`
	Fields []string       `json:"fields"`
	Paths  PopulationTree `json:"paths,omitempty"`
}

// PopulationTree maps reference field paths to their population plan. Built
// once per model registration and reused for every document of that model;
// replaced wholesale on re-registration.
type PopulationTree map[string]*PopulationNode

// RenderPopulationTree walks a schema tree and builds the fetch plan for its
// reference fields. Embedded fields are descended for their own references,
// producing entries under the dotted path; only references whose target
// resolves in the population registry contribute. The cycle guard matches
// RenderMapping: a model already on the active call path is not re-entered.
// Returns an empty tree when nothing resolves.
func RenderPopulationTree(tree schema.Tree, population map[string]schema.Tree) PopulationTree {
	out := PopulationTree{}
	renderPopulationTree(tree, population, "", map[string]bool{}, out)
	return out
}

func renderPopulationTree(tree schema.Tree, population map[string]schema.Tree, prefix string, active map[string]bool, out PopulationTree) {
	for _, field := range tree {
		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		switch field.Kind {
		case schema.KindEmbedded:
			renderPopulationTree(field.Elements, population, path, active, out)
		case schema.KindReference:
			refTree, ok := population[field.Ref]
			if !ok || active[field.Ref] {
				continue
			}
			active[field.Ref] = true
			node := &PopulationNode{
				Model:  field.Ref,
				Many:   field.Many,
				Fields: propertyNames(refTree, renderMapping(refTree, population, active)),
			}
			if paths := renderNestedTree(refTree, population, active); len(paths) > 0 {
				node.Paths = paths
			}
			delete(active, field.Ref)
			out[path] = node
		}
	}
}

// renderNestedTree renders a referenced model's own population tree, sharing
// the caller's active-model guard.
func renderNestedTree(tree schema.Tree, population map[string]schema.Tree, active map[string]bool) PopulationTree {
	out := PopulationTree{}
	renderPopulationTree(tree, population, "", active, out)
	return out
}

// Package schema defines the declared field structure of a model. Fields are
// classified exactly once, when configuration is loaded, into one of three
// shapes: scalar, reference or embedded. The renderers in internal/mirror
// switch on Kind instead of re-deriving the shape at every recursion level.
package schema

// Kind identifies the shape of a field descriptor.
type Kind int

const (
	// KindScalar is a primitive field: string, number, date, boolean, id.
	KindScalar Kind = iota
	// KindReference points at another model by identifier.
	KindReference
	// KindEmbedded is a sub-document embedded by value.
	KindEmbedded
)

// Field is a single field descriptor. Exactly one shape applies:
// scalar fields may carry Type and IndexMapping, reference fields carry
// Ref (and Many for one-to-many), embedded fields carry Elements.
type Field struct {
	Name string
	Kind Kind

	// Scalar.
	Type         string
	IndexMapping map[string]interface{}

	// Reference. A reference may also carry a declared IndexMapping,
	// in which case the declared mapping wins over population.
	Ref  string
	Many bool

	// Embedded.
	Elements Tree
}

// Tree is an ordered list of field descriptors. Order follows declaration
// order so that rendering is deterministic.
type Tree []Field

// Field returns the descriptor with the given name.
func (t Tree) Field(name string) (Field, bool) {
	for _, f := range t {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

package mirror

import "strings"

// Validators are pure predicates over untrusted input. Public entry points
// call them before any I/O and fail with InvalidArgumentError.

// ValidIndexName reports whether name is a non-empty lowercase string.
func ValidIndexName(name string) bool {
	return name != "" && name == strings.ToLower(name)
}

// ValidIndexNames reports whether every name in the list is a valid index
// name. An empty list passes vacuously; callers that need at least one index
// must check length themselves.
func ValidIndexNames(names []string) bool {
	for _, name := range names {
		if !ValidIndexName(name) {
			return false
		}
	}
	return true
}

// ValidSettings reports whether v is a plain key-value object. Arrays,
// primitives and nil are rejected; an empty object is accepted. Typed call
// sites get this shape from the compiler; the predicate guards values that
// arrive untyped, decoded from JSON or YAML.
func ValidSettings(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	return ok && m != nil
}

// ValidMapping applies the same shape rule as ValidSettings to a decoded
// mapping object.
func ValidMapping(v interface{}) bool {
	return ValidSettings(v)
}

// ValidType reports whether typ is a non-empty string.
func ValidType(typ string) bool {
	return typ != ""
}

// ValidID reports whether id is a non-empty string.
func ValidID(id string) bool {
	return id != ""
}

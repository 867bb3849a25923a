package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docbridge/docbridge/internal/store"
)

// RenderDocument builds the plain document to be indexed for a record. The
// paths in fieldPaths are copied from the record's snapshot, skipping absent
// values; a nil fieldPaths copies the whole snapshot. Every entry in the
// population tree is then resolved: the referenced record is fetched by the
// identifier stored at the entry's path and rendered with its own sub-plan,
// lists preserving reference order. A reference whose target no longer
// exists is omitted from the output rather than failing the render.
func RenderDocument(ctx context.Context, st store.Store, rec store.Record, fieldPaths []string, tree PopulationTree) (map[string]interface{}, error) {
	snapshot := rec.Snapshot()

	var doc map[string]interface{}
	if fieldPaths == nil {
		doc = snapshot
	} else {
		doc = make(map[string]interface{})
		for _, path := range fieldPaths {
			if value, ok := lookupPath(snapshot, path); ok {
				setPath(doc, path, value)
			}
		}
	}

	for path, node := range tree {
		raw, ok := lookupPath(snapshot, path)
		if !ok {
			continue
		}

		switch ids := raw.(type) {
		case []interface{}:
			rendered := make([]interface{}, 0, len(ids))
			for _, id := range ids {
				sub, ok, err := renderReference(ctx, st, id, node)
				if err != nil {
					return nil, err
				}
				if ok {
					rendered = append(rendered, sub)
				}
			}
			setPath(doc, path, rendered)
		default:
			sub, ok, err := renderReference(ctx, st, raw, node)
			if err != nil {
				return nil, err
			}
			switch {
			case ok && node.Many:
				// A one-to-many field stored as a single id still indexes
				// as a list.
				setPath(doc, path, []interface{}{sub})
			case ok:
				setPath(doc, path, sub)
			default:
				unsetPath(doc, path)
			}
		}
	}

	return doc, nil
}

// renderReference fetches and renders one referenced record. A missing
// target, or a value that is not an identifier, reports ok=false without an
// error.
func renderReference(ctx context.Context, st store.Store, rawID interface{}, node *PopulationNode) (map[string]interface{}, bool, error) {
	id, ok := rawID.(string)
	if !ok || id == "" {
		return nil, false, nil
	}

	target, err := st.FetchByID(ctx, node.Model, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch %s/%s: %w", node.Model, id, err)
	}

	sub, err := RenderDocument(ctx, st, target, node.Fields, node.Paths)
	if err != nil {
		return nil, false, err
	}
	return sub, true, nil
}

// lookupPath resolves a dotted path against nested maps.
func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	current := doc
	for i, seg := range segments {
		value, ok := current[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		current, ok = value.(map[string]interface{})
		if !ok {
			return nil, false
		}
	}
	return nil, false
}

// setPath writes a value at a dotted path, creating intermediate maps.
func setPath(doc map[string]interface{}, path string, value interface{}) {
	segments := strings.Split(path, ".")
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// unsetPath removes the value at a dotted path, leaving intermediate maps in
// place.
func unsetPath(doc map[string]interface{}, path string) {
	segments := strings.Split(path, ".")
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, segments[len(segments)-1])
}

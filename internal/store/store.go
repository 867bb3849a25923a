// Package store defines the document store the mirror syncs from. A store
// holds declared schemas, the models built from them, and fires explicit
// after-save / after-remove hooks. Hooks attach at the schema level: saving a
// record of any model built from a schema notifies every handler subscribed
// through any model sharing that schema. Subscribers receive the concrete
// record and decide for themselves whether its model concerns them.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/docbridge/docbridge/internal/schema"
)

// ErrNotFound reports a fetch of a record that does not exist.
var ErrNotFound = errors.New("record not found")

// ErrUnknownModel reports an operation against a model the store has no
// declaration for.
var ErrUnknownModel = errors.New("unknown model")

// Record is a live instance of a model.
type Record struct {
	ID    string
	Model string
	Data  map[string]interface{}
}

// Snapshot materializes a plain key-value copy of the record's data.
// Mutating the snapshot does not affect the stored record.
func (r Record) Snapshot() map[string]interface{} {
	return copyMap(r.Data)
}

// Hook is an after-save or after-remove handler.
type Hook func(Record)

// Store is the document store consumed by the mirror.
type Store interface {
	// Schema returns the declared schema tree for a model.
	Schema(model string) (schema.Tree, bool)

	// Save persists a record, assigning an id when it has none, and fires
	// after-save hooks for the record's schema.
	Save(ctx context.Context, rec Record) (Record, error)

	// Remove deletes a record and fires after-remove hooks for its schema.
	// Fails with ErrNotFound when the record does not exist.
	Remove(ctx context.Context, model, id string) error

	// FetchByID loads a record. Fails with ErrNotFound when absent.
	FetchByID(ctx context.Context, model, id string) (Record, error)

	// OnAfterSave subscribes to persisted records of the model's schema.
	// The returned function removes the subscription.
	OnAfterSave(model string, fn Hook) (func(), error)

	// OnAfterRemove subscribes to removed records of the model's schema.
	OnAfterRemove(model string, fn Hook) (func(), error)
}

// Hooks dispatches schema-level save and remove hooks. Both store
// implementations carry one; subscriptions are keyed by schema name, not
// model name, which is what makes hooks fire for every model sharing a
// schema.
type Hooks struct {
	mu     sync.RWMutex
	seq    int
	save   map[string]map[int]Hook
	remove map[string]map[int]Hook
}

// NewHooks creates an empty hook dispatcher.
func NewHooks() *Hooks {
	return &Hooks{
		save:   make(map[string]map[int]Hook),
		remove: make(map[string]map[int]Hook),
	}
}

// OnSave subscribes fn to saves of the given schema. The returned function
// removes the subscription.
func (h *Hooks) OnSave(schemaName string, fn Hook) func() {
	return h.subscribe(h.save, schemaName, fn)
}

// OnRemove subscribes fn to removes of the given schema.
func (h *Hooks) OnRemove(schemaName string, fn Hook) func() {
	return h.subscribe(h.remove, schemaName, fn)
}

// FireSave notifies save subscribers of the schema.
func (h *Hooks) FireSave(schemaName string, rec Record) {
	h.fire(h.save, schemaName, rec)
}

// FireRemove notifies remove subscribers of the schema.
func (h *Hooks) FireRemove(schemaName string, rec Record) {
	h.fire(h.remove, schemaName, rec)
}

func (h *Hooks) subscribe(m map[string]map[int]Hook, schemaName string, fn Hook) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	id := h.seq
	if m[schemaName] == nil {
		m[schemaName] = make(map[int]Hook)
	}
	m[schemaName][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(m[schemaName], id)
	}
}

func (h *Hooks) fire(m map[string]map[int]Hook, schemaName string, rec Record) {
	h.mu.RLock()
	hooks := make([]Hook, 0, len(m[schemaName]))
	for _, fn := range m[schemaName] {
		hooks = append(hooks, fn)
	}
	h.mu.RUnlock()

	for _, fn := range hooks {
		fn(rec)
	}
}

// copyMap deep-copies a plain document, descending into nested maps and
// slices.
func copyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

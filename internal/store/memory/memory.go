// Package memory implements the document store in process memory. The test
// suite and the memory store driver run against it.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/store"
)

// Store is an in-memory document store.
type Store struct {
	mu      sync.RWMutex
	schemas map[string]schema.Tree
	models  map[string]string // model name -> schema name
	data    map[string]map[string]store.Record

	hooks *store.Hooks
}

// New creates an empty store.
func New() *Store {
	return &Store{
		schemas: make(map[string]schema.Tree),
		models:  make(map[string]string),
		data:    make(map[string]map[string]store.Record),
		hooks:   store.NewHooks(),
	}
}

// DefineSchema declares a schema tree under a name.
func (s *Store) DefineSchema(name string, tree schema.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[name] = tree
}

// DefineModel declares a model built from a previously defined schema.
// Several models may share one schema.
func (s *Store) DefineModel(model, schemaName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemas[schemaName]; !ok {
		return store.ErrUnknownModel
	}
	s.models[model] = schemaName
	if s.data[model] == nil {
		s.data[model] = make(map[string]store.Record)
	}
	return nil
}

// Schema returns the schema tree declared for a model.
func (s *Store) Schema(model string) (schema.Tree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.models[model]
	if !ok {
		return nil, false
	}
	tree, ok := s.schemas[name]
	return tree, ok
}

// Save persists a record and fires after-save hooks for its schema.
func (s *Store) Save(ctx context.Context, rec store.Record) (store.Record, error) {
	s.mu.Lock()
	schemaName, ok := s.models[rec.Model]
	if !ok {
		s.mu.Unlock()
		return store.Record{}, store.ErrUnknownModel
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	stored := store.Record{ID: rec.ID, Model: rec.Model, Data: rec.Snapshot()}
	s.data[rec.Model][rec.ID] = stored
	s.mu.Unlock()

	s.hooks.FireSave(schemaName, stored)
	return stored, nil
}

// Remove deletes a record and fires after-remove hooks for its schema.
func (s *Store) Remove(ctx context.Context, model, id string) error {
	s.mu.Lock()
	schemaName, ok := s.models[model]
	if !ok {
		s.mu.Unlock()
		return store.ErrUnknownModel
	}
	rec, ok := s.data[model][id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.data[model], id)
	s.mu.Unlock()

	s.hooks.FireRemove(schemaName, rec)
	return nil
}

// FetchByID loads a record by model and id.
func (s *Store) FetchByID(ctx context.Context, model, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.models[model]; !ok {
		return store.Record{}, store.ErrUnknownModel
	}
	rec, ok := s.data[model][id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return store.Record{ID: rec.ID, Model: rec.Model, Data: rec.Snapshot()}, nil
}

// OnAfterSave subscribes to persisted records of the model's schema.
func (s *Store) OnAfterSave(model string, fn store.Hook) (func(), error) {
	s.mu.RLock()
	schemaName, ok := s.models[model]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrUnknownModel
	}
	return s.hooks.OnSave(schemaName, fn), nil
}

// OnAfterRemove subscribes to removed records of the model's schema.
func (s *Store) OnAfterRemove(model string, fn store.Hook) (func(), error) {
	s.mu.RLock()
	schemaName, ok := s.models[model]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrUnknownModel
	}
	return s.hooks.OnRemove(schemaName, fn), nil
}

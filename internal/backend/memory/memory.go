// Package memory implements an in-process search backend. It exists for the
// test suite: deterministic, inspectable, no network.
package memory

import (
	"context"
	"reflect"
	"sync"

	"github.com/docbridge/docbridge/internal/backend"
)

type index struct {
	settings map[string]interface{}
	mappings map[string]interface{}
	docs     map[string]map[string]interface{}
}

// Backend is an in-memory implementation of backend.Backend. Every bulk
// submission is recorded so tests can assert on batch boundaries and order.
type Backend struct {
	mu      sync.Mutex
	indexes map[string]*index

	bulkCalls [][]backend.BulkOp

	// BulkErr, when set, fails every bulk submission. The queued operations
	// are still consumed, matching the at-most-once contract of bulk mode.
	BulkErr error
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{indexes: make(map[string]*index)}
}

func docKey(typ, id string) string { return typ + ":" + id }

// IndexExists reports whether the named index exists.
func (b *Backend) IndexExists(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.indexes[name]
	return ok, nil
}

// CreateIndex creates an index, keeping settings and mappings for inspection.
func (b *Backend) CreateIndex(ctx context.Context, name string, settings, mappings map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.indexes[name]; ok {
		return &backend.IndexOperationError{Op: "create", Index: name, Reason: "index already exists"}
	}
	b.indexes[name] = &index{
		settings: settings,
		mappings: mappings,
		docs:     make(map[string]map[string]interface{}),
	}
	return nil
}

// Upsert writes a single document.
func (b *Backend) Upsert(ctx context.Context, indexName, typ, id string, doc map[string]interface{}) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexName]
	if !ok {
		return false, &backend.IndexNotFoundError{Index: indexName}
	}
	key := docKey(typ, id)
	_, existed := idx.docs[key]
	idx.docs[key] = doc
	return !existed, nil
}

// Delete removes a single document.
func (b *Backend) Delete(ctx context.Context, indexName, typ, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexName]
	if !ok {
		return &backend.IndexNotFoundError{Index: indexName}
	}
	key := docKey(typ, id)
	if _, ok := idx.docs[key]; !ok {
		return &backend.DocumentNotFoundError{Index: indexName, Type: typ, ID: id}
	}
	delete(idx.docs, key)
	return nil
}

// Get fetches a single document body.
func (b *Backend) Get(ctx context.Context, indexName, typ, id string) (map[string]interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexName]
	if !ok {
		return nil, &backend.IndexNotFoundError{Index: indexName}
	}
	doc, ok := idx.docs[docKey(typ, id)]
	if !ok {
		return nil, &backend.DocumentNotFoundError{Index: indexName, Type: typ, ID: id}
	}
	return doc, nil
}

// Bulk applies the operations in order as one submission.
func (b *Backend) Bulk(ctx context.Context, ops []backend.BulkOp) (*backend.BulkResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bulkCalls = append(b.bulkCalls, append([]backend.BulkOp(nil), ops...))
	if b.BulkErr != nil {
		return nil, b.BulkErr
	}

	result := &backend.BulkResult{}
	for _, op := range ops {
		idx, ok := b.indexes[op.Index]
		if !ok {
			result.Errors = true
			result.Items = append(result.Items, map[string]interface{}{
				op.Op: map[string]interface{}{"_id": op.ID, "status": 404},
			})
			continue
		}
		key := docKey(op.Type, op.ID)
		switch op.Op {
		case backend.OpIndex:
			idx.docs[key] = op.Doc
		case backend.OpDelete:
			delete(idx.docs, key)
		}
		result.Items = append(result.Items, map[string]interface{}{
			op.Op: map[string]interface{}{"_id": op.ID, "status": 200},
		})
	}
	return result, nil
}

// Search supports match, term and match_all queries over top-level fields.
// That is enough surface for the round-trip tests; query planning belongs to
// the real backend.
func (b *Backend) Search(ctx context.Context, indexName string, query map[string]interface{}) (*backend.SearchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexName]
	if !ok {
		return nil, &backend.IndexNotFoundError{Index: indexName}
	}

	var hits []backend.SearchHit
	for key, doc := range idx.docs {
		if matches(query, doc) {
			hits = append(hits, backend.SearchHit{
				Index:  indexName,
				ID:     key[lastColon(key)+1:],
				Type:   key[:lastColon(key)],
				Score:  1,
				Source: doc,
			})
		}
	}
	return &backend.SearchResult{Hits: backend.SearchHits{Total: len(hits), Hits: hits}}, nil
}

// BulkCalls returns a copy of every recorded bulk submission.
func (b *Backend) BulkCalls() [][]backend.BulkOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := make([][]backend.BulkOp, len(b.bulkCalls))
	copy(calls, b.bulkCalls)
	return calls
}

// DocCount returns the number of documents held by an index.
func (b *Backend) DocCount(indexName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexName]
	if !ok {
		return 0
	}
	return len(idx.docs)
}

// Mappings returns the mappings the index was created with.
func (b *Backend) Mappings(indexName string) map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx, ok := b.indexes[indexName]
	if !ok {
		return nil
	}
	return idx.mappings
}

func matches(query map[string]interface{}, doc map[string]interface{}) bool {
	if _, ok := query["match_all"]; ok || len(query) == 0 {
		return true
	}
	for _, kind := range []string{"match", "term"} {
		clause, ok := query[kind].(map[string]interface{})
		if !ok {
			continue
		}
		for field, want := range clause {
			got, present := doc[field]
			if !present || !reflect.DeepEqual(got, want) {
				return false
			}
		}
		return true
	}
	return false
}

func lastColon(key string) int {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return i
		}
	}
	return -1
}

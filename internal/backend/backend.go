// Package backend defines the search backend the mirror writes to. The
// backend is an opaque asynchronous client: implementations translate their
// native not-found and operation failures into the typed errors in this
// package at the boundary.
package backend

import "context"

// Bulk operation kinds.
const (
	OpIndex  = "index"
	OpDelete = "delete"
)

// BulkOp is a single queued index-or-delete intent. Doc is nil for deletes.
type BulkOp struct {
	Op    string
	Index string
	Type  string
	ID    string
	Doc   map[string]interface{}
}

// BulkResult reports the outcome of a bulk submission.
type BulkResult struct {
	Took   int                      `json:"took"`
	Errors bool                     `json:"errors"`
	Items  []map[string]interface{} `json:"items"`
}

// SearchHit is a single matching document.
type SearchHit struct {
	Index  string                 `json:"_index"`
	Type   string                 `json:"_type,omitempty"`
	ID     string                 `json:"_id"`
	Score  float64                `json:"_score"`
	Source map[string]interface{} `json:"_source"`
}

// SearchHits is the hit envelope of a search response.
type SearchHits struct {
	Total int         `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// SearchResult is the response to a search query.
type SearchResult struct {
	Took int        `json:"took"`
	Hits SearchHits `json:"hits"`
}

// Backend is the search backend client consumed by the mirror.
type Backend interface {
	// IndexExists reports whether the named index exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// CreateIndex creates an index with the given settings and mappings.
	CreateIndex(ctx context.Context, index string, settings, mappings map[string]interface{}) error

	// Upsert writes a single document, returning true when it was created
	// rather than updated.
	Upsert(ctx context.Context, index, typ, id string, doc map[string]interface{}) (bool, error)

	// Delete removes a single document. A missing document fails with
	// DocumentNotFoundError.
	Delete(ctx context.Context, index, typ, id string) error

	// Get fetches a single document body. A missing document fails with
	// DocumentNotFoundError.
	Get(ctx context.Context, index, typ, id string) (map[string]interface{}, error)

	// Bulk submits many operations as one request, pairs in the given order.
	Bulk(ctx context.Context, ops []BulkOp) (*BulkResult, error)

	// Search runs a query against an index.
	Search(ctx context.Context, index string, query map[string]interface{}) (*SearchResult, error)
}

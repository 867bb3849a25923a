// Package elastic implements the search backend against an Elasticsearch
// cluster using the official v8 client.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/docbridge/docbridge/internal/backend"
)

// Config holds connection settings for the Elasticsearch client.
type Config struct {
	Addresses []string
	Username  string
	Password  string
}

// Client wraps the Elasticsearch client behind the backend interface.
// Elasticsearch 8 removed mapping types, so the type argument carried by the
// backend contract is not part of the request routing here; documents of all
// types share the index namespace.
type Client struct {
	es *elasticsearch.Client
}

// New creates a backend client for the given cluster.
func New(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// IndexExists reports whether the named index exists.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("index exists check failed: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, responseError(res, "exists", index)
	}
}

// CreateIndex creates an index with the given settings and mappings.
func (c *Client) CreateIndex(ctx context.Context, index string, settings, mappings map[string]interface{}) error {
	body := map[string]interface{}{}
	if len(settings) > 0 {
		body["settings"] = settings
	}
	if len(mappings) > 0 {
		body["mappings"] = mappings
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("failed to encode index body: %w", err)
	}

	res, err := c.es.Indices.Create(index,
		c.es.Indices.Create.WithBody(&buf),
		c.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "create", index)
	}
	return nil
}

// Upsert writes a single document by id.
func (c *Client) Upsert(ctx context.Context, index, typ, id string, doc map[string]interface{}) (bool, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode document: %w", err)
	}

	res, err := c.es.Index(index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(id),
		c.es.Index.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return false, &backend.IndexNotFoundError{Index: index}
	}
	if res.IsError() {
		return false, responseError(res, "index", index)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode index response: %w", err)
	}
	return out.Result == "created", nil
}

// Delete removes a single document by id.
func (c *Client) Delete(ctx context.Context, index, typ, id string) error {
	res, err := c.es.Delete(index, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return &backend.DocumentNotFoundError{Index: index, Type: typ, ID: id}
	}
	if res.IsError() {
		return responseError(res, "delete", index)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode delete response: %w", err)
	}
	if out.Result != "deleted" {
		return &backend.IndexOperationError{Op: "delete", Index: index, Reason: out.Result}
	}
	return nil
}

// Get fetches a single document body by id.
func (c *Client) Get(ctx context.Context, index, typ, id string) (map[string]interface{}, error) {
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, &backend.DocumentNotFoundError{Index: index, Type: typ, ID: id}
	}
	if res.IsError() {
		return nil, responseError(res, "get", index)
	}

	var out struct {
		Source map[string]interface{} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode get response: %w", err)
	}
	return out.Source, nil
}

// Bulk submits the operations as one newline-delimited request, preserving
// queue order as alternating action and document lines.
func (c *Client) Bulk(ctx context.Context, ops []backend.BulkOp) (*backend.BulkResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, op := range ops {
		action := map[string]interface{}{
			op.Op: map[string]interface{}{
				"_index": op.Index,
				"_id":    op.ID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if op.Op == backend.OpIndex {
			if err := enc.Encode(op.Doc); err != nil {
				return nil, fmt.Errorf("failed to encode bulk document: %w", err)
			}
		}
	}

	res, err := c.es.Bulk(&buf, c.es.Bulk.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res, "bulk", "")
	}

	var result backend.BulkResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	return &result, nil
}

// Search runs a query against an index.
func (c *Client) Search(ctx context.Context, index string, query map[string]interface{}) (*backend.SearchResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]interface{}{"query": query}); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(&buf),
		c.es.Search.WithTrackTotalHits(true))
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, &backend.IndexNotFoundError{Index: index}
	}
	if res.IsError() {
		return nil, responseError(res, "search", index)
	}

	var raw struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []backend.SearchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return &backend.SearchResult{
		Took: raw.Took,
		Hits: backend.SearchHits{
			Total: raw.Hits.Total.Value,
			Hits:  raw.Hits.Hits,
		},
	}, nil
}

// responseError turns a non-2xx response into an operation error.
func responseError(res *esapi.Response, op, index string) error {
	body, _ := io.ReadAll(res.Body)
	return &backend.IndexOperationError{
		Op:     op,
		Index:  index,
		Reason: fmt.Sprintf("[%s] %s", res.Status(), body),
	}
}

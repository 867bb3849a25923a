// Package mirror keeps a document store's records synchronized into a search
// index. Models register once at startup: their schema tree is rendered into
// an index mapping and a population plan, and the store's after-save and
// after-remove hooks are subscribed. From then on every save of a registered
// model re-indexes the rendered document, and every remove deletes it, either
// immediately or through the bulk buffer.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/docbridge/docbridge/internal/backend"
	"github.com/docbridge/docbridge/internal/schema"
	"github.com/docbridge/docbridge/internal/stats"
	"github.com/docbridge/docbridge/internal/store"
)

// ErrNotConnected reports an indexing operation before Connect.
var ErrNotConnected = errors.New("mirror: not connected to a search backend")

// Transform rewrites a rendered document before it is indexed.
type Transform func(doc map[string]interface{}, rec store.Record) map[string]interface{}

// ModelOptions tunes the registration of one model.
type ModelOptions struct {
	// Mapping, when set, replaces the mapping rendered from the schema.
	Mapping map[string]interface{}
	// Transform, when set, runs on every rendered document.
	Transform Transform
	// Index overrides the mirror's default index for this model.
	Index string
	// UseBulk routes this model's writes through the bulk buffer.
	// Bulk mode trades per-document durability for throughput: a failed
	// batch surfaces on the error observer, not to the save path.
	UseBulk bool
}

// Config tunes a Mirror.
type Config struct {
	Bulk BulkConfig
	// OnError observes asynchronous failures: hook-driven renders and
	// writes, and bulk flush errors. Defaults to logging.
	OnError func(error)
}

type registeredModel struct {
	name      string
	mapping   *Mapping
	override  map[string]interface{}
	popTree   PopulationTree
	fields    []string
	transform Transform
	index     string
	useBulk   bool
	unsub     []func()
}

// Mirror is the registry and orchestrator. Construct one per store with New;
// instances are independent, each owning its registry and bulk queue.
type Mirror struct {
	store   store.Store
	stats   *stats.Tracker
	bulkCfg BulkConfig
	onError func(error)

	mu         sync.RWMutex
	backend    backend.Backend
	bulk       *BulkBuffer
	index      string
	settings   map[string]interface{}
	models     map[string]*registeredModel
	population map[string]schema.Tree
}

// New creates a Mirror over a document store.
func New(st store.Store, cfg Config) *Mirror {
	return &Mirror{
		store:      st,
		stats:      stats.NewTracker(),
		bulkCfg:    cfg.Bulk,
		onError:    cfg.OnError,
		models:     make(map[string]*registeredModel),
		population: make(map[string]schema.Tree),
	}
}

// Stats exposes the per-model sync counters.
func (m *Mirror) Stats() *stats.Tracker { return m.stats }

// Connect binds the mirror to a search backend and default index, creating
// the index with the merged mappings and settings when it does not exist.
// Expected to run during startup, before steady-state traffic.
func (m *Mirror) Connect(ctx context.Context, be backend.Backend, index string, settings map[string]interface{}) error {
	if !ValidIndexName(index) {
		return &InvalidArgumentError{Code: CodeIndexName}
	}

	m.mu.Lock()
	m.backend = be
	m.index = index
	m.settings = settings
	cfg := m.bulkCfg
	cfg.OnError = m.emitError
	m.bulk = NewBulkBuffer(be, cfg)
	mappings := m.mergedMappingsLocked()
	m.mu.Unlock()

	exists, err := be.IndexExists(ctx, index)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", index, err)
	}
	if !exists {
		if err := be.CreateIndex(ctx, index, settings, mappings); err != nil {
			return fmt.Errorf("failed to create index %s: %w", index, err)
		}
	}
	return nil
}

// RegisterModel opts a model into automatic indexing. The schema tree is
// rendered once, against the population models registered so far; hooks are
// attached only after all validation passes, so a failed registration leaves
// no partial state. Re-registering a model replaces its entry and hooks.
func (m *Mirror) RegisterModel(model string, opts *ModelOptions) error {
	if opts == nil {
		opts = &ModelOptions{}
	}
	if model == "" {
		return &InvalidArgumentError{Code: CodeModel}
	}
	if opts.Index != "" && !ValidIndexName(opts.Index) {
		return &InvalidArgumentError{Code: CodeIndexName}
	}

	tree, ok := m.store.Schema(model)
	if !ok {
		return &InvalidArgumentError{Code: CodeModel}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &registeredModel{
		name:      model,
		override:  opts.Mapping,
		popTree:   RenderPopulationTree(tree, m.population),
		transform: opts.Transform,
		index:     opts.Index,
		useBulk:   opts.UseBulk,
	}
	if opts.Mapping != nil {
		entry.fields = overrideFieldNames(opts.Mapping)
	} else {
		entry.mapping = RenderMapping(tree, m.population)
		entry.fields = propertyNames(tree, entry.mapping)
	}

	unsubSave, err := m.store.OnAfterSave(model, m.afterSave)
	if err != nil {
		return fmt.Errorf("failed to attach save hook for %s: %w", model, err)
	}
	unsubRemove, err := m.store.OnAfterRemove(model, m.afterRemove)
	if err != nil {
		unsubSave()
		return fmt.Errorf("failed to attach remove hook for %s: %w", model, err)
	}
	entry.unsub = []func(){unsubSave, unsubRemove}

	if old, ok := m.models[model]; ok {
		for _, unsub := range old.unsub {
			unsub()
		}
	}
	m.models[model] = entry
	m.stats.Register(model)
	return nil
}

// RegisterPopulation opts a model in as a resolution target for other
// models' reference fields. Population models are not indexed themselves
// unless also registered with RegisterModel. Models registered before this
// call keep their already-rendered mapping; re-register them to pick the
// population up.
func (m *Mirror) RegisterPopulation(model string) error {
	tree, ok := m.store.Schema(model)
	if !ok {
		return &InvalidArgumentError{Code: CodeModel}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.population[model] = tree
	return nil
}

// Unregister detaches a model's hooks and drops its entry.
func (m *Mirror) Unregister(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.models[model]; ok {
		for _, unsub := range entry.unsub {
			unsub()
		}
		delete(m.models, model)
	}
}

// Mappings returns the merged mapping of all registered models, keyed by
// model name.
func (m *Mirror) Mappings() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mergedMappingsLocked()
}

func (m *Mirror) mergedMappingsLocked() map[string]interface{} {
	merged := make(map[string]interface{})
	for name, entry := range m.models {
		switch {
		case entry.override != nil:
			merged[name] = entry.override
		case entry.mapping != nil:
			merged[name] = entry.mapping.Plain()
		}
	}
	return merged
}

// IndexDoc writes one document. With useBulk the operation is queued for a
// batched flush and the write is at-most-once: the returned nil only means
// "queued", and a later flush failure surfaces on the error observer. An
// immediate write (useBulk false) reports whether the document was created.
// Mixing both modes for the same id carries no ordering guarantee between
// the immediate write and queued operations.
func (m *Mirror) IndexDoc(ctx context.Context, id string, doc map[string]interface{}, typ, index string, useBulk bool) (bool, error) {
	if !ValidID(id) {
		return false, &InvalidArgumentError{Code: CodeID}
	}
	if !ValidType(typ) {
		return false, &InvalidArgumentError{Code: CodeType}
	}
	if !ValidIndexName(index) {
		return false, &InvalidArgumentError{Code: CodeIndexName}
	}
	if doc == nil {
		return false, &InvalidArgumentError{Code: CodeDocument}
	}

	m.mu.RLock()
	be, bulk := m.backend, m.bulk
	m.mu.RUnlock()
	if be == nil {
		return false, ErrNotConnected
	}

	if !useBulk {
		return be.Upsert(ctx, index, typ, id, doc)
	}

	op := backend.BulkOp{Op: backend.OpIndex, Index: index, Type: typ, ID: id, Doc: doc}
	return false, bulk.Enqueue(op)
}

// DeleteDoc removes one document immediately. Deletes skip population and
// the bulk queue.
func (m *Mirror) DeleteDoc(ctx context.Context, id, typ, index string) error {
	if !ValidID(id) {
		return &InvalidArgumentError{Code: CodeID}
	}
	if !ValidType(typ) {
		return &InvalidArgumentError{Code: CodeType}
	}
	if !ValidIndexName(index) {
		return &InvalidArgumentError{Code: CodeIndexName}
	}

	m.mu.RLock()
	be := m.backend
	m.mu.RUnlock()
	if be == nil {
		return ErrNotConnected
	}
	return be.Delete(ctx, index, typ, id)
}

// GetDoc fetches one indexed document body.
func (m *Mirror) GetDoc(ctx context.Context, id, typ, index string) (map[string]interface{}, error) {
	m.mu.RLock()
	be := m.backend
	m.mu.RUnlock()
	if be == nil {
		return nil, ErrNotConnected
	}
	return be.Get(ctx, index, typ, id)
}

// Search runs a query against the mirror's default index.
func (m *Mirror) Search(ctx context.Context, query map[string]interface{}) (*backend.SearchResult, error) {
	m.mu.RLock()
	be, index := m.backend, m.index
	m.mu.RUnlock()
	if be == nil {
		return nil, ErrNotConnected
	}
	return be.Search(ctx, index, query)
}

// Flush drains the bulk queue.
func (m *Mirror) Flush(ctx context.Context) {
	m.mu.RLock()
	bulk := m.bulk
	m.mu.RUnlock()
	if bulk != nil {
		bulk.Close(ctx)
	}
}

// afterSave runs on every persisted record of a registered model's schema.
// The hook fires for all models sharing the schema; records of unregistered
// models are ignored here.
func (m *Mirror) afterSave(rec store.Record) {
	m.mu.RLock()
	entry, ok := m.models[rec.Model]
	index := m.index
	m.mu.RUnlock()
	if !ok {
		return
	}
	if entry.index != "" {
		index = entry.index
	}

	ctx := context.Background()
	doc, err := RenderDocument(ctx, m.store, rec, entry.fields, entry.popTree)
	if err != nil {
		m.stats.IncRenderFailure(rec.Model)
		m.emitError(fmt.Errorf("failed to render %s/%s: %w", rec.Model, rec.ID, err))
		return
	}
	if entry.transform != nil {
		doc = entry.transform(doc, rec)
	}

	if _, err := m.IndexDoc(ctx, rec.ID, doc, rec.Model, index, entry.useBulk); err != nil {
		m.stats.IncRenderFailure(rec.Model)
		m.emitError(fmt.Errorf("failed to index %s/%s: %w", rec.Model, rec.ID, err))
		return
	}
	m.stats.IncIndexed(rec.Model)
}

// afterRemove deletes the indexed document of a removed record.
func (m *Mirror) afterRemove(rec store.Record) {
	m.mu.RLock()
	entry, ok := m.models[rec.Model]
	index := m.index
	m.mu.RUnlock()
	if !ok {
		return
	}
	if entry.index != "" {
		index = entry.index
	}

	if err := m.DeleteDoc(context.Background(), rec.ID, rec.Model, index); err != nil {
		m.emitError(fmt.Errorf("failed to delete %s/%s: %w", rec.Model, rec.ID, err))
		return
	}
	m.stats.IncRemoved(rec.Model)
}

func (m *Mirror) emitError(err error) {
	if m.onError != nil {
		m.onError(err)
		return
	}
	log.Printf("mirror: %v", err)
}

// overrideFieldNames lists the top-level property names of a static mapping
// override, sorted for determinism.
func overrideFieldNames(mapping map[string]interface{}) []string {
	props, ok := mapping["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

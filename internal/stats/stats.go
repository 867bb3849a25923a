// Package stats tracks per-model sync counters. State is in-memory only and
// rebuilt on process start, like the registry and the bulk buffer it
// describes; the status API reads it.
package stats

import (
	"sync"
	"time"
)

// ModelStats is the sync state of one registered model.
type ModelStats struct {
	Model            string    `json:"model"`
	DocumentsIndexed int64     `json:"documentsIndexed"`
	DocumentsRemoved int64     `json:"documentsRemoved"`
	RenderFailures   int64     `json:"renderFailures"`
	LastIndexed      time.Time `json:"lastIndexed,omitempty"`
}

// Tracker holds counters for all registered models.
type Tracker struct {
	mu     sync.RWMutex
	models map[string]*ModelStats
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{models: make(map[string]*ModelStats)}
}

func (t *Tracker) entry(model string) *ModelStats {
	if s, ok := t.models[model]; ok {
		return s
	}
	s := &ModelStats{Model: model}
	t.models[model] = s
	return s
}

// Register ensures a model has an entry, so status endpoints list it before
// any document flows.
func (t *Tracker) Register(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(model)
}

// IncIndexed counts a rendered document handed to the backend.
func (t *Tracker) IncIndexed(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.entry(model)
	s.DocumentsIndexed++
	s.LastIndexed = time.Now()
}

// IncRemoved counts a delete issued for a removed record.
func (t *Tracker) IncRemoved(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(model).DocumentsRemoved++
}

// IncRenderFailure counts a save hook whose render or write failed.
func (t *Tracker) IncRenderFailure(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(model).RenderFailures++
}

// Get returns a copy of one model's stats.
func (t *Tracker) Get(model string) (ModelStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.models[model]
	if !ok {
		return ModelStats{}, false
	}
	return *s, true
}

// All returns a copy of every model's stats.
func (t *Tracker) All() map[string]ModelStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]ModelStats, len(t.models))
	for model, s := range t.models {
		out[model] = *s
	}
	return out
}

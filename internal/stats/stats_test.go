package stats

import (
	"sync"
	"testing"
)

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker()
	tr.Register("Cat")

	s, ok := tr.Get("Cat")
	if !ok {
		t.Fatal("Expected registered model to have an entry")
	}
	if s.DocumentsIndexed != 0 || s.DocumentsRemoved != 0 {
		t.Errorf("Expected zeroed counters, got %+v", s)
	}

	tr.IncIndexed("Cat")
	tr.IncIndexed("Cat")
	tr.IncRemoved("Cat")
	tr.IncRenderFailure("Cat")

	s, _ = tr.Get("Cat")
	if s.DocumentsIndexed != 2 {
		t.Errorf("Expected 2 indexed, got %d", s.DocumentsIndexed)
	}
	if s.DocumentsRemoved != 1 {
		t.Errorf("Expected 1 removed, got %d", s.DocumentsRemoved)
	}
	if s.RenderFailures != 1 {
		t.Errorf("Expected 1 render failure, got %d", s.RenderFailures)
	}
	if s.LastIndexed.IsZero() {
		t.Error("Expected LastIndexed to be set")
	}
}

func TestTrackerUnknownModel(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Get("Ghost"); ok {
		t.Error("Expected no entry for unknown model")
	}
}

func TestTrackerAll(t *testing.T) {
	tr := NewTracker()
	tr.IncIndexed("Cat")
	tr.IncRemoved("Dog")

	all := tr.All()
	if len(all) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(all))
	}
	if all["Cat"].DocumentsIndexed != 1 {
		t.Errorf("Expected Cat to have 1 indexed, got %d", all["Cat"].DocumentsIndexed)
	}

	// All returns copies, not live entries.
	entry := all["Cat"]
	entry.DocumentsIndexed = 99
	if got, _ := tr.Get("Cat"); got.DocumentsIndexed != 1 {
		t.Error("Expected All to return copies")
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.IncIndexed("Cat")
			}
		}()
	}
	wg.Wait()

	s, _ := tr.Get("Cat")
	if s.DocumentsIndexed != 1000 {
		t.Errorf("Expected 1000 indexed, got %d", s.DocumentsIndexed)
	}
}

package mirror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/docbridge/docbridge/internal/backend"
	memorybackend "github.com/docbridge/docbridge/internal/backend/memory"
)

func indexOp(id string) backend.BulkOp {
	return backend.BulkOp{
		Op:    backend.OpIndex,
		Index: "test-index",
		Type:  "doc",
		ID:    id,
		Doc:   map[string]interface{}{"id": id},
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestBulkBufferFlushesAtSize(t *testing.T) {
	be := memorybackend.New()
	buf := NewBulkBuffer(be, BulkConfig{Size: 10, Timeout: time.Minute})

	for i := 0; i < 9; i++ {
		if err := buf.Enqueue(indexOp(fmt.Sprintf("doc-%d", i))); err != nil {
			t.Fatalf("Failed to enqueue op %d: %v", i, err)
		}
	}
	if calls := be.BulkCalls(); len(calls) != 0 {
		t.Fatalf("Expected no flush below size threshold, got %d calls", len(calls))
	}
	if buf.Len() != 9 {
		t.Fatalf("Expected 9 queued ops, got %d", buf.Len())
	}

	if err := buf.Enqueue(indexOp("doc-9")); err != nil {
		t.Fatalf("Failed to enqueue final op: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(be.BulkCalls()) == 1 })

	call := be.BulkCalls()[0]
	if len(call) != 10 {
		t.Fatalf("Expected one batch of 10 ops, got %d", len(call))
	}
	for i, op := range call {
		if want := fmt.Sprintf("doc-%d", i); op.ID != want {
			t.Errorf("Expected op %d to be %s, got %s", i, want, op.ID)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("Expected empty queue after flush, got %d", buf.Len())
	}
}

func TestBulkBufferFlushesOnTimeout(t *testing.T) {
	be := memorybackend.New()
	buf := NewBulkBuffer(be, BulkConfig{Size: 100, Timeout: 20 * time.Millisecond})

	if err := buf.Enqueue(indexOp("doc-0")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(be.BulkCalls()) == 1 })

	if call := be.BulkCalls()[0]; len(call) != 1 || call[0].ID != "doc-0" {
		t.Errorf("Expected timeout flush of the single queued op, got %v", call)
	}
}

func TestBulkBufferOverflow(t *testing.T) {
	be := memorybackend.New()
	buf := NewBulkBuffer(be, BulkConfig{Size: 100, Timeout: time.Minute, BufferSize: 2})

	if err := buf.Enqueue(indexOp("doc-0")); err != nil {
		t.Fatalf("Failed to enqueue first op: %v", err)
	}
	if err := buf.Enqueue(indexOp("doc-1")); err != nil {
		t.Fatalf("Failed to enqueue second op: %v", err)
	}

	err := buf.Enqueue(indexOp("doc-2"))
	var overflow *BufferOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("Expected BufferOverflowError, got %v", err)
	}
	if overflow.Limit != 2 {
		t.Errorf("Expected limit 2, got %d", overflow.Limit)
	}
	// The rejected op must not have been queued.
	if buf.Len() != 2 {
		t.Errorf("Expected queue length 2 after rejection, got %d", buf.Len())
	}
}

func TestBulkBufferReportsFlushErrors(t *testing.T) {
	be := memorybackend.New()
	be.BulkErr = errors.New("cluster unavailable")

	errs := make(chan error, 1)
	buf := NewBulkBuffer(be, BulkConfig{Size: 2, Timeout: time.Minute, OnError: func(err error) {
		errs <- err
	}})

	buf.Enqueue(indexOp("doc-0"))
	buf.Enqueue(indexOp("doc-1"))

	select {
	case err := <-errs:
		if !errors.Is(err, be.BulkErr) {
			t.Errorf("Expected the backend error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the flush error on the observer")
	}

	// At-most-once: the failed batch is not re-queued.
	if buf.Len() != 0 {
		t.Errorf("Expected failed batch to be dropped, got %d queued", buf.Len())
	}
}

// gatedBackend suspends every bulk submission until the gate is released,
// holding a flush in flight for as long as the test needs.
type gatedBackend struct {
	*memorybackend.Backend
	gate chan struct{}
}

func (g *gatedBackend) Bulk(ctx context.Context, ops []backend.BulkOp) (*backend.BulkResult, error) {
	<-g.gate
	return g.Backend.Bulk(ctx, ops)
}

func TestBulkBufferTimerSurvivesInFlightFlush(t *testing.T) {
	be := memorybackend.New()
	gated := &gatedBackend{Backend: be, gate: make(chan struct{})}
	buf := NewBulkBuffer(gated, BulkConfig{Size: 100, Timeout: 20 * time.Millisecond})

	// The first op's timer fires and the flush suspends on the gate.
	if err := buf.Enqueue(indexOp("doc-0")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	waitFor(t, time.Second, func() bool { return buf.Len() == 0 })

	// An enqueue during the suspended flush arms a fresh timer, which also
	// fires while the flush is still in flight. The op it covers must still
	// reach the backend once the flush completes and the trigger is
	// re-evaluated.
	if err := buf.Enqueue(indexOp("doc-1")); err != nil {
		t.Fatalf("Failed to enqueue during in-flight flush: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	close(gated.gate)

	waitFor(t, time.Second, func() bool {
		total := 0
		for _, call := range be.BulkCalls() {
			total += len(call)
		}
		return total == 2
	})
	if buf.Len() != 0 {
		t.Errorf("Expected empty queue after both flushes, got %d", buf.Len())
	}
}

func TestBulkBufferDrainsLargeQueueOnClose(t *testing.T) {
	be := memorybackend.New()
	if err := be.CreateIndex(context.Background(), "test-index", nil, nil); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	buf := NewBulkBuffer(be, BulkConfig{Size: 4, Timeout: time.Minute})

	// Three ops stay below the size trigger; Close must drain them anyway.
	for i := 0; i < 3; i++ {
		if err := buf.Enqueue(indexOp(fmt.Sprintf("doc-%d", i))); err != nil {
			t.Fatalf("Failed to enqueue op %d: %v", i, err)
		}
	}

	buf.Close(context.Background())

	if buf.Len() != 0 {
		t.Errorf("Expected empty queue after close, got %d", buf.Len())
	}
	if n := be.DocCount("test-index"); n != 3 {
		t.Errorf("Expected 3 documents after close, got %d", n)
	}
}

package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/docbridge/docbridge/internal/backend"
)

// Bulk buffer defaults.
const (
	DefaultBulkSize    = 1000
	DefaultBulkTimeout = time.Second
)

// BulkConfig tunes a bulk buffer.
type BulkConfig struct {
	// Size is the queue length that triggers an immediate flush, and the
	// maximum number of operations per bulk request.
	Size int
	// Timeout flushes a non-empty queue that has not reached Size.
	Timeout time.Duration
	// BufferSize, when positive, is a hard ceiling on the queue length.
	// An enqueue past it fails with BufferOverflowError.
	BufferSize int
	// OnError receives flush submission failures. By the time a flush
	// fails the enqueuers have already been told "queued", so errors are
	// observed out of band rather than returned. Optional.
	OnError func(error)
}

// BulkBuffer batches index and delete operations into bulk requests.
// Operations drain in FIFO order; at most one bulk submission is in flight
// at a time; enqueues during an in-flight flush land in the next batch.
// Bulk mode is at-most-once: a failed batch is not re-queued.
type BulkBuffer struct {
	backend backend.Backend
	size    int
	timeout time.Duration
	ceiling int
	onError func(error)

	mu       sync.Mutex
	queue    []backend.BulkOp
	timer    *time.Timer
	timerGen int
	flushing bool
}

// NewBulkBuffer creates a buffer over a backend. Zero config fields fall
// back to defaults.
func NewBulkBuffer(be backend.Backend, cfg BulkConfig) *BulkBuffer {
	if cfg.Size <= 0 {
		cfg.Size = DefaultBulkSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBulkTimeout
	}
	return &BulkBuffer{
		backend: be,
		size:    cfg.Size,
		timeout: cfg.Timeout,
		ceiling: cfg.BufferSize,
		onError: cfg.OnError,
	}
}

// Enqueue appends an operation to the queue and evaluates the flush trigger:
// reaching Size flushes immediately, otherwise a timer is armed for Timeout
// if one is not already running.
func (b *BulkBuffer) Enqueue(op backend.BulkOp) error {
	b.mu.Lock()

	if b.ceiling > 0 && len(b.queue) >= b.ceiling {
		limit := b.ceiling
		b.mu.Unlock()
		return &BufferOverflowError{Limit: limit}
	}

	b.queue = append(b.queue, op)

	if len(b.queue) >= b.size {
		b.mu.Unlock()
		go b.Flush(context.Background())
		return nil
	}

	if b.timer == nil {
		b.armTimerLocked()
	}
	b.mu.Unlock()
	return nil
}

// armTimerLocked starts the flush timer. The callback clears b.timer before
// flushing so that a timer firing during an in-flight flush, whose own Flush
// call is a no-op, does not leave a stale handle behind: both re-arming sites
// decide on b.timer == nil, and a stale handle would stop them from ever
// arming again. The generation check keeps a late callback from clearing a
// newer timer. Callers must hold b.mu.
func (b *BulkBuffer) armTimerLocked() {
	b.timerGen++
	gen := b.timerGen
	b.timer = time.AfterFunc(b.timeout, func() {
		b.mu.Lock()
		if b.timerGen == gen {
			b.timer = nil
		}
		b.mu.Unlock()
		b.Flush(context.Background())
	})
}

// Len returns the current queue length.
func (b *BulkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Flush submits up to Size queued operations as one bulk request. A no-op
// when a flush is already in flight: the running flush re-evaluates the
// trigger on completion, so the queue keeps draining under sustained load
// without external pumping.
func (b *BulkBuffer) Flush(ctx context.Context) {
	b.mu.Lock()
	if b.flushing || len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	n := len(b.queue)
	if n > b.size {
		n = b.size
	}
	batch := b.queue[:n:n]
	b.queue = append([]backend.BulkOp(nil), b.queue[n:]...)
	b.mu.Unlock()

	// The submission suspends on the network; enqueues continue meanwhile.
	_, err := b.backend.Bulk(ctx, batch)

	b.mu.Lock()
	b.flushing = false
	remaining := len(b.queue)
	if remaining >= b.size {
		b.mu.Unlock()
		go b.Flush(context.Background())
	} else {
		if remaining > 0 && b.timer == nil {
			b.armTimerLocked()
		}
		b.mu.Unlock()
	}

	if err != nil && b.onError != nil {
		b.onError(err)
	}
}

// Close stops the flush timer and synchronously drains whatever is queued.
func (b *BulkBuffer) Close(ctx context.Context) {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	for b.Len() > 0 {
		b.Flush(ctx)

		b.mu.Lock()
		inFlight := b.flushing
		b.mu.Unlock()
		if inFlight {
			time.Sleep(time.Millisecond)
		}
	}
}

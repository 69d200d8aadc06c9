package core

import (
	"context"
	"runtime"
	"sync"
)

// Limiter bounds how many pipeline runs may execute concurrently inside one
// worker process. govips itself is thread-safe and concurrent up to its own
// ConcurrencyLevel, so this is not a correctness requirement but a resource
// guard: it keeps one OS worker (§4.7/§5) from admitting more in-flight
// decodes than the backend was configured for. Adapted from the codec
// backend's channel-driven worker loop (core.Processor.worker), narrowed
// from a generic async job queue to a plain semaphore since dirpy dispatches
// one pipeline run per HTTP request rather than queuing Jobs.
type Limiter struct {
	sem chan struct{}
}

// NewLimiter returns a Limiter admitting at most n concurrent Acquire calls.
// n <= 0 defaults to runtime.NumCPU().
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Limiter{sem: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired by Acquire.
func (l *Limiter) Release() { <-l.sem }

// Run calls fn while holding a slot, releasing it on return.
func (l *Limiter) Run(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// counters mirrors the codec backend's processed/error counters; it is
// exposed through WorkerStats.
type counters struct {
	mu        sync.Mutex
	processed int64
	errored   int64
}

func (c *counters) recordOK() {
	c.mu.Lock()
	c.processed++
	c.mu.Unlock()
}

func (c *counters) recordErr() {
	c.mu.Lock()
	c.errored++
	c.mu.Unlock()
}

func (c *counters) snapshot() (processed, errored int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed, c.errored
}

// WorkerStats is a process-local counter pair, created once per OS worker
// and shared by every request it serves.
type WorkerStats struct{ c counters }

// NewWorkerStats returns a zeroed WorkerStats.
func NewWorkerStats() *WorkerStats { return &WorkerStats{} }

// RecordSuccess increments the processed counter.
func (w *WorkerStats) RecordSuccess() { w.c.recordOK() }

// RecordFailure increments the error counter.
func (w *WorkerStats) RecordFailure() { w.c.recordErr() }

// Snapshot returns the current (processed, errored) totals.
func (w *WorkerStats) Snapshot() (processed, errored int64) { return w.c.snapshot() }

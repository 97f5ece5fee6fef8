package resilience

import (
	"context"
	"sync"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent caps simultaneous slot holders. Default: 10.
	MaxConcurrent int

	// MaxWait bounds how long Acquire blocks waiting for a slot. Zero
	// means fail immediately. Default: 0.
	MaxWait time.Duration
}

// Bulkhead bounds concurrency with a counted semaphore. It backs the
// executor's concurrency isolation and the transport pool's global
// handle limit; the MaxWait choice is what distinguishes a blocking
// acquisition policy from a fail-fast one.
type Bulkhead struct {
	config BulkheadConfig
	slots  chan struct{}

	mu        sync.Mutex
	active    int
	highWater int
	rejected  int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{config: config, slots: make(chan struct{}, config.MaxConcurrent)}
}

// claimed records a successful acquisition. The caller already holds
// the semaphore slot.
func (b *Bulkhead) claimed() {
	b.mu.Lock()
	b.active++
	b.highWater = max(b.highWater, b.active)
	b.mu.Unlock()
}

func (b *Bulkhead) reject() error {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
	return ErrBulkheadFull
}

// Acquire takes a slot, waiting up to MaxWait for one to free up.
// Returns ErrBulkheadFull when no slot arrives in time, or ctx.Err()
// if the caller gives up first; only the former counts as a rejection.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.TryAcquire() {
		return nil
	}
	if b.config.MaxWait <= 0 {
		return b.reject()
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.slots <- struct{}{}:
		b.claimed()
		return nil
	case <-timer.C:
		return b.reject()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without waiting. It returns false when the
// bulkhead is at capacity. A failed try is not counted as a rejection:
// callers use it to probe before falling back to Acquire.
func (b *Bulkhead) TryAcquire() bool {
	select {
	case b.slots <- struct{}{}:
		b.claimed()
		return true
	default:
		return false
	}
}

// Release returns a slot. Releasing without a matching acquire is a
// no-op, not a panic.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	default:
	}
}

// Execute runs the operation inside a slot, releasing it when the
// operation returns.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Metrics reports a point-in-time snapshot of slot usage.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		MaxConcurrent: b.config.MaxConcurrent,
		Active:        b.active,
		Available:     b.config.MaxConcurrent - b.active,
		MaxActive:     b.highWater,
		Rejected:      b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	MaxConcurrent int
	Active        int
	Available     int
	MaxActive     int
	Rejected      int64
}

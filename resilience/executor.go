package resilience

import (
	"context"
	"time"
)

// layer is the shape every resilience pattern shares: run the operation
// under the pattern's policy.
type layer interface {
	Execute(context.Context, func(context.Context) error) error
}

// stack nests op one level deeper inside outer.
func stack(outer layer, op func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error { return outer.Execute(ctx, op) }
}

// Executor composes multiple resilience patterns around outbound calls.
type Executor struct {
	breaker  *CircuitBreaker
	retry    *Retry
	limiter  *RateLimiter
	bulkhead *Bulkhead
	timeout  *Timeout
}

// ExecutorOption wires one resilience pattern into an Executor.
type ExecutorOption func(*Executor)

// NewExecutor builds an executor from the supplied options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	var e Executor
	for _, opt := range opts {
		opt(&e)
	}

	// A breaker combined with retry gates every attempt, not just the
	// first, so a circuit opening mid-retry aborts the remaining attempts.
	if e.retry != nil && e.breaker != nil {
		e.retry = e.retry.withBreaker(e.breaker)
	}
	return &e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = rl }
}

// WithBulkhead adds concurrency isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout adds a per-attempt timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// WithTimeoutConfig adds a timeout with custom config to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) { e.timeout = t }
}

// Execute runs the operation through all configured resilience patterns.
//
// The layering, outermost first:
//  1. Rate Limiter (if configured) - limits request rate
//  2. Bulkhead (if configured) - limits concurrency
//  3. Retry (if configured) - bounded attempts with backoff; when a
//     circuit breaker is also configured it gates every attempt and
//     records every outcome
//  4. Circuit Breaker alone (if no retry) - wraps the call directly
//  5. Timeout (if configured) - bounds each individual attempt
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	// Assemble inside out, so the timeout bounds one attempt and the
	// rate limiter sits at the edge.
	if e.timeout != nil {
		op = stack(e.timeout, op)
	}

	switch {
	case e.retry != nil:
		op = stack(e.retry, op)
	case e.breaker != nil:
		op = stack(e.breaker, op)
	}

	if e.bulkhead != nil {
		op = stack(e.bulkhead, op)
	}
	if e.limiter != nil {
		op = stack(e.limiter, op)
	}

	return op(ctx)
}

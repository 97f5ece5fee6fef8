package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Backoff computes delays between retry attempts: exponential doubling
// from Initial, capped at Max, plus (when Jitter is set) a uniformly
// random addition in [0, delay) to spread synchronized retries across
// callers. The zero value is unusable; use NewBackoff or fill all fields.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// NewBackoff creates a Backoff with defaults applied
// (Initial 100ms, Max 30s, Jitter on).
func NewBackoff(initial, max time.Duration) Backoff {
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	return Backoff{Initial: initial, Max: max, Jitter: true}
}

// Delay returns the delay after the given failed attempt (1-based):
// min(Initial * 2^(attempt-1), Max), plus jitter if enabled.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.Initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if delay > b.Max {
		delay = b.Max
	}

	if b.Jitter && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay)))
	}

	return delay
}

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts bounds the total tries, the first call included.
	// Default: 3.
	MaxAttempts int

	// InitialDelay seeds the backoff schedule. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps any single backoff sleep. Default: 30s.
	MaxDelay time.Duration

	// NoJitter disables the random jitter added to each backoff delay.
	// By default each delay gains a uniform addition in [0, delay).
	NoJitter bool

	// Breaker, when set, is consulted before every attempt, not just the
	// first: an open circuit aborts the remaining attempts immediately
	// with ErrCircuitOpen. Each attempt's outcome is recorded on it.
	Breaker *CircuitBreaker

	// RetryIf determines whether an error should trigger a retry.
	// Default: Transient (permanent errors, open circuits and context
	// errors propagate immediately without consuming an attempt).
	RetryIf func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry executes operations with bounded attempts and exponential
// backoff.
type Retry struct {
	config  RetryConfig
	backoff Backoff
}

// NewRetry creates a new retry executor.
func NewRetry(config RetryConfig) *Retry {
	if config.RetryIf == nil {
		config.RetryIf = Transient
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}

	return &Retry{
		config: config,
		backoff: Backoff{
			Initial: config.InitialDelay,
			Max:     config.MaxDelay,
			Jitter:  !config.NoJitter,
		},
	}
}

// Execute runs the operation with retry logic. The first attempt runs
// immediately; each subsequent attempt waits for the backoff delay.
// Non-retryable errors propagate as-is on first occurrence. Exhausting
// every attempt returns an *ExhaustedError wrapping the last failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if cb := r.config.Breaker; cb != nil {
			if err := cb.allow(); err != nil {
				return err
			}
			err := op(ctx)
			cb.record(err)
			lastErr = err
		} else {
			lastErr = op(ctx)
		}

		if lastErr == nil {
			return nil
		}

		if !r.config.RetryIf(lastErr) {
			return lastErr
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.backoff.Delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-time.After(delay):
			// Next attempt.
		}
	}

	return &ExhaustedError{Attempts: r.config.MaxAttempts, Last: lastErr}
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// withBreaker returns a copy of r gated on cb, unless a breaker is
// already configured.
func (r *Retry) withBreaker(cb *CircuitBreaker) *Retry {
	if r.config.Breaker != nil {
		return r
	}
	config := r.config
	config.Breaker = cb
	return &Retry{config: config, backoff: r.backoff}
}

package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is the sustained number of operations per second.
	// Default: 100
	Rate float64

	// Burst is the bucket capacity.
	// Default: 10
	Burst int

	// WaitOnLimit makes Execute wait for a token instead of failing fast.
	// Default: false
	WaitOnLimit bool

	// MaxWait bounds how long a waiting caller blocks.
	// Default: 1s
	MaxWait time.Duration
}

// RateLimiter is a token bucket shaping the rate of outbound calls so
// retries cannot stampede a recovering backend. Tokens accrue
// continuously at Rate per second up to Burst.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.Rate <= 0 {
		config.Rate = 100
	}

	return &RateLimiter{
		config:     config,
		tokens:     float64(config.Burst),
		lastRefill: time.Now(),
	}
}

// Allow reports whether a single operation may proceed now.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN reports whether n operations may proceed now, consuming n
// tokens when they can.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens < float64(n) {
		return false
	}
	rl.tokens -= float64(n)
	return true
}

// Wait blocks until a token is available, the wait budget runs out, or
// ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available. A wait that would exceed
// MaxWait is cut short and fails with ErrRateLimited.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if rl.AllowN(n) {
		return nil
	}

	rl.mu.Lock()
	deficit := float64(n) - rl.tokens
	rl.mu.Unlock()

	wait := time.Duration(deficit / rl.config.Rate * float64(time.Second))
	if wait > rl.config.MaxWait {
		wait = rl.config.MaxWait
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	if rl.AllowN(n) {
		return nil
	}
	return ErrRateLimited
}

// Execute runs op under the rate limit. Without WaitOnLimit a drained
// bucket fails fast with ErrRateLimited.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	switch {
	case rl.config.WaitOnLimit:
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	case !rl.Allow():
		return ErrRateLimited
	}
	return op(ctx)
}

// refillLocked credits tokens for the time elapsed since the last
// refill. Callers must hold mu.
func (rl *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	rl.lastRefill = now

	rl.tokens = min(rl.tokens+elapsed.Seconds()*rl.config.Rate, float64(rl.config.Burst))
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket to capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.lastRefill = time.Now()
}

package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig bounds how long a wrapped operation may run.
type TimeoutConfig struct {
	// Timeout is the per-call budget. Zero selects 30 seconds.
	Timeout time.Duration
}

// Timeout runs operations under a deadline. The operation receives a
// context that is cancelled when the budget runs out, so a well behaved
// operation stops doing work; Execute returns without waiting for it
// either way.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout builds a timeout wrapper, applying defaults.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op with the configured budget. Overrunning the budget
// returns ErrTimeout; cancellation of the parent context returns the
// context's own error.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- op(ctx) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// Config reports the effective configuration.
func (t *Timeout) Config() TimeoutConfig { return t.config }

// ExecuteWithTimeout runs op under budget without building a reusable
// wrapper first.
func ExecuteWithTimeout(ctx context.Context, budget time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: budget}).Execute(ctx, op)
}

package resilience

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker for a destination
	// is open. It is never produced by a network attempt, so callers can
	// safely treat it as non-retryable.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetriesExhausted is returned when every retry attempt has failed.
	// The returned error also wraps the last underlying failure.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")

	// ErrRateLimited is returned when the rate limit is exceeded.
	ErrRateLimited = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// ExhaustedError reports that the retry budget was consumed without a
// success. It satisfies errors.Is(err, ErrRetriesExhausted) and unwraps
// to the last underlying failure.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int

	// Last is the error returned by the final attempt.
	Last error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("resilience: %d attempts exhausted, last error: %v", e.Attempts, e.Last)
}

// Unwrap returns the last underlying failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is reports whether target is ErrRetriesExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// permanentError marks an error as not worth retrying.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as permanent: caller-caused failures (bad
// credentials, malformed requests, 4xx-equivalents) that retrying cannot
// fix. The retry executor propagates permanent errors immediately without
// consuming an attempt, and the circuit breaker does not count them as
// destination failures. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or any error it wraps) was marked
// with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Transient reports whether err should be retried. Permanent errors,
// open circuits and context cancellation are not transient; everything
// else (network failures, timeouts, 5xx-equivalents) is.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through normally.
	StateClosed State = iota
	// StateOpen means all calls are rejected without a network attempt.
	StateOpen
	// StateHalfOpen means a limited number of trial calls are admitted.
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

// String returns the lowercase state name.
func (s State) String() string {
	if s < StateClosed || s > StateHalfOpen {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before admitting
	// trial calls.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit again.
	// Default: 2
	SuccessThreshold int

	// HalfOpenMaxCalls is the maximum number of trial calls in flight
	// while half-open.
	// Default: 1
	HalfOpenMaxCalls int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines whether an error counts as a destination
	// failure. The default counts every non-nil error except those marked
	// Permanent and context cancellation, so caller-caused rejections do
	// not open the circuit.
	IsFailure func(err error) bool
}

// CircuitBreaker tracks the health of a single destination and stops
// issuing calls to it after repeated failures. State never survives a
// process restart; a new breaker always starts closed.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	halfOpenInFlight int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

func defaultIsFailure(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	return err != context.Canceled
}

// Allow reports whether a call may proceed. When the circuit is
// half-open a true result reserves one of the trial slots, so every
// allowed call must be paired with RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	return cb.allow() == nil
}

// RecordSuccess records a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.recordOutcome(false)
}

// RecordFailure records a failed call outcome, bypassing the IsFailure
// classifier.
func (cb *CircuitBreaker) RecordFailure() {
	cb.recordOutcome(true)
}

// Execute runs the operation through the circuit breaker, recording its
// outcome. An open circuit returns ErrCircuitOpen without invoking op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(err)
	return err
}

// State returns the current circuit state, applying the open->half-open
// transition if the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset returns the circuit breaker to the closed state with cleared
// counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	from := cb.state
	cb.state = StateClosed
	cb.failures, cb.successes, cb.halfOpenInFlight = 0, 0, 0

	if from != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, StateClosed)
	}
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		cb.halfOpenInFlight++
	}

	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.recordOutcome(cb.config.IsFailure(err))
}

func (cb *CircuitBreaker) recordOutcome(isFailure bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.failures++
			if cb.failures >= cb.config.FailureThreshold {
				cb.openLocked()
			}
		} else {
			// Consecutive counting: any success resets the streak.
			cb.failures = 0
		}

	case StateHalfOpen:
		if cb.halfOpenInFlight > 0 {
			cb.halfOpenInFlight--
		}
		if isFailure {
			// A failed trial call reopens immediately and restarts the
			// reset timeout.
			cb.openLocked()
		} else {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.state = StateClosed
				cb.failures = 0
				cb.successes = 0
			}
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, cb.state)
	}
}

func (cb *CircuitBreaker) openLocked() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successes = 0
	cb.halfOpenInFlight = 0
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.ResetTimeout {
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.halfOpenInFlight = 0
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:                cb.currentStateLocked(),
		ConsecutiveFailures:  cb.failures,
		ConsecutiveSuccesses: cb.successes,
		OpenedAt:             cb.openedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	OpenedAt             time.Time
}

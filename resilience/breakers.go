package resilience

import "sync"

// Breakers is a registry of circuit breakers keyed by destination.
// Breakers are created lazily on first use, all sharing the same
// configuration. Each destination gets its own lock, so concurrent calls
// to unrelated destinations never serialize on shared state.
type Breakers struct {
	config CircuitBreakerConfig

	mu     sync.RWMutex
	byDest map[string]*CircuitBreaker
}

// NewBreakers creates a breaker registry. Every breaker it creates uses
// config with defaults applied.
func NewBreakers(config CircuitBreakerConfig) *Breakers {
	return &Breakers{
		config: config,
		byDest: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for destination, creating it (closed) on first
// use.
func (b *Breakers) For(destination string) *CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.byDest[destination]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byDest[destination]; ok {
		return cb
	}
	cb = NewCircuitBreaker(b.config)
	b.byDest[destination] = cb
	return cb
}

// States returns the current state of every known breaker.
func (b *Breakers) States() map[string]State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]State, len(b.byDest))
	for dest, cb := range b.byDest {
		states[dest] = cb.State()
	}
	return states
}

// Reset resets the breaker for destination, if one exists.
func (b *Breakers) Reset(destination string) {
	b.mu.RLock()
	cb, ok := b.byDest[destination]
	b.mu.RUnlock()
	if ok {
		cb.Reset()
	}
}

// Len returns the number of destinations tracked.
func (b *Breakers) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byDest)
}

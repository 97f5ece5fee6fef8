package gateway

import "hash/fnv"

// Strategy routes a principal to the rollout evaluation path at a
// given percentage. Implementations must be pure: the same principal
// and percentage always produce the same answer, so a principal never
// flaps between paths while a rollout holds steady.
type Strategy func(principal string, percent int) bool

// DefaultStrategy buckets principals by FNV-1a hash. Percent 0 routes
// nobody, 100 routes everybody, and the share in between is stable
// per principal.
func DefaultStrategy(principal string, percent int) bool {
	return bucket(principal) < clampPercent(percent)
}

// KeyedStrategy scopes the hash with a rollout key, so two concurrent
// rollouts at the same percentage slice the principal population
// differently.
func KeyedStrategy(key string) Strategy {
	return func(principal string, percent int) bool {
		return bucket(key+":"+principal) < clampPercent(percent)
	}
}

// bucket maps an identity onto [0, 100).
func bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % 100)
}

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// RolloutConfig routes a share of principals through an alternate
// evaluation path, typically a next-generation engine being proven
// against production traffic.
type RolloutConfig struct {
	// Percent of principals routed to Next, 0 to 100. Values outside
	// the range are clamped.
	Percent int

	// Next is the alternate evaluator. Nil disables the rollout
	// regardless of Percent.
	Next Evaluator

	// Strategy picks the side for one principal. Default:
	// DefaultStrategy.
	Strategy Strategy
}

// enabled reports whether any principal can route to Next.
func (r RolloutConfig) enabled() bool {
	return r.Next != nil && clampPercent(r.Percent) > 0
}

// route returns the evaluator for this principal.
func (r RolloutConfig) route(primary Evaluator, principal string) Evaluator {
	if !r.enabled() {
		return primary
	}
	if r.Strategy(principal, r.Percent) {
		return r.Next
	}
	return primary
}

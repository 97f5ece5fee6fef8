package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonwraymond/gateops/resilience"
)

// BreakerChecker reports the state of the circuit breaker registry. An
// open circuit means a destination is being refused calls, so any open
// breaker degrades the gateway without making it unhealthy: other
// destinations keep working.
type BreakerChecker struct {
	breakers *resilience.Breakers
}

// NewBreakerChecker creates a checker over the given breaker registry.
func NewBreakerChecker(breakers *resilience.Breakers) *BreakerChecker {
	return &BreakerChecker{breakers: breakers}
}

// Name returns the name of this checker.
func (c *BreakerChecker) Name() string {
	return "breakers"
}

// Check reports degraded when any destination's circuit is open.
// Half-open circuits are already admitting trial calls and count as
// healthy.
func (c *BreakerChecker) Check(_ context.Context) Result {
	states := c.breakers.States()

	open := make([]string, 0)
	halfOpen := make([]string, 0)
	for dest, state := range states {
		switch state {
		case resilience.StateOpen:
			open = append(open, dest)
		case resilience.StateHalfOpen:
			halfOpen = append(halfOpen, dest)
		}
	}
	sort.Strings(open)
	sort.Strings(halfOpen)

	details := map[string]any{
		"destinations": len(states),
		"open":         open,
		"half_open":    halfOpen,
	}

	if len(open) > 0 {
		return Degraded(
			fmt.Sprintf("%d of %d destinations open", len(open), len(states)),
		).WithDetails(details)
	}

	if len(states) == 0 {
		return Healthy("no destinations tracked").WithDetails(details)
	}

	if len(halfOpen) > 0 {
		return Healthy(
			fmt.Sprintf("%d of %d destinations recovering", len(halfOpen), len(states)),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("all %d circuits closed", len(states)),
	).WithDetails(details)
}

package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/gateops/policy"
)

// PolicyChecker reports whether the policy engine has policies loaded.
// With nothing loaded every evaluation fails and the authorizer denies
// every request, so an empty engine is unhealthy rather than degraded.
type PolicyChecker struct {
	engine *policy.Engine
}

// NewPolicyChecker creates a checker over the given policy engine.
func NewPolicyChecker(engine *policy.Engine) *PolicyChecker {
	return &PolicyChecker{engine: engine}
}

// Name returns the name of this checker.
func (c *PolicyChecker) Name() string {
	return "policies"
}

// Check reports unhealthy when no policies are loaded.
func (c *PolicyChecker) Check(_ context.Context) Result {
	names := c.engine.Names()

	if len(names) == 0 {
		return Unhealthy("no policies loaded", ErrCheckFailed)
	}

	return Healthy(
		fmt.Sprintf("%d policies loaded", len(names)),
	).WithDetails(map[string]any{
		"count":    len(names),
		"policies": names,
	})
}

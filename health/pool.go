package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/gateops/transport"
)

// PoolCheckerConfig configures the transport pool checker.
type PoolCheckerConfig struct {
	// WarningUtilization is the checked-out fraction of pool capacity
	// that triggers degraded status. Value should be between 0 and 1.
	// Default: 0.8
	WarningUtilization float64

	// CriticalUtilization is the checked-out fraction of pool capacity
	// that triggers unhealthy status. Value should be between 0 and 1.
	// Default: 0.95
	CriticalUtilization float64
}

// PoolChecker checks transport pool utilization. A saturated pool means
// checkouts are queueing behind slow destinations.
type PoolChecker struct {
	pool   *transport.Pool
	config PoolCheckerConfig
}

// NewPoolChecker creates a checker over the given transport pool.
func NewPoolChecker(pool *transport.Pool, config PoolCheckerConfig) *PoolChecker {
	if config.WarningUtilization <= 0 || config.WarningUtilization >= 1 {
		config.WarningUtilization = 0.8
	}
	if config.CriticalUtilization <= 0 || config.CriticalUtilization >= 1 {
		config.CriticalUtilization = 0.95
	}
	if config.CriticalUtilization < config.WarningUtilization {
		config.CriticalUtilization = config.WarningUtilization + 0.1
		if config.CriticalUtilization > 1 {
			config.CriticalUtilization = 0.99
		}
	}

	return &PoolChecker{pool: pool, config: config}
}

// Name returns the name of this checker.
func (c *PoolChecker) Name() string {
	return "pool"
}

// Check reports degraded or unhealthy as checked-out handles approach
// pool capacity.
func (c *PoolChecker) Check(_ context.Context) Result {
	stats := c.pool.Stats()

	var utilization float64
	if stats.Capacity > 0 {
		utilization = float64(stats.InUse) / float64(stats.Capacity)
	}

	details := map[string]any{
		"capacity":      stats.Capacity,
		"live":          stats.Live,
		"idle":          stats.Idle,
		"in_use":        stats.InUse,
		"usage_percent": utilization * 100,
	}

	if utilization >= c.config.CriticalUtilization {
		return Unhealthy(
			fmt.Sprintf("pool saturated: %d of %d handles in use", stats.InUse, stats.Capacity),
			ErrCheckFailed,
		).WithDetails(details)
	}

	if utilization >= c.config.WarningUtilization {
		return Degraded(
			fmt.Sprintf("pool utilization high: %d of %d handles in use", stats.InUse, stats.Capacity),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("%d of %d handles in use", stats.InUse, stats.Capacity),
	).WithDetails(details)
}

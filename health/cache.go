package health

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/gateops/cache"
)

// CacheCheckerConfig configures the cache reachability checker.
type CacheCheckerConfig struct {
	// ProbeTTL is how long a probe entry may linger if its delete fails.
	// Default: 30 seconds
	ProbeTTL time.Duration
}

// CacheChecker verifies the decision cache by writing a probe entry and
// reading it back. Set surfaces backend errors while Get reports them
// as misses, so a failed write is unhealthy and a failed readback only
// degrades.
type CacheChecker struct {
	cache  cache.Cache
	key    string
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker over the given cache. The probe key
// is unique per checker and lives outside the decision key namespace,
// so gateways sharing a backend never race on each other's probes.
func NewCacheChecker(c cache.Cache, config CacheCheckerConfig) *CacheChecker {
	if config.ProbeTTL <= 0 {
		config.ProbeTTL = 30 * time.Second
	}

	return &CacheChecker{
		cache:  c,
		key:    "health:probe:" + uuid.NewString(),
		config: config,
	}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check writes a probe entry, reads it back, and deletes it.
func (c *CacheChecker) Check(ctx context.Context) Result {
	value := []byte(time.Now().UTC().Format(time.RFC3339Nano))

	if err := c.cache.Set(ctx, c.key, value, c.config.ProbeTTL); err != nil {
		return Unhealthy("cache write failed", err)
	}

	if _, ok := c.cache.Get(ctx, c.key); !ok {
		return Degraded("cache probe not readable after write")
	}

	_ = c.cache.Delete(ctx, c.key)

	return Healthy("cache reachable")
}

// Package health provides health checking for the gateway hot path.
//
// A Checker is any component that can report its health status. The
// Status type represents the health state: Healthy, Degraded, or
// Unhealthy. The package ships checkers for the components the gateway
// depends on: circuit breakers (BreakerChecker), the transport pool
// (PoolChecker), the policy engine (PolicyChecker), the decision cache
// (CacheChecker), and process memory (MemoryChecker).
//
// # Aggregating Health Checks
//
// Use Aggregator to combine checkers into a single composite check:
//
//	agg := health.NewAggregator()
//	agg.Register("breakers", health.NewBreakerChecker(breakers))
//	agg.Register("pool", health.NewPoolChecker(pool, health.PoolCheckerConfig{}))
//	agg.Register("policies", health.NewPolicyChecker(engine))
//	agg.Register("cache", health.NewCacheChecker(decisionCache, health.CacheCheckerConfig{}))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// Overall status takes the worst individual result: one unhealthy check
// makes the gateway unhealthy, one degraded check makes it degraded.
//
// # HTTP Endpoints
//
// RegisterHandlers wires the standard probe endpoints onto a mux:
//
//	// Liveness probe: process is up
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe: aggregated component status
//	http.Handle("/readyz", health.ReadinessHandler(agg))
//
//	// Detailed JSON status per component
//	http.Handle("/health", health.DetailedHandler(agg))
//
// A degraded gateway still reports ready: open breakers or a missed
// cache probe reduce quality of service but the authorizer keeps
// serving decisions.
package health

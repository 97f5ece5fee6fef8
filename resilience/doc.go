// Package resilience provides failure isolation for outbound gateway
// calls.
//
// Every call the gateway makes to a backend goes through this package:
// a per-destination circuit breaker stops traffic to failing backends, a
// retry executor absorbs transient failures, and timeouts bound each
// attempt. The patterns compose into a single execution pipeline.
//
// # Patterns
//
//   - Circuit Breaker: per-destination failure tracker with
//     closed/open/half-open states. After a threshold of consecutive
//     failures the circuit opens and calls are rejected with
//     ErrCircuitOpen (no network attempt) until the reset timeout
//     elapses; a run of successful trial calls closes it again.
//
//   - Retry: bounded attempts with exponential backoff and full jitter.
//     Only transient failures are retried; errors marked Permanent
//     propagate on first occurrence. A breaker attached to the retry is
//     consulted before every attempt.
//
//   - Rate Limiter: token bucket shaping of outbound call rate.
//
//   - Bulkhead: counted semaphore bounding concurrency; also backs the
//     transport pool's handle limit.
//
//   - Timeout: bounds a single attempt, surfacing ErrTimeout.
//
// # Usage
//
//	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	    SuccessThreshold: 2,
//	})
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 100 * time.Millisecond,
//	    MaxDelay:     30 * time.Second,
//	    Breaker:      breakers.For("billing-backend"),
//	})
//
//	err := retry.Execute(ctx, func(ctx context.Context) error {
//	    return callBackend(ctx)
//	})
//
// Or composed through an executor:
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(breakers.For("billing-backend")),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return callBackend(ctx)
//	})
//
// # Error classification
//
// Callers mark caller-caused failures with Permanent so neither the
// retry executor nor the circuit breaker treats them as destination
// health problems:
//
//	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
//	    return resilience.Permanent(fmt.Errorf("backend rejected call: %s", resp.Status))
//	}
package resilience

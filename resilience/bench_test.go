package resilience

import (
	"context"
	"testing"
	"time"
)

// noop stands in for a backend call that always succeeds.
func noop(context.Context) error { return nil }

func benchBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 1000,
		ResetTimeout:     time.Minute,
	}
}

// BenchmarkCircuitBreaker_Execute measures the closed state happy path,
// the cost every authorized call pays.
func BenchmarkCircuitBreaker_Execute(b *testing.B) {
	cb := NewCircuitBreaker(benchBreakerConfig())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, noop)
	}
}

// BenchmarkCircuitBreaker_Allow measures the admission check alone.
func BenchmarkCircuitBreaker_Allow(b *testing.B) {
	cb := NewCircuitBreaker(benchBreakerConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Allow()
	}
}

// BenchmarkCircuitBreaker_Metrics measures snapshot retrieval under load.
func BenchmarkCircuitBreaker_Metrics(b *testing.B) {
	cb := NewCircuitBreaker(benchBreakerConfig())
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_ = cb.Execute(ctx, noop)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Metrics()
	}
}

// BenchmarkCircuitBreaker_Concurrent measures contention on a single
// breaker shared by many in-flight calls.
func BenchmarkCircuitBreaker_Concurrent(b *testing.B) {
	cb := NewCircuitBreaker(benchBreakerConfig())
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cb.Execute(ctx, noop)
		}
	})
}

// BenchmarkBreakers_For measures registry lookup for a destination the
// gateway has already called.
func BenchmarkBreakers_For(b *testing.B) {
	breakers := NewBreakers(benchBreakerConfig())
	breakers.For("https://tools.internal")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = breakers.For("https://tools.internal")
	}
}

// BenchmarkBreakers_For_Concurrent measures parallel lookups across a
// small destination set, the shape of steady gateway traffic.
func BenchmarkBreakers_For_Concurrent(b *testing.B) {
	breakers := NewBreakers(benchBreakerConfig())
	destinations := []string{
		"https://tools.internal",
		"https://search.internal",
		"https://reports.internal",
	}
	for _, d := range destinations {
		breakers.For(d)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = breakers.For(destinations[i%len(destinations)])
			i++
		}
	})
}

// BenchmarkBreakers_States measures the health snapshot across a
// populated registry.
func BenchmarkBreakers_States(b *testing.B) {
	breakers := NewBreakers(benchBreakerConfig())
	for _, d := range []string{"a.internal", "b.internal", "c.internal", "d.internal"} {
		breakers.For(d)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = breakers.States()
	}
}

// BenchmarkBackoff_Delay measures delay computation per attempt.
func BenchmarkBackoff_Delay(b *testing.B) {
	backoff := NewBackoff(100*time.Millisecond, 30*time.Second)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backoff.Delay(i % 10)
	}
}

// BenchmarkRetry_FirstAttempt measures retry overhead when the call
// succeeds immediately, the common case.
func BenchmarkRetry_FirstAttempt(b *testing.B) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = retry.Execute(ctx, noop)
	}
}

// BenchmarkRateLimiter_Allow measures a single token check with the
// bucket never empty.
func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  1_000_000,
		Burst: 1_000_000,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Allow()
	}
}

// BenchmarkRateLimiter_Concurrent measures parallel token checks.
func BenchmarkRateLimiter_Concurrent(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  1_000_000,
		Burst: 1_000_000,
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = rl.Allow()
		}
	})
}

// BenchmarkBulkhead_Execute measures the semaphore round trip with
// free slots available.
func BenchmarkBulkhead_Execute(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 1000})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bh.Execute(ctx, noop)
	}
}

// BenchmarkBulkhead_TryAcquire measures the non-blocking admission path.
func BenchmarkBulkhead_TryAcquire(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 1000})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if bh.TryAcquire() {
			bh.Release()
		}
	}
}

// BenchmarkTimeout_Execute measures deadline setup for a call that
// returns well inside its budget.
func BenchmarkTimeout_Execute(b *testing.B) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = timeout.Execute(ctx, noop)
	}
}

// BenchmarkExecutor_CallPath measures the full composition the gateway
// wraps around every backend invocation.
func BenchmarkExecutor_CallPath(b *testing.B) {
	executor := NewExecutor(
		WithRateLimiter(NewRateLimiter(RateLimiterConfig{Rate: 1_000_000, Burst: 1_000_000})),
		WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: 1000})),
		WithCircuitBreaker(NewCircuitBreaker(benchBreakerConfig())),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond})),
		WithTimeout(time.Second),
	)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = executor.Execute(ctx, noop)
	}
}

// BenchmarkExecutor_Concurrent measures the composed path under
// parallel load.
func BenchmarkExecutor_Concurrent(b *testing.B) {
	executor := NewExecutor(
		WithRateLimiter(NewRateLimiter(RateLimiterConfig{Rate: 1_000_000, Burst: 1_000_000})),
		WithCircuitBreaker(NewCircuitBreaker(benchBreakerConfig())),
		WithTimeout(time.Minute),
	)
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = executor.Execute(ctx, noop)
		}
	})
}

// BenchmarkState_String measures state labelling for logs and health
// endpoints.
func BenchmarkState_String(b *testing.B) {
	states := []State{StateClosed, StateOpen, StateHalfOpen}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = states[i%len(states)].String()
	}
}

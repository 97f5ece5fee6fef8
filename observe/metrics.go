package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records gateway metrics for decisions, upstream calls, and
// streams. Implementations are safe for concurrent use, return quickly,
// and never panic; recording is best-effort and must not block the
// request path.
type Metrics interface {
	// RecordDecision records an authorization decision. EvalDuration is the
	// policy evaluation time and is recorded only for cache misses; on a hit
	// the value is ignored.
	RecordDecision(ctx context.Context, policy string, allowed, cacheHit bool, evalDuration time.Duration)

	// RecordTransportCall records an upstream call with duration and error status.
	RecordTransportCall(ctx context.Context, kind, destination string, duration time.Duration, err error)

	// RecordStreamReconnect records a stream reconnect attempt.
	RecordStreamReconnect(ctx context.Context, endpoint string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter          metric.Meter
	decisionCount  metric.Int64Counter
	denialCount    metric.Int64Counter
	evalHist       metric.Float64Histogram
	callCount      metric.Int64Counter
	callErrors     metric.Int64Counter
	callHist       metric.Float64Histogram
	reconnectCount metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	decisionCount, err := meter.Int64Counter(
		"authz.decisions.total",
		metric.WithDescription("Total number of authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	denialCount, err := meter.Int64Counter(
		"authz.denials.total",
		metric.WithDescription("Total number of deny decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	evalHist, err := meter.Float64Histogram(
		"authz.eval.duration_ms",
		metric.WithDescription("Policy evaluation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	callCount, err := meter.Int64Counter(
		"transport.calls.total",
		metric.WithDescription("Total number of upstream calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	callErrors, err := meter.Int64Counter(
		"transport.calls.errors",
		metric.WithDescription("Total number of upstream call errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	callHist, err := meter.Float64Histogram(
		"transport.call.duration_ms",
		metric.WithDescription("Upstream call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reconnectCount, err := meter.Int64Counter(
		"stream.reconnects.total",
		metric.WithDescription("Total number of stream reconnect attempts"),
		metric.WithUnit("{reconnect}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:          meter,
		decisionCount:  decisionCount,
		denialCount:    denialCount,
		evalHist:       evalHist,
		callCount:      callCount,
		callErrors:     callErrors,
		callHist:       callHist,
		reconnectCount: reconnectCount,
	}, nil
}

// RecordDecision records metrics for an authorization decision.
func (m *metricsImpl) RecordDecision(ctx context.Context, policy string, allowed, cacheHit bool, evalDuration time.Duration) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}

	m.decisionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", policy),
		attribute.String("decision", decision),
		attribute.String("cache", cache),
	))

	if !allowed {
		m.denialCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("policy", policy),
		))
	}

	// A hit serves the stored verdict, so only misses measure evaluation
	if !cacheHit {
		m.evalHist.Record(ctx, float64(evalDuration.Milliseconds()), metric.WithAttributes(
			attribute.String("policy", policy),
		))
	}
}

// RecordTransportCall records metrics for an upstream call.
func (m *metricsImpl) RecordTransportCall(ctx context.Context, kind, destination string, duration time.Duration, err error) {
	// Build common attributes
	attrs := []attribute.KeyValue{
		attribute.String("transport.kind", kind),
	}
	if destination != "" {
		attrs = append(attrs, attribute.String("transport.destination", destination))
	}

	opt := metric.WithAttributes(attrs...)

	// Always increment total counter
	m.callCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.callErrors.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	durationMs := float64(duration.Milliseconds())
	m.callHist.Record(ctx, durationMs, opt)
}

// RecordStreamReconnect records a reconnect attempt against the given endpoint.
func (m *metricsImpl) RecordStreamReconnect(ctx context.Context, endpoint string) {
	m.reconnectCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stream.endpoint", endpoint),
	))
}

// MetricsFromObserver creates a Metrics recording through the
// Observer's meter.
func MetricsFromObserver(obs Observer) (Metrics, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return newMetrics(obs.Meter())
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordDecision(ctx context.Context, policy string, allowed, cacheHit bool, evalDuration time.Duration) {
}

func (m *noopMetrics) RecordTransportCall(ctx context.Context, kind, destination string, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordStreamReconnect(ctx context.Context, endpoint string) {}

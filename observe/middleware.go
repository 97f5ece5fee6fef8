package observe

import (
	"context"
	"time"
)

// OpFunc is the signature for upstream operation functions.
// This is the standard function signature that Middleware wraps.
type OpFunc func(ctx context.Context, op OpMeta) (any, error)

// Middleware instruments upstream operations with tracing, metrics,
// and logging in one pass. The wrapped OpFunc is safe for concurrent
// use, and errors from the inner function propagate unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware assembles a middleware from the three primitives.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Wrap instruments fn. Each call is recorded as an upstream transport
// call using the operation's kind and destination.
func (m *Middleware) Wrap(fn OpFunc) OpFunc {
	return func(ctx context.Context, op OpMeta) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		result, err := fn(ctx, op)
		elapsed := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordTransportCall(ctx, op.Kind, op.Destination, elapsed, err)
		m.logCall(ctx, op, elapsed, err)
		return result, err
	}
}

func (m *Middleware) logCall(ctx context.Context, op OpMeta, elapsed time.Duration, err error) {
	logger := m.logger.WithOp(op)
	fields := []Field{{Key: "duration_ms", Value: float64(elapsed.Milliseconds())}}
	if err != nil {
		logger.Error(ctx, "upstream_call_failed",
			append(fields, Field{Key: "error", Value: err.Error()})...)
		return
	}
	logger.Info(ctx, "upstream_call_completed", fields...)
}

// MiddlewareFromObserver assembles a Middleware from the observer's
// tracer, meter, and logger.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

package gateway

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/gateops/observe"
	"github.com/jonwraymond/gateops/resilience"
	"github.com/jonwraymond/gateops/transport"
)

// Span name prefix for outbound calls; the transport kind becomes the
// suffix (transport.call.http, transport.call.stdio).
const opCall = "transport.call"

// InvokerConfig tunes the outbound call path.
type InvokerConfig struct {
	// Breaker holds the per-destination circuit thresholds.
	Breaker resilience.CircuitBreakerConfig

	// Retry bounds transient-failure attempts per call.
	Retry resilience.RetryConfig

	// Tracer, Metrics, and Logger record outbound calls. Nil disables
	// the corresponding signal.
	Tracer  observe.Tracer
	Metrics observe.Metrics
	Logger  observe.Logger
}

// Invoker carries authorized backend calls through the circuit
// breaker, the retry executor, and the transport pool. One span and
// one metric sample cover the whole logical call, attempts included.
type Invoker struct {
	pool       *transport.Pool
	breakers   *resilience.Breakers
	retry      *resilience.Retry
	middleware *observe.Middleware
}

// NewInvoker creates an invoker calling through the given pool.
func NewInvoker(pool *transport.Pool, config InvokerConfig) (*Invoker, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if config.Tracer == nil {
		config.Tracer = observe.NopTracer()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	return &Invoker{
		pool:       pool,
		breakers:   resilience.NewBreakers(config.Breaker),
		retry:      resilience.NewRetry(config.Retry),
		middleware: observe.NewMiddleware(config.Tracer, config.Metrics, config.Logger),
	}, nil
}

// Breakers exposes the per-destination circuit state, for health
// checks and operational resets.
func (i *Invoker) Breakers() *resilience.Breakers {
	return i.breakers
}

// Call invokes method on destination over the given transport kind.
//
// The destination's circuit breaker gates every attempt: an open
// circuit returns resilience.ErrCircuitOpen immediately, without
// checking out a handle or touching the network. Transient failures
// retry within the configured budget; permanent failures propagate on
// first occurrence. Exhausting the budget returns a
// *resilience.ExhaustedError wrapping the last cause.
func (i *Invoker) Call(ctx context.Context, kind transport.Kind, destination, method string, params any, opts *transport.CallOptions) (json.RawMessage, error) {
	exec := resilience.NewExecutor(
		resilience.WithCircuitBreaker(i.breakers.For(destination)),
		resilience.WithRetry(i.retry),
	)

	wrapped := i.middleware.Wrap(func(ctx context.Context, _ observe.OpMeta) (any, error) {
		var result json.RawMessage
		err := exec.Execute(ctx, func(ctx context.Context) error {
			handle, err := i.pool.Checkout(ctx, kind, destination)
			if err != nil {
				return err
			}
			raw, callErr := handle.Call(ctx, method, params, opts)
			i.pool.Release(handle, callErr)
			if callErr != nil {
				return callErr
			}
			result = raw
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})

	raw, err := wrapped(ctx, observe.OpMeta{
		Name:        opCall,
		Kind:        string(kind),
		Destination: destination,
	})
	if err != nil {
		return nil, err
	}
	result, _ := raw.(json.RawMessage)
	return result, nil
}

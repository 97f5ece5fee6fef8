package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/gateops/auth"
	"github.com/jonwraymond/gateops/cache"
	"github.com/jonwraymond/gateops/config"
	"github.com/jonwraymond/gateops/events"
	"github.com/jonwraymond/gateops/health"
	"github.com/jonwraymond/gateops/observe"
	"github.com/jonwraymond/gateops/policy"
	"github.com/jonwraymond/gateops/secret"
	"github.com/jonwraymond/gateops/stream"
	"github.com/jonwraymond/gateops/transport"
)

// Runtime is one fully wired gateway process: the authorization hot
// path, the outbound call path, policy loading, health checks, and
// telemetry, all built from a validated configuration.
type Runtime struct {
	Authorizer *Authorizer
	Invoker    *Invoker
	Engine     *policy.Engine
	Pool       *transport.Pool
	Health     *health.Aggregator
	Observer   observe.Observer

	// Watcher re-syncs policy sources in the background. Nil when
	// reloading is not configured.
	Watcher *config.Watcher

	streams   *stream.Client
	metrics   observe.Metrics
	stopWatch context.CancelFunc
	closers   []func() error
}

// NewRuntime wires a gateway from cfg. Secret references in the
// configuration resolve through the default provider registry before
// any component is built; construction fails fast on the first
// section that cannot be wired.
//
// Dialers define which transport kinds the pool can open. With none
// given, HTTP and stream dialers with default settings are installed;
// stdio always needs an explicit dialer because it requires a command
// allowlist.
func NewRuntime(ctx context.Context, cfg *config.Config, dialers ...transport.Dialer) (_ *Runtime, err error) {
	envProvider, err := secret.DefaultRegistry.Create("env", nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.ExpandSecrets(ctx, secret.NewResolver(true, envProvider)); err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.ToObserve())
	if err != nil {
		return nil, err
	}
	tracer, err := observe.TracerFromObserver(obs)
	if err != nil {
		return nil, err
	}
	metrics, err := observe.MetricsFromObserver(obs)
	if err != nil {
		return nil, err
	}
	logger := obs.Logger()

	rt := &Runtime{Observer: obs, metrics: metrics}
	defer func() {
		// Release whatever was opened before a later section failed.
		if err != nil {
			_ = rt.Close(ctx)
		}
	}()

	keys, err := KeyProviderFromConfig(cfg.Auth)
	if err != nil {
		return nil, err
	}
	validator := auth.NewValidator(cfg.Auth.ToValidator(), keys)

	rt.Engine = policy.NewEngine()
	watcher := config.NewWatcher(cfg.Policy.Sources, rt.Engine, cfg.Policy.ReloadInterval, logger)
	watcher.Sync(ctx)
	if cfg.Policy.ReloadInterval > 0 {
		rt.Watcher = watcher
	}
	if !loaded(rt.Engine, cfg.Policy.Default) {
		return nil, fmt.Errorf("gateway: default policy %q not loaded from %v", cfg.Policy.Default, cfg.Policy.Sources)
	}

	decisions, err := rt.decisionCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	emitter, err := rt.buildEmitter(ctx, cfg.Events, logger)
	if err != nil {
		return nil, err
	}

	if len(dialers) == 0 {
		dialers = []transport.Dialer{
			transport.NewHTTPDialer(transport.HTTPConfig{}),
			transport.NewStreamDialer(transport.StreamConfig{}),
		}
	}
	rt.Pool = transport.NewPool(cfg.Pool.ToPool(), dialers...)
	rt.closers = append(rt.closers, rt.Pool.Close)

	rt.Invoker, err = NewInvoker(rt.Pool, InvokerConfig{
		Breaker: cfg.Resilience.Breaker.ToBreaker(),
		Retry:   cfg.Resilience.Retry.ToRetry(),
		Tracer:  tracer,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	streamCfg := cfg.Stream.ToStream()
	streamCfg.OnReconnect = func(endpoint string) {
		rt.metrics.RecordStreamReconnect(context.Background(), endpoint)
	}
	rt.streams = stream.NewClient(rt.Pool, streamCfg)

	rt.Authorizer, err = NewAuthorizer(Config{
		Validator: validator,
		Engine:    rt.Engine,
		Policy:    cfg.Policy.Default,
		Decisions: decisions,
		TTL:       cfg.Cache.ToTTLPolicy(),
		Events:    emitter,
		Tracer:    tracer,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	rt.Health = health.NewAggregator()
	rt.Health.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	rt.Health.Register("breakers", health.NewBreakerChecker(rt.Invoker.Breakers()))
	rt.Health.Register("pool", health.NewPoolChecker(rt.Pool, health.PoolCheckerConfig{}))
	rt.Health.Register("policies", health.NewPolicyChecker(rt.Engine))
	if decisions != nil {
		rt.Health.Register("cache", health.NewCacheChecker(decisions, health.CacheCheckerConfig{}))
	}

	return rt, nil
}

// Start launches the background policy watcher. It returns
// immediately and is a no-op when reloading is not configured.
func (r *Runtime) Start(ctx context.Context) {
	if r.Watcher == nil || r.stopWatch != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.stopWatch = cancel
	go r.Watcher.Watch(ctx)
}

// Subscribe opens a filtered event subscription on endpoint through
// the shared pool. Reconnects count in the gateway's metrics.
func (r *Runtime) Subscribe(ctx context.Context, endpoint string, filter []string) (*stream.Subscription, error) {
	return r.streams.Subscribe(ctx, endpoint, filter)
}

// Close releases everything the runtime owns: the policy watcher, the
// transport pool, event sinks, the cache backend, and the telemetry
// providers. Errors are collected, not short-circuited.
func (r *Runtime) Close(ctx context.Context) error {
	if r.stopWatch != nil {
		r.stopWatch()
		r.stopWatch = nil
	}

	var errs []error
	for _, closer := range r.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if err := r.Observer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// decisionCache builds the configured cache backend. The none backend
// returns nil, which disables decision caching entirely.
func (r *Runtime) decisionCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemory(cfg.ToMemory()), nil
	case "redis":
		redis, err := cache.NewRedis(cfg.ToRedis())
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, redis.Close)
		return redis, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: cache backend %q", ErrUnknownBackend, cfg.Backend)
	}
}

// buildEmitter assembles the configured decision event sinks into a
// single emitter. No sinks means decisions are not published.
func (r *Runtime) buildEmitter(ctx context.Context, cfg config.EventsConfig, logger observe.Logger) (events.Emitter, error) {
	var sinks []events.Emitter
	for _, name := range cfg.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, events.NewLogEmitter(logger))
		case "pubsub":
			emitter, err := events.NewPubSubEmitter(ctx, cfg.PubSub.Project, cfg.PubSub.Topic, logger)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, emitter)
			r.closers = append(r.closers, emitter.Close)
		case "kafka":
			emitter := events.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
			sinks = append(sinks, emitter)
			r.closers = append(r.closers, emitter.Close)
		default:
			return nil, fmt.Errorf("%w: event sink %q", ErrUnknownBackend, name)
		}
	}
	switch len(sinks) {
	case 0:
		return events.NopEmitter{}, nil
	case 1:
		return sinks[0], nil
	default:
		return events.NewMultiEmitter(sinks...), nil
	}
}

// loaded reports whether the engine holds the named policy.
func loaded(engine *policy.Engine, name string) bool {
	for _, n := range engine.Names() {
		if n == name {
			return true
		}
	}
	return false
}

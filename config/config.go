package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/gateops/secret"
)

// Config is the gateway's startup configuration. Values come from a
// YAML file, GATEOPS_* environment variables, and built-in defaults,
// in that precedence order. Load validates every section before
// returning; a gateway never starts on out-of-range values.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Observe    ObserveConfig    `mapstructure:"observe"`
	Events     EventsConfig     `mapstructure:"events"`
}

// ServiceConfig identifies this gateway instance.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// AuthConfig configures token validation. Exactly which key source is
// used follows precedence: JWKSURL, then RSPublicKeyFile, then
// HSSecret. At least one must be set.
type AuthConfig struct {
	Issuer           string        `mapstructure:"issuer"`
	Audience         string        `mapstructure:"audience"`
	Methods          []string      `mapstructure:"methods"`
	Leeway           time.Duration `mapstructure:"leeway"`
	PrincipalClaim   string        `mapstructure:"principal_claim"`
	TenantClaim      string        `mapstructure:"tenant_claim"`
	RolesClaim       string        `mapstructure:"roles_claim"`
	PermissionsClaim string        `mapstructure:"permissions_claim"`
	RequiredClaims   []string      `mapstructure:"required_claims"`

	// HSSecret is HMAC key material. Supports secretref: and ${VAR}
	// indirection.
	HSSecret string `mapstructure:"hs_secret"`

	// RSPublicKeyFile is a PEM-encoded RSA public key file.
	RSPublicKeyFile string `mapstructure:"rs_public_key_file"`

	// JWKSURL is a JWKS endpoint for key discovery.
	JWKSURL      string        `mapstructure:"jwks_url"`
	JWKSCacheTTL time.Duration `mapstructure:"jwks_cache_ttl"`
}

// PolicyConfig locates policy documents and names the one the
// orchestrator evaluates.
type PolicyConfig struct {
	// Sources are policy document files or directories of *.json
	// documents. The document name is the file base name without
	// extension.
	Sources []string `mapstructure:"sources"`

	// Default is the policy evaluated when a request names none.
	Default string `mapstructure:"default"`

	// ReloadInterval is the watcher's polling interval. Zero disables
	// watching; sources are then read once at startup.
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

// CacheConfig configures the decision cache.
type CacheConfig struct {
	// Backend selects the cache implementation: memory, redis, or none.
	Backend  string `mapstructure:"backend"`
	Capacity int    `mapstructure:"capacity"`
	Shards   int    `mapstructure:"shards"`

	// DefaultTTL applies to resources with no (or an unknown)
	// sensitivity level. MaxTTL clamps every TTL, including rule
	// overrides.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxTTL     time.Duration `mapstructure:"max_ttl"`

	// SensitivityTTLs overrides the built-in sensitivity ladder.
	SensitivityTTLs map[string]time.Duration `mapstructure:"sensitivity_ttls"`

	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ResilienceConfig configures the outbound-call protections.
type ResilienceConfig struct {
	Breaker BreakerConfig `mapstructure:"breaker"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// BreakerConfig holds per-destination circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

// RetryConfig holds retry bounds for transient failures.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// PoolConfig bounds the transport connection pool.
type PoolConfig struct {
	MaxHandles int `mapstructure:"max_handles"`

	// Policy selects checkout behavior at capacity: block or fail_fast.
	Policy          string        `mapstructure:"policy"`
	CheckoutTimeout time.Duration `mapstructure:"checkout_timeout"`
}

// StreamConfig bounds event stream reconnection.
type StreamConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TracingConfig configures the tracing subsystem.
type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Exporter  string  `mapstructure:"exporter"`
	SamplePct float64 `mapstructure:"sample_pct"`
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
}

// EventsConfig selects decision event sinks.
type EventsConfig struct {
	// Sinks lists the active emitters: log, pubsub, kafka. Empty
	// disables decision events.
	Sinks []string `mapstructure:"sinks"`

	PubSub PubSubConfig `mapstructure:"pubsub"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
}

// PubSubConfig configures the Pub/Sub event sink.
type PubSubConfig struct {
	Project string `mapstructure:"project"`
	Topic   string `mapstructure:"topic"`
}

// KafkaConfig configures the Kafka event sink.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Load reads configuration from the given file, the environment, and
// defaults, then validates it. An empty path searches for gateops.yaml
// in the working directory and /etc/gateops; a missing file there is
// tolerated, an explicitly named missing file is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("gateops")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gateops")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key gets a default so GATEOPS_* environment overrides bind even
// without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "gateops")
	v.SetDefault("service.version", "dev")

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.methods", []string{"HS256", "RS256"})
	v.SetDefault("auth.leeway", "30s")
	v.SetDefault("auth.principal_claim", "sub")
	v.SetDefault("auth.tenant_claim", "")
	v.SetDefault("auth.roles_claim", "roles")
	v.SetDefault("auth.permissions_claim", "permissions")
	v.SetDefault("auth.required_claims", []string{})
	v.SetDefault("auth.hs_secret", "")
	v.SetDefault("auth.rs_public_key_file", "")
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.jwks_cache_ttl", "1h")

	v.SetDefault("policy.sources", []string{})
	v.SetDefault("policy.default", "default")
	v.SetDefault("policy.reload_interval", "5s")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.max_ttl", "1h")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "gateops:decision:")

	v.SetDefault("resilience.breaker.failure_threshold", 5)
	v.SetDefault("resilience.breaker.reset_timeout", "30s")
	v.SetDefault("resilience.breaker.success_threshold", 2)
	v.SetDefault("resilience.breaker.half_open_max_calls", 1)
	v.SetDefault("resilience.retry.max_attempts", 3)
	v.SetDefault("resilience.retry.initial_delay", "100ms")
	v.SetDefault("resilience.retry.max_delay", "30s")

	v.SetDefault("pool.max_handles", 50)
	v.SetDefault("pool.policy", "block")
	v.SetDefault("pool.checkout_timeout", "5s")

	v.SetDefault("stream.max_retries", 5)
	v.SetDefault("stream.initial_delay", "1s")
	v.SetDefault("stream.max_delay", "60s")
	v.SetDefault("stream.event_buffer", 256)

	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", false)
	v.SetDefault("observe.metrics.exporter", "none")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")

	v.SetDefault("events.sinks", []string{"log"})
	v.SetDefault("events.pubsub.project", "")
	v.SetDefault("events.pubsub.topic", "governance-decisions")
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "governance-decisions")
}

// Validate rejects out-of-range values. The first violation found is
// returned; its message names the offending key.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New("config: service.name is required")
	}

	if c.Auth.HSSecret == "" && c.Auth.RSPublicKeyFile == "" && c.Auth.JWKSURL == "" {
		return errors.New("config: one of auth.hs_secret, auth.rs_public_key_file, auth.jwks_url is required")
	}
	if len(c.Auth.Methods) == 0 {
		return errors.New("config: auth.methods must not be empty")
	}
	if c.Auth.Leeway < 0 {
		return fmt.Errorf("config: auth.leeway must not be negative, got %s", c.Auth.Leeway)
	}
	if c.Auth.PrincipalClaim == "" {
		return errors.New("config: auth.principal_claim is required")
	}
	if c.Auth.JWKSCacheTTL < 0 {
		return fmt.Errorf("config: auth.jwks_cache_ttl must not be negative, got %s", c.Auth.JWKSCacheTTL)
	}

	if c.Policy.Default == "" {
		return errors.New("config: policy.default is required")
	}
	if c.Policy.ReloadInterval < 0 {
		return fmt.Errorf("config: policy.reload_interval must not be negative, got %s", c.Policy.ReloadInterval)
	}
	for _, source := range c.Policy.Sources {
		if source == "" {
			return errors.New("config: policy.sources must not contain empty paths")
		}
	}

	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("config: cache.backend must be memory, redis, or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("config: cache.capacity must be at least 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.Shards < 1 {
		return fmt.Errorf("config: cache.shards must be at least 1, got %d", c.Cache.Shards)
	}
	if c.Cache.DefaultTTL < 0 {
		return fmt.Errorf("config: cache.default_ttl must not be negative, got %s", c.Cache.DefaultTTL)
	}
	if c.Cache.MaxTTL < 0 {
		return fmt.Errorf("config: cache.max_ttl must not be negative, got %s", c.Cache.MaxTTL)
	}
	for level, ttl := range c.Cache.SensitivityTTLs {
		if ttl < 0 {
			return fmt.Errorf("config: cache.sensitivity_ttls.%s must not be negative, got %s", level, ttl)
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("config: cache.redis.addr is required for the redis backend")
	}

	if c.Resilience.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("config: resilience.breaker.failure_threshold must be at least 1, got %d", c.Resilience.Breaker.FailureThreshold)
	}
	if c.Resilience.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("config: resilience.breaker.reset_timeout must be positive, got %s", c.Resilience.Breaker.ResetTimeout)
	}
	if c.Resilience.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("config: resilience.breaker.success_threshold must be at least 1, got %d", c.Resilience.Breaker.SuccessThreshold)
	}
	if c.Resilience.Breaker.HalfOpenMaxCalls < 1 {
		return fmt.Errorf("config: resilience.breaker.half_open_max_calls must be at least 1, got %d", c.Resilience.Breaker.HalfOpenMaxCalls)
	}
	if c.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: resilience.retry.max_attempts must be at least 1, got %d", c.Resilience.Retry.MaxAttempts)
	}
	if c.Resilience.Retry.InitialDelay <= 0 {
		return fmt.Errorf("config: resilience.retry.initial_delay must be positive, got %s", c.Resilience.Retry.InitialDelay)
	}
	if c.Resilience.Retry.MaxDelay < c.Resilience.Retry.InitialDelay {
		return fmt.Errorf("config: resilience.retry.max_delay must be at least initial_delay, got %s < %s",
			c.Resilience.Retry.MaxDelay, c.Resilience.Retry.InitialDelay)
	}

	if c.Pool.MaxHandles < 1 {
		return fmt.Errorf("config: pool.max_handles must be at least 1, got %d", c.Pool.MaxHandles)
	}
	switch c.Pool.Policy {
	case "block", "fail_fast":
	default:
		return fmt.Errorf("config: pool.policy must be block or fail_fast, got %q", c.Pool.Policy)
	}
	if c.Pool.Policy == "block" && c.Pool.CheckoutTimeout <= 0 {
		return fmt.Errorf("config: pool.checkout_timeout must be positive under the block policy, got %s", c.Pool.CheckoutTimeout)
	}

	if c.Stream.MaxRetries < 0 {
		return fmt.Errorf("config: stream.max_retries must not be negative, got %d", c.Stream.MaxRetries)
	}
	if c.Stream.InitialDelay <= 0 {
		return fmt.Errorf("config: stream.initial_delay must be positive, got %s", c.Stream.InitialDelay)
	}
	if c.Stream.MaxDelay < c.Stream.InitialDelay {
		return fmt.Errorf("config: stream.max_delay must be at least initial_delay, got %s < %s",
			c.Stream.MaxDelay, c.Stream.InitialDelay)
	}
	if c.Stream.EventBuffer < 1 {
		return fmt.Errorf("config: stream.event_buffer must be at least 1, got %d", c.Stream.EventBuffer)
	}

	obs := c.ToObserve()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("config: observe: %w", err)
	}

	for _, sink := range c.Events.Sinks {
		switch sink {
		case "log":
		case "pubsub":
			if c.Events.PubSub.Project == "" {
				return errors.New("config: events.pubsub.project is required for the pubsub sink")
			}
		case "kafka":
			if len(c.Events.Kafka.Brokers) == 0 {
				return errors.New("config: events.kafka.brokers is required for the kafka sink")
			}
		default:
			return fmt.Errorf("config: events.sinks must contain only log, pubsub, or kafka, got %q", sink)
		}
	}

	return nil
}

// ExpandSecrets resolves secretref: references and ${VAR} environment
// expansions in key material and addresses, in place. A nil resolver
// still performs strict environment expansion.
func (c *Config) ExpandSecrets(ctx context.Context, resolver *secret.Resolver) error {
	fields := []struct {
		key   string
		value *string
	}{
		{"auth.hs_secret", &c.Auth.HSSecret},
		{"auth.jwks_url", &c.Auth.JWKSURL},
		{"cache.redis.addr", &c.Cache.Redis.Addr},
		{"cache.redis.password", &c.Cache.Redis.Password},
		{"events.pubsub.project", &c.Events.PubSub.Project},
	}
	for _, f := range fields {
		resolved, err := resolver.ResolveValue(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", f.key, err)
		}
		*f.value = resolved
	}

	brokers, err := resolver.ResolveSlice(ctx, c.Events.Kafka.Brokers)
	if err != nil {
		return fmt.Errorf("config: events.kafka.brokers: %w", err)
	}
	c.Events.Kafka.Brokers = brokers
	return nil
}

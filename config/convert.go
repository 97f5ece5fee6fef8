package config

import (
	"github.com/jonwraymond/gateops/auth"
	"github.com/jonwraymond/gateops/cache"
	"github.com/jonwraymond/gateops/observe"
	"github.com/jonwraymond/gateops/resilience"
	"github.com/jonwraymond/gateops/stream"
	"github.com/jonwraymond/gateops/transport"
)

// ParseExhaustionPolicy maps the config string to the pool policy.
// Unknown values fall back to Block, the safer default; Validate has
// already rejected them on the Load path.
func ParseExhaustionPolicy(s string) transport.ExhaustionPolicy {
	if s == "fail_fast" {
		return transport.FailFast
	}
	return transport.Block
}

// ToValidator builds the token validator configuration. Key material
// is handled separately: the caller picks a key provider from
// HSSecret, RSPublicKeyFile, or JWKSURL.
func (c AuthConfig) ToValidator() auth.ValidatorConfig {
	return auth.ValidatorConfig{
		Issuer:           c.Issuer,
		Audience:         c.Audience,
		Methods:          c.Methods,
		Leeway:           c.Leeway,
		RequiredClaims:   c.RequiredClaims,
		PrincipalClaim:   c.PrincipalClaim,
		TenantClaim:      c.TenantClaim,
		RolesClaim:       c.RolesClaim,
		PermissionsClaim: c.PermissionsClaim,
	}
}

// ToJWKS builds the JWKS key provider configuration.
func (c AuthConfig) ToJWKS() auth.JWKSConfig {
	return auth.JWKSConfig{
		URL:      c.JWKSURL,
		CacheTTL: c.JWKSCacheTTL,
	}
}

// ToTTLPolicy builds the decision TTL policy. The built-in sensitivity
// ladder applies unless SensitivityTTLs overrides it.
func (c CacheConfig) ToTTLPolicy() cache.TTLPolicy {
	p := cache.DefaultTTLPolicy()
	p.DefaultTTL = c.DefaultTTL
	p.MaxTTL = c.MaxTTL
	if len(c.SensitivityTTLs) > 0 {
		p.BySensitivity = c.SensitivityTTLs
	}
	return p
}

// ToMemory builds the in-memory cache configuration.
func (c CacheConfig) ToMemory() cache.MemoryConfig {
	return cache.MemoryConfig{
		Capacity: c.Capacity,
		Shards:   c.Shards,
	}
}

// ToRedis builds the redis cache configuration.
func (c CacheConfig) ToRedis() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
}

// ToBreaker builds the per-destination circuit breaker configuration.
func (c BreakerConfig) ToBreaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.FailureThreshold,
		ResetTimeout:     c.ResetTimeout,
		SuccessThreshold: c.SuccessThreshold,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
	}
}

// ToRetry builds the retry executor configuration.
func (c RetryConfig) ToRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
	}
}

// ToPool builds the connection pool configuration.
func (c PoolConfig) ToPool() transport.PoolConfig {
	return transport.PoolConfig{
		MaxHandles:      c.MaxHandles,
		Policy:          ParseExhaustionPolicy(c.Policy),
		CheckoutTimeout: c.CheckoutTimeout,
	}
}

// ToStream builds the streaming client configuration.
func (c StreamConfig) ToStream() stream.Config {
	return stream.Config{
		MaxRetries:   c.MaxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		EventBuffer:  c.EventBuffer,
	}
}

// ToObserve builds the telemetry configuration.
func (c *Config) ToObserve() observe.Config {
	return observe.Config{
		ServiceName: c.Service.Name,
		Version:     c.Service.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Observe.Logging.Enabled,
			Level:   c.Observe.Logging.Level,
		},
	}
}

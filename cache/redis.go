package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed decision cache.
type RedisConfig struct {
	// Client is an existing Redis client to use. If nil, one is created
	// from Addr, Password, and DB.
	Client *redis.Client

	// Addr is the Redis server address. Default: "localhost:6379".
	Addr string

	// Password is the Redis password, if any.
	Password string

	// DB is the Redis database number.
	DB int

	// Prefix is prepended to every key, namespacing this cache's entries.
	Prefix string

	// DialTimeout bounds the connectivity check at construction.
	// Default: 5s.
	DialTimeout time.Duration
}

// Redis is a Redis-backed cache for deployments that need decisions
// shared across gateway replicas. The in-process Memory cache is the
// default; Redis trades a network round trip per lookup for cross-replica
// reuse.
type Redis struct {
	client *redis.Client
	prefix string

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedis creates a Redis-backed cache and verifies connectivity.
// Fails fast if the server is unreachable.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	client := config.Client
	if client == nil {
		addr := config.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.Password,
			DB:       config.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis connection failed: %w", err)
	}

	return &Redis{
		client: client,
		prefix: config.Prefix,
	}, nil
}

// Get retrieves a value from Redis. Returns (nil, false) on miss. A
// transport error degrades to a miss rather than failing the caller:
// the decision is simply re-evaluated.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return val, true
}

// Set stores a value with the given TTL. TTL<=0 means the value is not
// stored. Expiry is enforced server-side by Redis.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis delete: %w", err)
	}
	return nil
}

// Metrics returns hit/miss counts observed by this client. Entry counts
// and evictions live server-side and are not reported here.
func (r *Redis) Metrics() Metrics {
	return Metrics{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
	}
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ensure Redis implements Cache
var _ Cache = (*Redis)(nil)

package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength caps the size of a cache key. Decision keys stay well
// under this, but callers can hand us arbitrary strings.
const MaxKeyLength = 512

var (
	// ErrNilCache is returned when an operation is attempted on a nil cache.
	ErrNilCache = errors.New("cache: cache is nil")
	// ErrInvalidKey is returned for empty, blank, or control-character keys.
	ErrInvalidKey = errors.New("cache: key is invalid")
	// ErrKeyTooLong is returned when a key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache memoizes authorization decisions. Implementations must be safe
// for concurrent use and should honor context cancellation where the
// backing store supports it. A read racing a write for the same key may
// observe either value, never a torn one.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL. TTL<=0 means no caching.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error
}

// Metrics reports cumulative cache activity.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Entries     int
}

// ValidateKey rejects keys that would be ambiguous or unsafe in a
// backing store: blank keys, keys over MaxKeyLength, and keys carrying
// line breaks.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case strings.ContainsAny(key, "\n\r"):
		return ErrInvalidKey
	}
	return nil
}

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// newTestRedis connects to the server named by REDIS_ADDR, skipping the
// test when none is configured. Entries are namespaced per test run so
// concurrent runs against a shared server do not collide.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis integration test")
	}

	r, err := NewRedis(RedisConfig{
		Addr:   addr,
		Prefix: fmt.Sprintf("gateops-test:%d:", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedis_GetSetDelete(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	// Miss on empty cache
	val, ok := cache.Get(ctx, "nonexistent")
	if ok {
		t.Error("Get on empty cache should return ok=false")
	}
	if val != nil {
		t.Error("Get on empty cache should return nil value")
	}

	key := "test-key"
	value := []byte("test-value")
	if err := cache.Set(ctx, key, value, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Error("Get after Set should return ok=true")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get after Delete should return ok=false")
	}

	// Delete is idempotent
	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete on non-existent key should not error, got: %v", err)
	}
}

func TestRedis_Expiry(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	key := "expiring-key"
	if err := cache.Set(ctx, key, []byte("v"), 100*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok := cache.Get(ctx, key); !ok {
		t.Error("Get immediately after Set should return ok=true")
	}

	time.Sleep(200 * time.Millisecond)

	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get after expiry should return ok=false")
	}
}

func TestRedis_ZeroTTL(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	key := "zero-ttl-key"
	if err := cache.Set(ctx, key, []byte("v"), 0); err != nil {
		t.Fatalf("Set with TTL=0 failed: %v", err)
	}

	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get after Set with TTL=0 should return ok=false")
	}
}

func TestRedis_InvalidKey(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	err := cache.Set(ctx, "bad\nkey", []byte("v"), time.Minute)
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set with invalid key = %v, want %v", err, ErrInvalidKey)
	}
}

func TestRedis_Metrics(t *testing.T) {
	cache := newTestRedis(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "a", []byte("1"), time.Minute)
	_, _ = cache.Get(ctx, "a")       // hit
	_, _ = cache.Get(ctx, "missing") // miss

	m := cache.Metrics()
	if m.Hits != 1 {
		t.Errorf("Hits = %d, want 1", m.Hits)
	}
	if m.Misses != 1 {
		t.Errorf("Misses = %d, want 1", m.Misses)
	}
}

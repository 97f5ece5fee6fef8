package cache

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// MemoryConfig configures the in-memory decision cache.
type MemoryConfig struct {
	// Capacity is the maximum number of entries held across all shards.
	// Insertion past capacity evicts the least-recently-used entry in the
	// key's shard, independent of TTL. Default: 1000.
	Capacity int

	// Shards is the number of independently locked segments. More shards
	// means less contention between unrelated keys. Clamped to Capacity so
	// every shard can hold at least one entry. Default: 16.
	Shards int
}

// Memory is a capacity-bounded in-memory cache with per-entry TTL and
// least-recently-used eviction. Keys are spread across shards, each with
// its own lock, so concurrent access to unrelated keys never serializes.
//
// Eviction order is exact LRU within a shard. With Shards: 1 it is exact
// LRU across the whole cache.
type Memory struct {
	shards []*shard
}

type shard struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an in-memory cache with the given config.
func NewMemory(config MemoryConfig) *Memory {
	if config.Capacity <= 0 {
		config.Capacity = 1000
	}
	if config.Shards <= 0 {
		config.Shards = 16
	}
	if config.Shards > config.Capacity {
		config.Shards = config.Capacity
	}

	shards := make([]*shard, config.Shards)
	base := config.Capacity / config.Shards
	extra := config.Capacity % config.Shards
	for i := range shards {
		capacity := base
		if i < extra {
			capacity++
		}
		shards[i] = &shard{
			capacity: capacity,
			entries:  make(map[string]*list.Element),
			order:    list.New(),
		}
	}
	return &Memory{shards: shards}
}

func (c *Memory) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or
// expiry. A hit refreshes the entry's recency.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if !time.Now().Before(e.expiresAt) {
		// Expired - clean up lazily
		s.order.Remove(elem)
		delete(s.entries, key)
		s.expirations++
		s.misses++
		return nil, false
	}

	s.order.MoveToFront(elem)
	s.hits++
	return e.value, true
}

// Set stores a value with the given TTL. TTL<=0 means the value is not
// stored at all.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	s := c.shardFor(key)
	expiresAt := time.Now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToFront(elem)
		return nil
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*entry).key)
			s.evictions++
		}
	}

	s.entries[key] = s.order.PushFront(&entry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *Memory) Delete(_ context.Context, key string) error {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.order.Remove(elem)
		delete(s.entries, key)
	}
	return nil
}

// Len returns the number of live entries. Entries past their expiry that
// have not yet been lazily collected are still counted.
func (c *Memory) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Metrics returns cumulative cache activity across all shards.
func (c *Memory) Metrics() Metrics {
	var m Metrics
	for _, s := range c.shards {
		s.mu.Lock()
		m.Hits += s.hits
		m.Misses += s.misses
		m.Evictions += s.evictions
		m.Expirations += s.expirations
		m.Entries += len(s.entries)
		s.mu.Unlock()
	}
	return m
}

// Ensure Memory implements Cache
var _ Cache = (*Memory)(nil)

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/gateops/resilience"
)

// Kind identifies a transport wire protocol.
type Kind string

// Supported transport kinds.
const (
	KindHTTP   Kind = "http"
	KindStream Kind = "stream"
	KindStdio  Kind = "stdio"
)

// ExhaustionPolicy selects what Checkout does when every handle slot is
// taken by a checked-out handle.
type ExhaustionPolicy int

const (
	// Block waits up to CheckoutTimeout for a handle to be released.
	Block ExhaustionPolicy = iota

	// FailFast returns ErrPoolExhausted immediately.
	FailFast
)

func (p ExhaustionPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case FailFast:
		return "fail_fast"
	default:
		return "unknown"
	}
}

// Conn is a live connection owned by the pool through a Handle.
type Conn interface {
	// Healthy reports whether the connection can serve another exchange.
	Healthy() bool

	// Close releases the underlying resources.
	Close() error
}

// Caller is implemented by connections that serve request/response
// calls (HTTP and stdio kinds).
type Caller interface {
	Call(ctx context.Context, method string, params any, opts *CallOptions) (json.RawMessage, error)
}

// CallOptions carries per-call overrides.
type CallOptions struct {
	// Timeout overrides the transport's default timeout for this call.
	// Zero keeps the default.
	Timeout time.Duration
}

// Dialer creates connections for one transport kind.
type Dialer interface {
	// Kind returns the transport kind this dialer serves.
	Kind() Kind

	// Dial opens a new connection to the destination.
	Dial(ctx context.Context, destination string) (Conn, error)
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	// MaxHandles bounds live handles across all transport kinds.
	// Default: 50
	MaxHandles int

	// Policy selects blocking or fail-fast checkout at capacity.
	// Default: Block
	Policy ExhaustionPolicy

	// CheckoutTimeout bounds how long a Block checkout waits for a
	// handle. Ignored under FailFast.
	// Default: 5 seconds
	CheckoutTimeout time.Duration
}

// Handle is a checked-out transport connection. It is owned by exactly
// one caller between Checkout and Release and must never be shared
// concurrently. Give it back with Pool.Release exactly once, passing
// the error (if any) from its use so the pool can decide between reuse
// and discard.
type Handle struct {
	conn        Conn
	kind        Kind
	destination string
	created     time.Time

	// Guarded by the owning pool's mutex during checkout/release
	// transitions; stable while checked out.
	lastUsed time.Time
	inUse    bool
}

// Kind returns the handle's transport kind.
func (h *Handle) Kind() Kind { return h.kind }

// Destination returns the destination the handle is connected to.
func (h *Handle) Destination() string { return h.destination }

// CreatedAt returns when the connection was established.
func (h *Handle) CreatedAt() time.Time { return h.created }

// LastUsedAt returns when the handle last started or finished a
// checkout. Only the current owner may call it.
func (h *Handle) LastUsedAt() time.Time { return h.lastUsed }

// Conn returns the underlying connection for kind-specific use, such
// as opening an event stream. The caller must not Close it; the pool
// owns the connection lifecycle.
func (h *Handle) Conn() Conn { return h.conn }

// Call performs a request/response exchange on the handle. It fails
// with ErrNotCallable for stream connections.
func (h *Handle) Call(ctx context.Context, method string, params any, opts *CallOptions) (json.RawMessage, error) {
	caller, ok := h.conn.(Caller)
	if !ok {
		return nil, fmt.Errorf("%w: kind %s", ErrNotCallable, h.kind)
	}
	return caller.Call(ctx, method, params, opts)
}

// Pool hands out transport connections, reusing idle ones per
// destination and bounding the total across all kinds. It is safe for
// concurrent use.
type Pool struct {
	config  PoolConfig
	dialers map[Kind]Dialer
	limit   *resilience.Bulkhead

	mu      sync.Mutex
	idle    map[string][]*Handle
	waiters []chan struct{}
	live    int
	closed  bool
}

// NewPool creates a connection pool serving the given dialers.
func NewPool(config PoolConfig, dialers ...Dialer) *Pool {
	// Apply defaults
	if config.MaxHandles <= 0 {
		config.MaxHandles = 50
	}
	if config.CheckoutTimeout <= 0 {
		config.CheckoutTimeout = 5 * time.Second
	}

	byKind := make(map[Kind]Dialer, len(dialers))
	for _, d := range dialers {
		byKind[d.Kind()] = d
	}

	return &Pool{
		config:  config,
		dialers: byKind,
		limit: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: config.MaxHandles,
		}),
		idle: make(map[string][]*Handle),
	}
}

func handleKey(kind Kind, destination string) string {
	return string(kind) + "|" + destination
}

// Checkout returns a handle connected to the destination, reusing a
// healthy idle connection when one exists. At capacity it first evicts
// the least recently used idle handle to another destination; when
// every handle is checked out it blocks until one is released or fails
// fast, per the configured policy.
func (p *Pool) Checkout(ctx context.Context, kind Kind, destination string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dialer, ok := p.dialers[kind]
	if !ok {
		return nil, fmt.Errorf("transport: no dialer registered for kind %q", kind)
	}
	if destination == "" {
		return nil, errors.New("transport: destination is empty")
	}

	key := handleKey(kind, destination)

	var deadline <-chan time.Time
	if p.config.Policy == Block {
		timer := time.NewTimer(p.config.CheckoutTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		h, err := p.tryCheckout(ctx, dialer, kind, key, destination)
		if err != nil || h != nil {
			return h, err
		}

		// Every handle is checked out.
		if p.config.Policy == FailFast {
			return nil, p.exhausted()
		}

		wake := make(chan struct{})
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		p.waiters = append(p.waiters, wake)
		p.mu.Unlock()

		// A release may have slipped in before the waiter was
		// registered; check again so it is not missed.
		h, err = p.tryCheckout(ctx, dialer, kind, key, destination)
		if err != nil || h != nil {
			p.abandonWait(wake)
			return h, err
		}

		select {
		case <-wake:
		case <-deadline:
			p.abandonWait(wake)
			return nil, p.exhausted()
		case <-ctx.Done():
			p.abandonWait(wake)
			return nil, ctx.Err()
		}
	}
}

// tryCheckout makes one non-blocking attempt: reuse an idle handle to
// the destination, dial under the cap, or evict an idle handle to
// another destination and dial. It returns (nil, nil) when every
// handle is checked out.
func (p *Pool) tryCheckout(ctx context.Context, dialer Dialer, kind Kind, key, destination string) (*Handle, error) {
	now := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	var reuse *Handle
	var stale []*Handle
	for {
		h := p.popIdleLocked(key)
		if h == nil {
			break
		}
		if h.conn.Healthy() {
			h.inUse = true
			h.lastUsed = now
			reuse = h
			break
		}
		stale = append(stale, h)
	}
	p.mu.Unlock()

	for _, h := range stale {
		p.destroy(h)
	}
	if reuse != nil {
		return reuse, nil
	}

	if p.limit.TryAcquire() {
		return p.dialHandle(ctx, dialer, kind, destination)
	}

	// Prefer evicting an idle handle to another destination over
	// waiting for a release.
	if evicted := p.takeOldestIdle(); evicted != nil {
		p.destroy(evicted)
		if p.limit.TryAcquire() {
			return p.dialHandle(ctx, dialer, kind, destination)
		}
	}

	return nil, nil
}

func (p *Pool) dialHandle(ctx context.Context, dialer Dialer, kind Kind, destination string) (*Handle, error) {
	conn, err := dialer.Dial(ctx, destination)
	if err != nil {
		p.freeSlot()
		return nil, fmt.Errorf("transport: dial %s %s: %w", kind, destination, err)
	}

	now := time.Now()
	h := &Handle{
		conn:        conn,
		kind:        kind,
		destination: destination,
		created:     now,
		lastUsed:    now,
		inUse:       true,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		p.limit.Release()
		return nil, ErrPoolClosed
	}
	p.live++
	p.mu.Unlock()
	return h, nil
}

func (p *Pool) exhausted() error {
	return fmt.Errorf("%w: %d handles checked out (policy %s)",
		ErrPoolExhausted, p.config.MaxHandles, p.config.Policy)
}

// Release returns a handle to the pool. A nil callErr and a healthy
// connection put the handle back in the idle set for reuse; anything
// else discards it. Releasing a handle twice is a no-op.
func (p *Pool) Release(h *Handle, callErr error) {
	if h == nil {
		return
	}

	p.mu.Lock()
	if !h.inUse {
		p.mu.Unlock()
		return
	}
	h.inUse = false
	h.lastUsed = time.Now()

	if callErr == nil && !p.closed && h.conn.Healthy() {
		key := handleKey(h.kind, h.destination)
		p.idle[key] = append(p.idle[key], h)
		p.wakeOneLocked()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.destroy(h)
}

// Close discards every idle connection, wakes every blocked checkout,
// and marks the pool closed. Handles still checked out are discarded
// as they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var all []*Handle
	for key, list := range p.idle {
		all = append(all, list...)
		delete(p.idle, key)
	}
	for _, wake := range p.waiters {
		close(wake)
	}
	p.waiters = nil
	p.mu.Unlock()

	for _, h := range all {
		p.destroy(h)
	}
	return nil
}

// PoolStats is a point-in-time view of pool occupancy.
type PoolStats struct {
	// Capacity is the configured MaxHandles.
	Capacity int

	// Live is the number of existing handles, idle and checked out.
	Live int

	// Idle is the number of handles waiting for reuse.
	Idle int

	// InUse is the number of handles currently checked out.
	InUse int
}

// Stats returns current pool occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := 0
	for _, list := range p.idle {
		idle += len(list)
	}
	return PoolStats{
		Capacity: p.config.MaxHandles,
		Live:     p.live,
		Idle:     idle,
		InUse:    p.live - idle,
	}
}

// popIdleLocked removes and returns the most recently used idle handle
// for the key. Caller holds p.mu.
func (p *Pool) popIdleLocked(key string) *Handle {
	list := p.idle[key]
	if len(list) == 0 {
		return nil
	}
	h := list[len(list)-1]
	list = list[:len(list)-1]
	if len(list) == 0 {
		delete(p.idle, key)
	} else {
		p.idle[key] = list
	}
	return h
}

// takeOldestIdle removes and returns the least recently used idle
// handle across all destinations, or nil if every handle is in use.
func (p *Pool) takeOldestIdle() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	var oldestKey string
	oldestIdx := -1
	var oldest *Handle
	for key, list := range p.idle {
		for i, h := range list {
			if oldest == nil || h.lastUsed.Before(oldest.lastUsed) {
				oldest = h
				oldestKey = key
				oldestIdx = i
			}
		}
	}
	if oldest == nil {
		return nil
	}

	list := p.idle[oldestKey]
	list = append(list[:oldestIdx], list[oldestIdx+1:]...)
	if len(list) == 0 {
		delete(p.idle, oldestKey)
	} else {
		p.idle[oldestKey] = list
	}
	return oldest
}

// destroy closes a handle's connection and frees its slot.
func (p *Pool) destroy(h *Handle) {
	_ = h.conn.Close()
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
	p.freeSlot()
}

// freeSlot returns a slot to the limit and wakes one blocked checkout.
func (p *Pool) freeSlot() {
	p.limit.Release()
	p.mu.Lock()
	p.wakeOneLocked()
	p.mu.Unlock()
}

// wakeOneLocked wakes the longest-blocked checkout, if any. Caller
// holds p.mu.
func (p *Pool) wakeOneLocked() {
	if len(p.waiters) == 0 {
		return
	}
	close(p.waiters[0])
	p.waiters = p.waiters[1:]
}

// abandonWait removes a timed-out or cancelled waiter. When the waiter
// was already woken, the wake is handed to the next one so it is not
// lost.
func (p *Pool) abandonWait(wake chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, w := range p.waiters {
		if w == wake {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
	p.wakeOneLocked()
}

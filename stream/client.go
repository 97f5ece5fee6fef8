// Package stream provides a subscription client for server-sent event
// streams: long-lived, server-driven pushes of typed events.
//
// Subscriptions ride on stream-kind connections checked out of a
// transport pool, so open streams count toward the pool's global
// handle bound. Each subscription tracks the last event id it parsed
// and presents it on reconnect, letting the server resume after that
// event instead of replaying the stream. Reconnection follows the
// exponential backoff shape of the resilience package: transient drops
// are retried up to a bound, rejections equivalent to a client error
// terminate the subscription immediately.
package stream

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonwraymond/gateops/transport"
)

// Config configures subscription behavior.
type Config struct {
	// MaxRetries bounds reconnection attempts per outage. Exhausting
	// them surfaces a terminal error on the subscription.
	// Default: 5
	MaxRetries int

	// InitialDelay is the backoff before the first reconnection
	// attempt.
	// Default: 1 second
	InitialDelay time.Duration

	// MaxDelay caps the reconnection backoff.
	// Default: 60 seconds
	MaxDelay time.Duration

	// DisableReconnect turns automatic reconnection off: any
	// connection loss ends the subscription.
	DisableReconnect bool

	// EventBuffer is the capacity of each subscription's event
	// channel.
	// Default: 256
	EventBuffer int

	// OnReconnect, when set, is called each time a dropped stream is
	// successfully reestablished.
	OnReconnect func(endpoint string)
}

// Client creates subscriptions over pooled stream connections.
type Client struct {
	config Config
	pool   *transport.Pool
}

// NewClient creates a subscription client on the pool.
func NewClient(pool *transport.Pool, config Config) *Client {
	// Apply defaults
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 256
	}

	return &Client{config: config, pool: pool}
}

// opener is the stream-kind connection surface a subscription drives.
type opener interface {
	Open(ctx context.Context, types []string, lastEventID string) (io.ReadCloser, error)
}

// Subscribe checks a stream handle out of the pool and starts a
// subscription to the endpoint. The filter restricts delivery to the
// named event types, server-side and client-side both; empty delivers
// everything. The subscription lives until Close is called, ctx is
// cancelled, a client-error rejection arrives, or reconnection
// attempts are exhausted. The pooled handle is held for the
// subscription's whole lifetime.
func (c *Client) Subscribe(ctx context.Context, endpoint string, filter []string) (*Subscription, error) {
	handle, err := c.pool.Checkout(ctx, transport.KindStream, endpoint)
	if err != nil {
		return nil, fmt.Errorf("stream: checkout %s: %w", endpoint, err)
	}

	conn, ok := handle.Conn().(opener)
	if !ok {
		c.pool.Release(handle, nil)
		return nil, fmt.Errorf("%w: %T", ErrNotStream, handle.Conn())
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		client:   c,
		endpoint: endpoint,
		filter:   append([]string(nil), filter...),
		events:   make(chan Event, c.config.EventBuffer),
		ctx:      sctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.state.Store(int32(Connecting))

	go s.run(handle, conn)
	return s, nil
}

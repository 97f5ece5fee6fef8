package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/gateops/resilience"
)

// StreamConfig configures the event-stream transport.
type StreamConfig struct {
	// APIKey, when set, is sent as the X-API-Key header.
	APIKey string

	// BearerToken, when set, is sent as a Bearer Authorization header.
	BearerToken string

	// Headers are extra headers added to every stream request.
	Headers map[string]string

	// HTTPClient is the HTTP client to use. It must not carry an
	// overall timeout: streams are long-lived. If nil, a client
	// without a timeout is used.
	HTTPClient *http.Client
}

// StreamDialer creates connections for server-sent event streams.
type StreamDialer struct {
	config StreamConfig
	client *http.Client
}

// NewStreamDialer creates a stream dialer.
func NewStreamDialer(config StreamConfig) *StreamDialer {
	client := config.HTTPClient
	if client == nil {
		// No overall timeout; connecting and waiting for response
		// headers are bounded, reading the stream is not.
		client = &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	}
	return &StreamDialer{config: config, client: client}
}

// Kind returns KindStream.
func (d *StreamDialer) Kind() Kind {
	return KindStream
}

// Dial validates the endpoint URL and returns a stream connection.
func (d *StreamDialer) Dial(_ context.Context, destination string) (Conn, error) {
	endpoint, err := parseBaseURL(destination)
	if err != nil {
		return nil, err
	}
	return &StreamConn{
		client:   d.client,
		endpoint: endpoint,
		config:   d.config,
	}, nil
}

// StreamConn opens server-sent event streams to one endpoint. Each
// connect or reconnect of a subscription is one Open call; the caller
// owns the returned body and closes it when the stream ends.
type StreamConn struct {
	client   *http.Client
	endpoint *url.URL
	config   StreamConfig
	closed   atomic.Bool
}

var _ Conn = (*StreamConn)(nil)

// Open issues the SSE request. Event types go as the "types" query
// parameter; a non-empty lastEventID is sent as the Last-Event-ID
// header so the server resumes after that event instead of replaying.
// A 4xx status is permanent; 5xx and network failures are transient.
func (c *StreamConn) Open(ctx context.Context, types []string, lastEventID string) (io.ReadCloser, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	u := *c.endpoint
	if len(types) > 0 {
		q := u.Query()
		q.Set("types", strings.Join(types, ","))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}
	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream %s: %w", c.endpoint.Host, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("transport: stream %s: content type %q is not text/event-stream", c.endpoint.Host, ct)
	}

	return resp.Body, nil
}

// Healthy reports whether the connection is open.
func (c *StreamConn) Healthy() bool {
	return !c.closed.Load()
}

// Close marks the connection closed. Streams already open keep their
// bodies; the subscription owning them shuts them down.
func (c *StreamConn) Close() error {
	c.closed.Store(true)
	return nil
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/gateops/resilience"
)

// HTTPConfig configures the request/response HTTP transport.
type HTTPConfig struct {
	// Timeout is the default per-call timeout.
	// Default: 30 seconds.
	Timeout time.Duration

	// APIKey, when set, is sent as the X-API-Key header on every call.
	APIKey string

	// BearerToken, when set, is sent as a Bearer Authorization header.
	BearerToken string

	// Headers are extra headers added to every call.
	Headers map[string]string

	// HTTPClient is the HTTP client to use. If nil, a default client
	// with Timeout is used. One client is shared by every connection
	// this dialer creates, so the operating system connections behind
	// it are reused across handles.
	HTTPClient *http.Client
}

// HTTPDialer creates request/response connections to HTTP backends.
type HTTPDialer struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPDialer creates an HTTP dialer.
func NewHTTPDialer(config HTTPConfig) *HTTPDialer {
	// Apply defaults
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &HTTPDialer{config: config, client: client}
}

// Kind returns KindHTTP.
func (d *HTTPDialer) Kind() Kind {
	return KindHTTP
}

// Dial validates the destination URL and returns a connection to it.
func (d *HTTPDialer) Dial(_ context.Context, destination string) (Conn, error) {
	base, err := parseBaseURL(destination)
	if err != nil {
		return nil, err
	}
	return &HTTPConn{
		client: d.client,
		base:   base,
		config: d.config,
	}, nil
}

func parseBaseURL(destination string) (*url.URL, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid destination %q: %w", destination, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("transport: destination %q: scheme must be http or https", destination)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("transport: destination %q: missing host", destination)
	}
	return u, nil
}

// HTTPConn is a pooled request/response connection to one backend.
type HTTPConn struct {
	client *http.Client
	base   *url.URL
	config HTTPConfig
	closed atomic.Bool
}

var _ Conn = (*HTTPConn)(nil)
var _ Caller = (*HTTPConn)(nil)

// Call POSTs the JSON-encoded params to the method path under the
// destination and returns the raw JSON response payload. A 4xx status
// comes back as a permanent StatusError that the retry executor will
// not retry; 5xx and network failures are transient.
func (c *HTTPConn) Call(ctx context.Context, method string, params any, opts *CallOptions) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	if opts != nil && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("transport: encode params: %w", err)
	}

	u := c.base.JoinPath(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: call %s %s: %w", c.base.Host, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode < 500 {
			return nil, resilience.Permanent(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("transport: call %s %s: response is not valid JSON", c.base.Host, method)
	}
	return json.RawMessage(body), nil
}

func (c *HTTPConn) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}
	if c.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
}

// Healthy reports whether the connection is open. The shared HTTP
// client repairs broken sockets itself, so an open connection is
// always reusable.
func (c *HTTPConn) Healthy() bool {
	return !c.closed.Load()
}

// Close marks the connection closed. The HTTP client is shared with
// other connections from the same dialer and stays open.
func (c *HTTPConn) Close() error {
	c.closed.Store(true)
	return nil
}

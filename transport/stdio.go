package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jonwraymond/gateops/resilience"
)

// JSON-RPC 2.0 standard error codes that indicate a caller-side
// mistake; responses carrying them are never retried.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// StdioServerConfig describes one subprocess backend.
type StdioServerConfig struct {
	// Command is the executable to spawn.
	Command string

	// Args are the command arguments.
	Args []string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string

	// Env is a list of KEY=VALUE overrides appended to the parent
	// environment.
	Env []string

	// Stderr receives the subprocess's standard error output, line for
	// line. Nil discards it.
	Stderr io.Writer
}

// StdioConfig configures the stdio dialer.
type StdioConfig struct {
	// Servers maps destination names to subprocess definitions.
	Servers map[string]StdioServerConfig

	// CallTimeout is the default per-call timeout.
	// Default: 30 seconds.
	CallTimeout time.Duration

	// StopTimeout bounds each phase of the shutdown sequence: waiting
	// after stdin closes, waiting after SIGTERM, before the final kill.
	// Default: 3 seconds.
	StopTimeout time.Duration
}

// StdioDialer spawns subprocess backends that speak newline-delimited
// JSON-RPC 2.0 over their standard streams.
type StdioDialer struct {
	config StdioConfig
}

// NewStdioDialer creates a stdio dialer.
func NewStdioDialer(config StdioConfig) *StdioDialer {
	// Apply defaults
	if config.CallTimeout == 0 {
		config.CallTimeout = 30 * time.Second
	}
	if config.StopTimeout == 0 {
		config.StopTimeout = 3 * time.Second
	}

	return &StdioDialer{config: config}
}

// Kind returns KindStdio.
func (d *StdioDialer) Kind() Kind {
	return KindStdio
}

// Dial spawns the subprocess registered under the destination name.
func (d *StdioDialer) Dial(_ context.Context, destination string) (Conn, error) {
	spec, ok := d.config.Servers[destination]
	if !ok {
		return nil, fmt.Errorf("transport: no stdio server named %q", destination)
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stderr = spec.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start %s: %w", spec.Command, err)
	}

	return newStdioConn(stdin, stdout, cmd, d.config.CallTimeout, d.config.StopTimeout), nil
}

// rpcRequest is an outgoing JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is an incoming JSON-RPC 2.0 response. Exactly one of
// Result or Error is set.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// StdioConn is a pooled connection to one subprocess backend. Requests
// carry monotonically increasing ids; the read loop routes each
// response to its pending call.
type StdioConn struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	callTimeout time.Duration
	stopTimeout time.Duration

	writeMu sync.Mutex
	enc     *json.Encoder

	nextID atomic.Uint64

	pendMu  sync.Mutex
	pending map[uint64]chan *rpcResponse

	// done closes when the read loop exits; readErr is set first.
	done     chan struct{}
	doneOnce sync.Once
	readErr  error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*StdioConn)(nil)
var _ Caller = (*StdioConn)(nil)

func newStdioConn(stdin io.WriteCloser, stdout io.Reader, cmd *exec.Cmd, callTimeout, stopTimeout time.Duration) *StdioConn {
	c := &StdioConn{
		cmd:         cmd,
		stdin:       stdin,
		callTimeout: callTimeout,
		stopTimeout: stopTimeout,
		enc:         json.NewEncoder(stdin),
		pending:     make(map[uint64]chan *rpcResponse),
		done:        make(chan struct{}),
	}
	go c.readLoop(stdout)
	return c
}

// Call sends one JSON-RPC request and waits for its response.
func (c *StdioConn) Call(ctx context.Context, method string, params any, opts *CallOptions) (json.RawMessage, error) {
	if !c.Healthy() {
		return nil, c.closedErr()
	}

	timeout := c.callTimeout
	if opts != nil && opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	ch := make(chan *rpcResponse, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	c.writeMu.Lock()
	err := c.enc.Encode(req)
	c.writeMu.Unlock()
	if err != nil {
		// A broken stdin means the subprocess is gone.
		c.fail(err)
		return nil, fmt.Errorf("transport: send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, classifyRPC(resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		// The response may have arrived just before the subprocess
		// exited; prefer it over the exit error.
		select {
		case resp := <-ch:
			if resp.Error != nil {
				return nil, classifyRPC(resp.Error)
			}
			return resp.Result, nil
		default:
		}
		return nil, c.closedErr()
	}
}

// readLoop reads newline-delimited responses from the subprocess's
// stdout and routes them to pending calls. Lines that are not
// responses to a pending id (notifications, malformed output) are
// dropped.
func (c *StdioConn) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		id, err := strconv.ParseUint(string(bytes.TrimSpace(resp.ID)), 10, 64)
		if err != nil {
			continue
		}

		c.pendMu.Lock()
		ch := c.pending[id]
		delete(c.pending, id)
		c.pendMu.Unlock()

		if ch != nil {
			ch <- &resp
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.fail(err)
}

// fail records the first terminal error and wakes every pending call.
func (c *StdioConn) fail(err error) {
	c.doneOnce.Do(func() {
		c.readErr = err
		close(c.done)
	})
}

func (c *StdioConn) closedErr() error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: subprocess exited: %v", ErrConnClosed, c.readErr)
	default:
		return ErrConnClosed
	}
}

// Healthy reports whether the subprocess is still running and the
// connection has not been closed.
func (c *StdioConn) Healthy() bool {
	if c.closed.Load() {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close stops the subprocess: stdin is closed so a well-behaved server
// exits on its own, then SIGTERM, then kill, each phase bounded by the
// stop timeout.
func (c *StdioConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.stop()
	})
	return c.closeErr
}

func (c *StdioConn) stop() error {
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}

	exited := make(chan struct{})
	go func() {
		_ = c.cmd.Wait()
		close(exited)
	}()

	select {
	case <-exited:
		return nil
	case <-time.After(c.stopTimeout):
	}

	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = c.cmd.Process.Kill()
		<-exited
		return nil
	}

	select {
	case <-exited:
		return nil
	case <-time.After(c.stopTimeout):
	}

	if err := c.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("transport: kill subprocess: %w", err)
	}
	<-exited
	return nil
}

func classifyRPC(e *RPCError) error {
	switch e.Code {
	case codeParseError, codeInvalidRequest, codeMethodNotFound, codeInvalidParams:
		return resilience.Permanent(e)
	}
	return e
}

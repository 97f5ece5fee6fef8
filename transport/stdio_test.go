package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/gateops/resilience"
)

type stdioTestRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// startStdioServer wires a StdioConn to an in-process fake backend.
// The handler returns the response fields for one request, or nil to
// leave it unanswered.
func startStdioServer(t *testing.T, handle func(req stdioTestRequest) map[string]any) *StdioConn {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	conn := newStdioConn(reqW, respR, nil, time.Second, 50*time.Millisecond)

	go func() {
		defer func() { _ = respW.Close() }()
		scanner := bufio.NewScanner(reqR)
		enc := json.NewEncoder(respW)
		for scanner.Scan() {
			var req stdioTestRequest
			if json.Unmarshal(scanner.Bytes(), &req) != nil {
				continue
			}
			resp := handle(req)
			if resp == nil {
				continue
			}
			resp["jsonrpc"] = "2.0"
			resp["id"] = req.ID
			if enc.Encode(resp) != nil {
				return
			}
		}
	}()

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStdioConn_Call(t *testing.T) {
	var (
		mu  sync.Mutex
		got stdioTestRequest
	)
	conn := startStdioServer(t, func(req stdioTestRequest) map[string]any {
		mu.Lock()
		got = req
		mu.Unlock()
		return map[string]any{"result": map[string]any{"tools": []string{"search"}}}
	})

	result, err := conn.Call(context.Background(), "tools/list", map[string]string{"cursor": "abc"}, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(result) != `{"tools":["search"]}` {
		t.Errorf("Call() = %s", result)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", got.JSONRPC)
	}
	if got.Method != "tools/list" {
		t.Errorf("method = %q", got.Method)
	}
	if got.ID == 0 {
		t.Error("request id not assigned")
	}
	if string(got.Params) != `{"cursor":"abc"}` {
		t.Errorf("params = %s", got.Params)
	}
}

func TestStdioConn_Call_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		message       string
		wantPermanent bool
	}{
		{"method not found", -32601, "no such method", true},
		{"invalid params", -32602, "bad cursor", true},
		{"parse error", -32700, "unreadable", true},
		{"application error", -32000, "backend overloaded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := startStdioServer(t, func(req stdioTestRequest) map[string]any {
				return map[string]any{"error": map[string]any{"code": tt.code, "message": tt.message}}
			})

			_, err := conn.Call(context.Background(), "tools/call", nil, nil)
			var rpcErr *RPCError
			if !errors.As(err, &rpcErr) {
				t.Fatalf("Call() error = %v, want RPCError", err)
			}
			if rpcErr.Code != tt.code || rpcErr.Message != tt.message {
				t.Errorf("RPCError = %d %q, want %d %q", rpcErr.Code, rpcErr.Message, tt.code, tt.message)
			}
			if got := resilience.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v", got, tt.wantPermanent)
			}
		})
	}
}

func TestStdioConn_ResponsesRoutedByID(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	conn := newStdioConn(reqW, respR, nil, time.Second, 50*time.Millisecond)
	defer conn.Close()

	// Collect both requests, then answer them in reverse order.
	go func() {
		defer func() { _ = respW.Close() }()
		scanner := bufio.NewScanner(reqR)
		enc := json.NewEncoder(respW)
		var got []stdioTestRequest
		for scanner.Scan() {
			var req stdioTestRequest
			if json.Unmarshal(scanner.Bytes(), &req) != nil {
				continue
			}
			got = append(got, req)
			if len(got) == 2 {
				for i := len(got) - 1; i >= 0; i-- {
					_ = enc.Encode(map[string]any{
						"jsonrpc": "2.0",
						"id":      got[i].ID,
						"result":  got[i].Params,
					})
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := fmt.Sprintf(`{"n":%d}`, n)
			result, err := conn.Call(context.Background(), "echo", json.RawMessage(want), nil)
			if err != nil {
				t.Errorf("Call(%d) error = %v", n, err)
				return
			}
			if string(result) != want {
				t.Errorf("Call(%d) = %s, want %s", n, result, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestStdioConn_ConcurrentCalls(t *testing.T) {
	conn := startStdioServer(t, func(req stdioTestRequest) map[string]any {
		return map[string]any{"result": req.Params}
	})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				want := fmt.Sprintf(`{"w":%d,"i":%d}`, w, i)
				result, err := conn.Call(context.Background(), "echo", json.RawMessage(want), nil)
				if err != nil {
					t.Errorf("Call() error = %v", err)
					return
				}
				if string(result) != want {
					t.Errorf("Call() = %s, want %s", result, want)
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestStdioConn_Call_Timeout(t *testing.T) {
	conn := startStdioServer(t, func(req stdioTestRequest) map[string]any {
		return nil // never answer
	})

	_, err := conn.Call(context.Background(), "tools/slow", nil, &CallOptions{Timeout: 30 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want DeadlineExceeded", err)
	}

	// The connection is still usable after a timed-out call.
	if !conn.Healthy() {
		t.Error("connection unhealthy after call timeout")
	}
}

func TestStdioConn_ExitFailsPendingCalls(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	conn := newStdioConn(reqW, respR, nil, time.Minute, 50*time.Millisecond)
	defer conn.Close()

	// Swallow the request, then simulate the subprocess dying.
	go func() {
		scanner := bufio.NewScanner(reqR)
		scanner.Scan()
		_ = respW.Close()
	}()

	_, err := conn.Call(context.Background(), "tools/list", nil, nil)
	if !errors.Is(err, ErrConnClosed) {
		t.Errorf("Call() error = %v, want ErrConnClosed", err)
	}
	if conn.Healthy() {
		t.Error("connection healthy after subprocess exit")
	}
}

func TestStdioConn_NoiseIgnored(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	conn := newStdioConn(reqW, respR, nil, time.Second, 50*time.Millisecond)
	defer conn.Close()

	// Log noise, notifications, and malformed lines must not disturb
	// response routing.
	go func() {
		defer func() { _ = respW.Close() }()
		scanner := bufio.NewScanner(reqR)
		if !scanner.Scan() {
			return
		}
		var req stdioTestRequest
		if json.Unmarshal(scanner.Bytes(), &req) != nil {
			return
		}
		_, _ = io.WriteString(respW, "starting up...\n")
		_, _ = io.WriteString(respW, `{"jsonrpc":"2.0","method":"progress","params":{"pct":50}}`+"\n")
		_, _ = io.WriteString(respW, "{not json\n")
		_, _ = fmt.Fprintf(respW, `{"jsonrpc":"2.0","id":%d,"result":"done"}`+"\n", req.ID)
	}()

	result, err := conn.Call(context.Background(), "tools/call", nil, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(result) != `"done"` {
		t.Errorf("Call() = %s, want \"done\"", result)
	}
}

func TestStdioConn_ResponseBeforeExit(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	conn := newStdioConn(reqW, respR, nil, time.Second, 50*time.Millisecond)
	defer conn.Close()

	// A one-shot backend answers and exits immediately; the answer
	// must win over the exit.
	go func() {
		scanner := bufio.NewScanner(reqR)
		if !scanner.Scan() {
			return
		}
		var req stdioTestRequest
		if json.Unmarshal(scanner.Bytes(), &req) != nil {
			return
		}
		_, _ = fmt.Fprintf(respW, `{"jsonrpc":"2.0","id":%d,"result":42}`+"\n", req.ID)
		_ = respW.Close()
	}()

	result, err := conn.Call(context.Background(), "tools/once", nil, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(result) != "42" {
		t.Errorf("Call() = %s, want 42", result)
	}
}

func TestStdioDialer_Dial_UnknownServer(t *testing.T) {
	dialer := NewStdioDialer(StdioConfig{
		Servers: map[string]StdioServerConfig{
			"search": {Command: "search-server"},
		},
	})

	_, err := dialer.Dial(context.Background(), "payments")
	if err == nil || !strings.Contains(err.Error(), `no stdio server named "payments"`) {
		t.Errorf("Dial() error = %v", err)
	}
}

func TestStdioDialer_Defaults(t *testing.T) {
	dialer := NewStdioDialer(StdioConfig{})

	if dialer.config.CallTimeout != 30*time.Second {
		t.Errorf("CallTimeout = %v, want 30s", dialer.config.CallTimeout)
	}
	if dialer.config.StopTimeout != 3*time.Second {
		t.Errorf("StopTimeout = %v, want 3s", dialer.config.StopTimeout)
	}
}

func TestStdioDialer_RealSubprocess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	dialer := NewStdioDialer(StdioConfig{
		Servers: map[string]StdioServerConfig{
			"echo": {Command: "cat"},
		},
		CallTimeout: 2 * time.Second,
		StopTimeout: time.Second,
	})

	conn, err := dialer.Dial(context.Background(), "echo")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	// cat echoes the request line back; it parses as a response with
	// the same id and no result.
	result, err := conn.(*StdioConn).Call(context.Background(), "echo", nil, nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result != nil {
		t.Errorf("Call() = %s, want empty result", result)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if conn.Healthy() {
		t.Error("connection healthy after Close()")
	}

	// Closing stdin is enough for cat to exit; the process must be
	// reaped.
	if state := conn.(*StdioConn).cmd.ProcessState; state == nil {
		t.Error("subprocess not reaped after Close()")
	}
}

func TestStdioConn_CallAfterClose(t *testing.T) {
	conn := startStdioServer(t, func(req stdioTestRequest) map[string]any {
		return map[string]any{"result": true}
	})

	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := conn.Call(context.Background(), "tools/list", nil, nil); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Call() after Close() error = %v, want ErrConnClosed", err)
	}
}

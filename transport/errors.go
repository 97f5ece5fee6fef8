package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport operations.
var (
	// ErrPoolExhausted is returned when no handle can be acquired under
	// the current load: every slot is checked out and, under the
	// FailFast policy or past the checkout timeout, none freed up.
	ErrPoolExhausted = errors.New("transport: pool exhausted")

	// ErrPoolClosed is returned by Checkout after Close.
	ErrPoolClosed = errors.New("transport: pool closed")

	// ErrNotCallable is returned by Handle.Call for connection kinds
	// that do not serve request/response calls.
	ErrNotCallable = errors.New("transport: connection does not support request/response calls")

	// ErrConnClosed is returned when a call is attempted on a closed or
	// failed connection.
	ErrConnClosed = errors.New("transport: connection closed")
)

// StatusError reports a non-2xx HTTP response from a backend.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: http status %d", e.Code)
}

// RPCError is a JSON-RPC 2.0 error object returned by a stdio backend.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("transport: rpc error %d: %s", e.Code, e.Message)
}

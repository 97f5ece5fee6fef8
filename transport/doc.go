// Package transport manages outbound connections to backend tool
// servers across three wire protocols: HTTP request/response,
// long-lived event streams, and local subprocesses speaking JSON-RPC
// over stdio.
//
// The Pool is the single owner of all transport handles. Callers check
// a handle out for one destination, use it for exactly one logical
// exchange (or the lifetime of one stream subscription), and give it
// back with Release. The pool enforces one global bound across every
// transport kind; whether an exhausted pool blocks or fails fast is an
// explicit configuration choice, never a default picked silently.
//
// # Kinds
//
//   - KindHTTP: JSON request/response calls. A 4xx status is a
//     permanent error (the retry executor will not retry it); 5xx and
//     network failures are transient.
//
//   - KindStream: server-sent event subscriptions. The stream package
//     drives these connections; they count against the same global
//     bound as every other kind.
//
//   - KindStdio: a spawned subprocess exchanging newline-delimited
//     JSON-RPC 2.0 messages over its standard streams. The subprocess
//     is stopped (graceful, then forced) when its connection closes.
//
// # Usage
//
//	pool := transport.NewPool(transport.PoolConfig{
//	    MaxHandles:      50,
//	    Policy:          transport.Block,
//	    CheckoutTimeout: 5 * time.Second,
//	}, transport.NewHTTPDialer(transport.HTTPConfig{APIKey: key}))
//	defer pool.Close()
//
//	handle, err := pool.Checkout(ctx, transport.KindHTTP, "https://payments.internal")
//	if err != nil {
//	    return err
//	}
//	result, err := handle.Call(ctx, "tools/invoke", params, nil)
//	pool.Release(handle, err)
package transport

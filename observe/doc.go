// Package observe provides observability primitives for gateway operations.
//
// It is a pure instrumentation library: no authorization logic, no transport,
// no I/O beyond exporter setup. Consumers wire the observer into the
// authorizer and transport clients.
package observe

// Package config loads, validates, and watches the gateway's startup
// configuration.
//
// Values come from a YAML file, GATEOPS_* environment variables, and
// built-in defaults, in that precedence order. Every section maps onto
// its package's configuration type through a To* converter, so the
// wiring code never re-reads raw keys. Validation is fail fast: Load
// rejects any out-of-range value and the gateway does not start.
//
// Policy documents are the one configuration input that changes while
// the gateway runs. The Watcher polls the configured sources and swaps
// changed documents into the policy engine without a restart; a
// document that fails to compile leaves the previously loaded policy
// serving.
package config

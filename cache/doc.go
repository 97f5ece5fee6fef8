// Package cache memoizes authorization decisions.
//
// It provides a Cache interface with a capacity-bounded, LRU-evicting
// in-memory implementation and a Redis-backed one for sharing decisions
// across replicas, SHA-256-based decision key derivation, and a
// sensitivity-aware TTL policy: the more sensitive a resource, the
// shorter a decision about it may be reused, down to never for critical
// resources.
//
// With the default in-memory store, cached decisions are per-replica:
// two gateway instances may each evaluate the same request once. Configure
// the Redis store when decisions must be shared.
package cache

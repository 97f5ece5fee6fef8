// Package policy evaluates authorization rules against request input.
//
// An Engine holds named policies compiled from JSON rule documents.
// Load compiles a document and atomically replaces the named policy's
// snapshot, so in-flight evaluations always observe a complete policy.
// Evaluate is deterministic and side-effect free: rules are matched in
// a fixed priority order, deny overrides allow at equal or higher
// priority, and no matching rule denies by default.
//
// The engine knows nothing about caching; decision memoization is the
// caller's concern.
package policy

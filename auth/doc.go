// Package auth validates bearer tokens on the authorization path.
//
// The Validator verifies a JWT's signature, expiry, and required claims
// and extracts a Principal. Structurally malformed tokens are rejected
// before any signature work. Every rejection surfaces as the generic
// ErrInvalidToken; the internal reason travels in a RejectionError for
// audit logging. Signing keys come from a KeyProvider: static material,
// a kid-indexed key set, or a cached remote JWKS endpoint.
package auth

package gateway

import "errors"

// Construction errors. Authorize itself returns an error only when the
// caller's context ends; every authorization-path failure becomes a
// deny decision instead.
var (
	// ErrNilValidator indicates no token validator was configured.
	ErrNilValidator = errors.New("gateway: validator is nil")

	// ErrNilEngine indicates no policy engine was configured.
	ErrNilEngine = errors.New("gateway: engine is nil")

	// ErrNilPool indicates no transport pool was configured.
	ErrNilPool = errors.New("gateway: pool is nil")

	// ErrNoPolicy indicates no policy name was configured.
	ErrNoPolicy = errors.New("gateway: no policy configured")

	// ErrNoKeySource indicates the auth configuration names no signing
	// key material at all.
	ErrNoKeySource = errors.New("gateway: no signing key source configured")

	// ErrUnknownBackend indicates a backend selector names an
	// implementation this package does not provide.
	ErrUnknownBackend = errors.New("gateway: unknown backend")
)

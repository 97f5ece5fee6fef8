package secret

import "context"

// Provider fetches secret material from one backend. The ref is opaque
// to the resolver: the env provider reads it as a variable name, a
// vault-style provider would read it as a path.
//
// Implementations must be safe for concurrent use and must never log
// resolved values.
type Provider interface {
	// Name identifies the provider in secretref values.
	Name() string
	// Resolve returns the secret behind ref.
	Resolve(ctx context.Context, ref string) (string, error)
	// Close releases backend connections, if any.
	Close() error
}

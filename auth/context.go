package auth

import (
	"context"
)

// Context key for auth-related values.
type contextKey int

const principalKey contextKey = iota

// WithPrincipal returns a new context with the given principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal from the context.
// Returns nil if no principal is present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// SubjectFromContext retrieves the principal's subject from the context.
// Returns empty string if no principal is present.
func SubjectFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.Subject
}

// TenantIDFromContext retrieves the tenant ID from the context.
// Returns empty string if no principal is present or tenant is not set.
func TenantIDFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.TenantID
}

package auth

import "time"

// Principal is the authenticated subject extracted from a verified token.
type Principal struct {
	// Subject is the unique identifier (the "sub" claim).
	Subject string

	// TenantID is the tenant this principal belongs to (multi-tenancy).
	TenantID string

	// Roles are the roles granted to this principal.
	Roles []string

	// Permissions are explicit permissions granted to this principal.
	Permissions []string

	// Claims contains the full verified claim set.
	Claims map[string]any

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time

	// IssuedAt is when the token was issued.
	IssuedAt time.Time
}

// HasRole checks if the principal has a specific role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the principal has a specific permission.
func (p *Principal) HasPermission(perm string) bool {
	for _, q := range p.Permissions {
		if q == perm {
			return true
		}
	}
	return false
}

// IsExpired checks if the token backing this principal has expired.
func (p *Principal) IsExpired() bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(p.ExpiresAt)
}

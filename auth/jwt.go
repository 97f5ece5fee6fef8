package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ValidatorConfig configures the token validator.
type ValidatorConfig struct {
	// Issuer is the expected token issuer (iss claim).
	// Empty disables the issuer check.
	Issuer string

	// Audience is the expected token audience (aud claim).
	// Empty disables the audience check.
	Audience string

	// Methods lists the accepted signing algorithms.
	// Default: ["HS256", "RS256"]
	Methods []string

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration

	// RequiredClaims must all be present in the token.
	// The exp claim and the principal claim are always required.
	RequiredClaims []string

	// PrincipalClaim names the claim carrying the subject. Default: "sub".
	PrincipalClaim string

	// TenantClaim names the claim carrying the tenant ID.
	TenantClaim string

	// RolesClaim is the claim containing roles.
	// Default: "roles"
	RolesClaim string

	// PermissionsClaim is the claim containing permissions.
	// Default: "permissions"
	PermissionsClaim string
}

// KeyProvider retrieves signing keys for token validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a single static signing key.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a provider that returns the same key
// for every key ID.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the wrapped key regardless of key ID.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// KeySetProvider selects signing keys by key ID.
type KeySetProvider struct {
	keys map[string][]byte
}

// NewKeySetProvider creates a provider backed by a kid-to-key map.
func NewKeySetProvider(keys map[string][]byte) *KeySetProvider {
	return &KeySetProvider{keys: keys}
}

// GetKey returns the key for the given key ID, or ErrKeyNotFound.
func (p *KeySetProvider) GetKey(_ context.Context, keyID string) (any, error) {
	if key, ok := p.keys[keyID]; ok {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

// Validator verifies bearer tokens and extracts the principal.
//
// Validation order is cheapest-first: a structural check rejects
// malformed tokens before any key lookup or signature work. Signature,
// expiry, not-before, issuer, audience, and required-claim checks
// follow. All rejections surface as *RejectionError.
type Validator struct {
	config ValidatorConfig
	keys   KeyProvider
	parser *jwt.Parser
}

// NewValidator creates a token validator.
func NewValidator(config ValidatorConfig, keys KeyProvider) *Validator {
	// Apply defaults
	if len(config.Methods) == 0 {
		config.Methods = []string{"HS256", "RS256"}
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	if config.PermissionsClaim == "" {
		config.PermissionsClaim = "permissions"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(config.Methods),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}

	return &Validator{
		config: config,
		keys:   keys,
		parser: jwt.NewParser(opts...),
	}
}

// Validate verifies the token and returns the principal it carries.
// On failure it returns a *RejectionError whose message is the generic
// invalid-token category; the failed check is in its Reason field.
func (v *Validator) Validate(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, &RejectionError{Reason: ReasonMalformed, Err: jwt.ErrTokenMalformed}
	}

	parsed, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.GetKey(ctx, kid)
	})
	if err != nil {
		return nil, &RejectionError{Reason: classifyReason(err), Err: err}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &RejectionError{Reason: ReasonMalformed, Err: jwt.ErrTokenMalformed}
	}

	for _, name := range v.config.RequiredClaims {
		if _, present := claims[name]; !present {
			return nil, &RejectionError{Reason: ReasonMissingClaim, Err: jwt.ErrTokenRequiredClaimMissing}
		}
	}

	principal := v.buildPrincipal(claims)
	if principal.Subject == "" {
		return nil, &RejectionError{Reason: ReasonMissingClaim, Err: jwt.ErrTokenRequiredClaimMissing}
	}

	return principal, nil
}

// classifyReason maps a parse error to an audit reason.
func classifyReason(err error) string {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return ReasonKeyNotFound
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ReasonSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonWrongIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonWrongAudience
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonMissingClaim
	default:
		return ReasonUnverifiable
	}
}

func (v *Validator) buildPrincipal(claims jwt.MapClaims) *Principal {
	principal := &Principal{
		Claims: make(map[string]any, len(claims)),
	}

	for k, val := range claims {
		principal.Claims[k] = val
	}

	if subject, ok := claims[v.config.PrincipalClaim].(string); ok {
		principal.Subject = subject
	}

	if v.config.TenantClaim != "" {
		if tenant, ok := claims[v.config.TenantClaim].(string); ok {
			principal.TenantID = tenant
		}
	}

	principal.Roles = stringSlice(claims[v.config.RolesClaim])
	principal.Permissions = stringSlice(claims[v.config.PermissionsClaim])

	if exp, ok := claims["exp"].(float64); ok {
		principal.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := claims["iat"].(float64); ok {
		principal.IssuedAt = time.Unix(int64(iat), 0)
	}

	return principal
}

// stringSlice extracts a []string from a claim value that may be a
// JSON array or absent.
func stringSlice(val any) []string {
	items, ok := val.([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// Ensure providers implement KeyProvider
var (
	_ KeyProvider = (*StaticKeyProvider)(nil)
	_ KeyProvider = (*KeySetProvider)(nil)
)

package auth

import "errors"

// Sentinel errors for token validation.
var (
	// ErrInvalidToken is the only validation failure exposed to external
	// callers. Every rejection matches it via errors.Is; the specific
	// check that failed travels separately in RejectionError.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrKeyNotFound indicates no signing key matched the token's key ID.
	ErrKeyNotFound = errors.New("auth: signing key not found")
)

// Rejection reasons recorded for audit logging. They classify which
// check failed and never appear in the external error message.
const (
	ReasonMalformed        = "malformed"
	ReasonSignatureInvalid = "signature_invalid"
	ReasonExpired          = "expired"
	ReasonNotYetValid      = "not_yet_valid"
	ReasonWrongIssuer      = "wrong_issuer"
	ReasonWrongAudience    = "wrong_audience"
	ReasonMissingClaim     = "missing_claim"
	ReasonKeyNotFound      = "key_not_found"
	ReasonUnverifiable     = "unverifiable"
)

// RejectionError reports why a token was rejected. The Error method
// returns only the generic invalid-token message; audit and logging
// collaborators reach the Reason field through errors.As.
type RejectionError struct {
	// Reason is the internal classification (one of the Reason constants).
	Reason string

	// Err is the underlying parser or key-lookup error.
	Err error
}

// Error returns the generic external message.
func (e *RejectionError) Error() string {
	return ErrInvalidToken.Error()
}

// Is reports whether this error matches ErrInvalidToken.
func (e *RejectionError) Is(target error) bool {
	return target == ErrInvalidToken
}

// Unwrap returns the underlying error.
func (e *RejectionError) Unwrap() error {
	return e.Err
}

package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestSentinelErrors(t *testing.T) {
	// The invalid-token message is deliberately generic: rejection detail
	// stays in RejectionError.Reason for audit logs, never the caller.
	for err, msg := range map[error]string{
		ErrInvalidToken: "auth: invalid token",
		ErrKeyNotFound:  "auth: signing key not found",
	} {
		if got := err.Error(); got != msg {
			t.Errorf("Error() = %q, want %q", got, msg)
		}
	}
}

func TestRejectionError_GenericMessage(t *testing.T) {
	rej := &RejectionError{Reason: ReasonExpired, Err: jwt.ErrTokenExpired}

	if rej.Error() != ErrInvalidToken.Error() {
		t.Errorf("Error() = %q, want %q", rej.Error(), ErrInvalidToken.Error())
	}
}

func TestRejectionError_Is(t *testing.T) {
	rej := &RejectionError{Reason: ReasonSignatureInvalid, Err: jwt.ErrTokenSignatureInvalid}

	if !errors.Is(rej, ErrInvalidToken) {
		t.Error("errors.Is(rej, ErrInvalidToken) = false, want true")
	}
	if errors.Is(rej, ErrKeyNotFound) {
		t.Error("errors.Is(rej, ErrKeyNotFound) = true, want false")
	}

	// Matches through wrapping too.
	wrapped := fmt.Errorf("validate: %w", rej)
	if !errors.Is(wrapped, ErrInvalidToken) {
		t.Error("errors.Is(wrapped, ErrInvalidToken) = false, want true")
	}
}

func TestRejectionError_As(t *testing.T) {
	var err error = fmt.Errorf("validate: %w", &RejectionError{
		Reason: ReasonWrongIssuer,
		Err:    jwt.ErrTokenInvalidIssuer,
	})

	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatal("errors.As should recover *RejectionError")
	}
	if rej.Reason != ReasonWrongIssuer {
		t.Errorf("Reason = %v, want %v", rej.Reason, ReasonWrongIssuer)
	}
}

func TestRejectionError_Unwrap(t *testing.T) {
	rej := &RejectionError{Reason: ReasonExpired, Err: jwt.ErrTokenExpired}

	// Audit collaborators can still reach the parser error.
	if !errors.Is(rej, jwt.ErrTokenExpired) {
		t.Error("errors.Is(rej, jwt.ErrTokenExpired) = false, want true")
	}
}

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/gateops/auth"
)

func ExampleNewValidator() {
	// Create a validator with a static signing key
	keys := auth.NewStaticKeyProvider([]byte("my-secret-key"))
	validator := auth.NewValidator(auth.ValidatorConfig{
		Issuer:   "https://issuer.example.com",
		Audience: "gateway",
	}, keys)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice@example.com",
		"iss": "https://issuer.example.com",
		"aud": "gateway",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte("my-secret-key"))

	principal, err := validator.Validate(context.Background(), signed)
	if err != nil {
		fmt.Println("Rejected:", err)
		return
	}
	fmt.Println("Subject:", principal.Subject)
	// Output:
	// Subject: alice@example.com
}

func ExampleValidator_Validate() {
	secret := []byte("my-secret-key")
	validator := auth.NewValidator(auth.ValidatorConfig{
		TenantClaim: "tenant_id",
	}, auth.NewStaticKeyProvider(secret))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       "alice@example.com",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"tenant_id": "acme-corp",
		"roles":     []any{"admin", "user"},
	})
	signed, _ := token.SignedString(secret)

	principal, _ := validator.Validate(context.Background(), signed)
	fmt.Println("Subject:", principal.Subject)
	fmt.Println("Tenant:", principal.TenantID)
	fmt.Println("Has admin:", principal.HasRole("admin"))
	// Output:
	// Subject: alice@example.com
	// Tenant: acme-corp
	// Has admin: true
}

func ExampleValidator_Validate_rejection() {
	secret := []byte("my-secret-key")
	validator := auth.NewValidator(auth.ValidatorConfig{}, auth.NewStaticKeyProvider(secret))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, _ := token.SignedString(secret)

	_, err := validator.Validate(context.Background(), signed)

	// External callers see only the generic category.
	fmt.Println("Error:", err)
	fmt.Println("Invalid token:", errors.Is(err, auth.ErrInvalidToken))

	// Audit collaborators recover the reason with errors.As.
	var rej *auth.RejectionError
	if errors.As(err, &rej) {
		fmt.Println("Audit reason:", rej.Reason)
	}
	// Output:
	// Error: auth: invalid token
	// Invalid token: true
	// Audit reason: expired
}

func ExampleNewKeySetProvider() {
	// Select signing keys by the token's kid header
	keys := auth.NewKeySetProvider(map[string][]byte{
		"2026-01": []byte("previous-signing-key"),
		"2026-06": []byte("current-signing-key"),
	})

	key, _ := keys.GetKey(context.Background(), "2026-06")
	fmt.Println("Key:", string(key.([]byte)))

	_, err := keys.GetKey(context.Background(), "unknown")
	fmt.Println("Unknown kid:", errors.Is(err, auth.ErrKeyNotFound))
	// Output:
	// Key: current-signing-key
	// Unknown kid: true
}

func ExampleWithPrincipal() {
	principal := &auth.Principal{
		Subject:  "user@example.com",
		TenantID: "tenant-123",
		Roles:    []string{"admin", "user"},
	}

	// Attach to context
	ctx := auth.WithPrincipal(context.Background(), principal)

	// Retrieve from context
	retrieved := auth.PrincipalFromContext(ctx)
	fmt.Println("Subject:", retrieved.Subject)
	fmt.Println("Tenant:", retrieved.TenantID)
	// Output:
	// Subject: user@example.com
	// Tenant: tenant-123
}

func ExampleSubjectFromContext() {
	principal := &auth.Principal{Subject: "alice@example.com"}
	ctx := auth.WithPrincipal(context.Background(), principal)

	fmt.Println("Subject:", auth.SubjectFromContext(ctx))
	// Output:
	// Subject: alice@example.com
}

func ExampleTenantIDFromContext() {
	principal := &auth.Principal{
		Subject:  "alice",
		TenantID: "acme-corp",
	}
	ctx := auth.WithPrincipal(context.Background(), principal)

	fmt.Println("Tenant:", auth.TenantIDFromContext(ctx))
	// Output:
	// Tenant: acme-corp
}

func ExamplePrincipal_HasRole() {
	principal := &auth.Principal{
		Subject: "alice",
		Roles:   []string{"admin", "user"},
	}

	fmt.Println("Has admin:", principal.HasRole("admin"))
	fmt.Println("Has guest:", principal.HasRole("guest"))
	// Output:
	// Has admin: true
	// Has guest: false
}

func ExamplePrincipal_HasPermission() {
	principal := &auth.Principal{
		Subject:     "alice",
		Permissions: []string{"tools:read", "tools:invoke"},
	}

	fmt.Println("Has tools:read:", principal.HasPermission("tools:read"))
	fmt.Println("Has tools:delete:", principal.HasPermission("tools:delete"))
	// Output:
	// Has tools:read: true
	// Has tools:delete: false
}

func ExamplePrincipal_IsExpired() {
	noExpiry := &auth.Principal{Subject: "alice"}
	future := &auth.Principal{Subject: "bob", ExpiresAt: time.Now().Add(time.Hour)}
	lapsed := &auth.Principal{Subject: "charlie", ExpiresAt: time.Now().Add(-time.Hour)}

	fmt.Println("no expiry:", noExpiry.IsExpired())
	fmt.Println("future expiry:", future.IsExpired())
	fmt.Println("lapsed expiry:", lapsed.IsExpired())
	// Output:
	// no expiry: false
	// future expiry: false
	// lapsed expiry: true
}

package gateway

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/jonwraymond/gateops/auth"
	"github.com/jonwraymond/gateops/config"
)

// KeyProviderFromConfig picks the signing-key source for token
// validation. Precedence: JWKS endpoint, then RSA public key file,
// then HMAC secret. At least one must be configured.
func KeyProviderFromConfig(cfg config.AuthConfig) (auth.KeyProvider, error) {
	switch {
	case cfg.JWKSURL != "":
		return auth.NewJWKSKeyProvider(cfg.ToJWKS()), nil
	case cfg.RSPublicKeyFile != "":
		key, err := loadRSAPublicKey(cfg.RSPublicKeyFile)
		if err != nil {
			return nil, err
		}
		return &rsaKeyProvider{key: key}, nil
	case cfg.HSSecret != "":
		return auth.NewStaticKeyProvider([]byte(cfg.HSSecret)), nil
	default:
		return nil, ErrNoKeySource
	}
}

// rsaKeyProvider serves one PEM-loaded RSA public key for every key ID.
type rsaKeyProvider struct {
	key *rsa.PublicKey
}

var _ auth.KeyProvider = (*rsaKeyProvider)(nil)

func (p *rsaKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// loadRSAPublicKey reads a PEM file holding a PKIX public key, a PKCS1
// public key, or a certificate, and returns the RSA public key inside.
func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("gateway: %s: no PEM block found", path)
	}

	if block.Type == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("gateway: %s: parse certificate: %w", path, err)
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("gateway: %s: certificate key is not RSA", path)
		}
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Some key tools emit PKCS1 "RSA PUBLIC KEY" blocks instead.
		pkcs1, pkcs1Err := x509.ParsePKCS1PublicKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("gateway: %s: parse public key: %w", path, err)
		}
		return pkcs1, nil
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("gateway: %s: key is not RSA", path)
	}
	return key, nil
}

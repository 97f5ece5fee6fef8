package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// JWKSConfig configures key retrieval from a JWKS endpoint.
type JWKSConfig struct {
	// URL of the JWKS document, usually the identity provider's
	// /.well-known/jwks.json.
	URL string

	// CacheTTL is how long a fetched key set stays fresh.
	// Default: 1 hour
	CacheTTL time.Duration

	// MinRefreshInterval bounds how often an unknown key ID may force a
	// refresh while the cache is still fresh. A flood of tokens carrying
	// bogus key IDs must not turn into a flood of endpoint fetches.
	// Default: 1 minute
	MinRefreshInterval time.Duration

	// HTTPClient performs the fetches. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client
}

// JWKSKeyProvider serves RSA signing keys fetched from a JWKS endpoint.
//
// The key set is cached for CacheTTL, concurrent refreshes collapse
// into a single fetch, and when a refresh fails the last good set keeps
// serving so token validation rides out short identity provider
// outages.
type JWKSKeyProvider struct {
	config JWKSConfig

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time                 // last refresh attempt, success or not
	backup      map[string]*rsa.PublicKey // survives failed refreshes
	group       singleflight.Group
}

// NewJWKSKeyProvider creates a provider for the given endpoint.
func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.CacheTTL == 0 {
		config.CacheTTL = time.Hour
	}
	if config.MinRefreshInterval == 0 {
		config.MinRefreshInterval = time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &JWKSKeyProvider{
		config: config,
		keys:   make(map[string]*rsa.PublicKey),
		backup: make(map[string]*rsa.PublicKey),
	}
}

// GetKey returns the key for the given key ID, fetching or refreshing
// the set as needed. An empty keyID resolves only when the set holds
// exactly one key.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	p.mu.RLock()
	fresh := time.Since(p.fetchedAt) < p.config.CacheTTL
	if fresh {
		if key := p.keyLocked(keyID); key != nil {
			p.mu.RUnlock()
			return key, nil
		}
		// Unknown key ID against a fresh cache. Refuse to refetch until
		// the refresh interval has passed.
		if time.Since(p.lastAttempt) < p.config.MinRefreshInterval {
			p.mu.RUnlock()
			return nil, ErrKeyNotFound
		}
	}
	p.mu.RUnlock()

	_, err, _ := p.group.Do("refresh", func() (any, error) {
		p.mu.Lock()
		p.lastAttempt = time.Now()
		p.mu.Unlock()
		return nil, p.refresh(ctx)
	})
	if err != nil {
		// Refresh failed. Serve from the current set or the backup so a
		// provider outage does not immediately break validation.
		p.mu.RLock()
		key := p.keyLocked(keyID)
		if key == nil {
			key = p.backupLocked(keyID)
		}
		p.mu.RUnlock()

		if key != nil {
			return key, nil
		}
		return nil, err
	}

	p.mu.RLock()
	key := p.keyLocked(keyID)
	p.mu.RUnlock()

	if key == nil {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// keyLocked resolves keyID in the current set. Caller holds at least
// RLock. An empty keyID matches only a single-key set, so selection
// never depends on map iteration order.
func (p *JWKSKeyProvider) keyLocked(keyID string) *rsa.PublicKey {
	if keyID == "" {
		if len(p.keys) != 1 {
			return nil
		}
		for _, key := range p.keys {
			return key
		}
	}
	return p.keys[keyID]
}

// backupLocked resolves keyID in the backup set, same rules as
// keyLocked.
func (p *JWKSKeyProvider) backupLocked(keyID string) *rsa.PublicKey {
	if keyID == "" {
		if len(p.backup) != 1 {
			return nil
		}
		for _, key := range p.backup {
			return key
		}
	}
	return p.backup[keyID]
}

// refresh fetches the endpoint and swaps in the parsed key set. Keys
// also land in the backup set, which outlives failed refreshes.
func (p *JWKSKeyProvider) refresh(ctx context.Context) error {
	doc, err := p.fetchDocument(ctx)
	if err != nil {
		return err
	}

	// Non-RSA and malformed entries are skipped rather than failing the
	// whole set.
	keys := make(map[string]*rsa.PublicKey)
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		if pub, err := rsaKeyFromJWK(k); err == nil {
			keys[k.Kid] = pub
		}
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = time.Now()
	for kid, key := range keys {
		p.backup[kid] = key
	}
	p.mu.Unlock()
	return nil
}

func (p *JWKSKeyProvider) fetchDocument(ctx context.Context) (*jwksDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	return &doc, nil
}

// jwksDocument is the wire format of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// jwk is a single entry in a JWKS document. Only the RSA parameters
// are used.
type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// rsaKeyFromJWK builds an RSA public key from the JWK n and e
// parameters.
func rsaKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	if k.N == "" {
		return nil, fmt.Errorf("missing n parameter")
	}
	if k.E == "" {
		return nil, fmt.Errorf("missing e parameter")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)

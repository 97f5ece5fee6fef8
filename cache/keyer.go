package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Keyer derives cache keys for authorization decisions. The same
// request shape must always yield the same key, no matter how the
// attribute map happens to iterate, and implementations must be safe
// for concurrent use.
type Keyer interface {
	// Key generates a cache key from the validated principal, the
	// requested action, the target resource, and the attribute context.
	Key(principal, action, resource string, attrs map[string]any) (string, error)
}

// DecisionKeyer builds keys of the form
// authz:<principal>:<action>:<resource>:<digest>, where digest is the
// first 16 hex characters of SHA-256 over the canonical attribute JSON.
type DecisionKeyer struct{}

// NewDecisionKeyer creates a new decision keyer.
func NewDecisionKeyer() *DecisionKeyer {
	return &DecisionKeyer{}
}

// Key derives the decision cache key for one authorization request.
func (k *DecisionKeyer) Key(principal, action, resource string, attrs map[string]any) (string, error) {
	canonical, err := canonicalize(attrs)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize attributes: %w", err)
	}

	digest := sha256.Sum256(canonical)
	return fmt.Sprintf("authz:%s:%s:%s:%s",
		principal, action, resource, hex.EncodeToString(digest[:8])), nil
}

// canonicalize renders v as deterministic JSON. Object members are
// emitted in sorted key order at every nesting level; everything else
// encodes the way encoding/json would.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, name := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			member, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			buf.Write(member)
			buf.WriteByte(':')
			if err := writeCanonical(&buf, val[name]); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(&buf, elem); err != nil {
				return nil, err
			}
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	encoded, err := canonicalize(v)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

var _ Keyer = (*DecisionKeyer)(nil)

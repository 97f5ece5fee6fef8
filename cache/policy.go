package cache

import "time"

// Data sensitivity levels recognized by the TTL policy. A resource's
// sensitivity bounds how long a decision about it may be reused.
const (
	SensitivityPublic   = "public"
	SensitivityLow      = "low"
	SensitivityMedium   = "medium"
	SensitivityHigh     = "high"
	SensitivityCritical = "critical"
)

// TTLPolicy decides how long an authorization decision may be cached.
type TTLPolicy struct {
	// DefaultTTL is the TTL for resources with no (or an unknown)
	// sensitivity level. If zero, such decisions are not cached.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Sensitivity and override TTLs
	// are clamped to this. If zero, no maximum is enforced.
	MaxTTL time.Duration

	// BySensitivity maps a sensitivity level to its TTL. A zero TTL means
	// decisions at that level are never cached.
	BySensitivity map[string]time.Duration
}

// DefaultTTLPolicy returns the standard sensitivity ladder: the more
// sensitive the resource, the shorter a decision about it may live.
// Critical decisions are never cached.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     1 * time.Hour,
		BySensitivity: map[string]time.Duration{
			SensitivityPublic:   1 * time.Hour,
			SensitivityLow:      30 * time.Minute,
			SensitivityMedium:   5 * time.Minute,
			SensitivityHigh:     1 * time.Minute,
			SensitivityCritical: 0,
		},
	}
}

// NoCachePolicy returns a policy that disables decision caching entirely.
func NoCachePolicy() TTLPolicy {
	return TTLPolicy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p TTLPolicy) ShouldCache() bool {
	if p.DefaultTTL > 0 {
		return true
	}
	for _, ttl := range p.BySensitivity {
		if ttl > 0 {
			return true
		}
	}
	return false
}

// TTLFor returns the TTL for a resource of the given sensitivity,
// applying the default and clamping to MaxTTL. Returns 0 when decisions
// at that level must not be cached.
func (p TTLPolicy) TTLFor(sensitivity string) time.Duration {
	ttl, ok := p.BySensitivity[sensitivity]
	if !ok {
		ttl = p.DefaultTTL
	}
	return p.clamp(ttl)
}

// DecisionTTL returns the TTL for caching one decision. A positive
// override (a TTL the matched rule set itself) takes precedence over the
// sensitivity mapping, but never over an explicit never-cache level: a
// sensitivity mapped to 0 always yields 0.
func (p TTLPolicy) DecisionTTL(sensitivity string, override time.Duration) time.Duration {
	if ttl, ok := p.BySensitivity[sensitivity]; ok && ttl <= 0 {
		return 0
	}
	if override > 0 {
		return p.clamp(override)
	}
	return p.TTLFor(sensitivity)
}

func (p TTLPolicy) clamp(ttl time.Duration) time.Duration {
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		return p.MaxTTL
	}
	return ttl
}

package gateway

import "encoding/json"

// Category reasons for decisions the engine never produced. Rule-based
// denials carry the matched rule's reason instead.
const (
	// ReasonInvalidToken marks a request rejected during validation.
	ReasonInvalidToken = "invalid_token"

	// ReasonPolicyNotFound marks a deny because the configured policy
	// is not loaded.
	ReasonPolicyNotFound = "policy_not_found"

	// ReasonEvaluationFailed marks a deny because the evaluator failed.
	ReasonEvaluationFailed = "evaluation_failed"
)

// Decision is the outcome of one authorization request.
type Decision struct {
	// Allowed reports whether the request is permitted.
	Allowed bool `json:"allowed"`

	// Reason explains the outcome: rule text for evaluated decisions,
	// a fixed category for rejections and failures. Never empty, never
	// carries attribute values.
	Reason string `json:"reason"`

	// Policy and RuleID identify what produced the outcome. Both are
	// empty when the request never reached evaluation.
	Policy string `json:"policy,omitempty"`
	RuleID string `json:"rule_id,omitempty"`

	// AuditID correlates this decision with its governance event.
	// Unique per request, cache hits included.
	AuditID string `json:"audit_id"`

	// CacheHit reports whether the verdict was served from cache.
	CacheHit bool `json:"cache_hit"`
}

// cachedDecision is the stored form of a verdict. Audit identity is
// per-request and deliberately not part of it.
type cachedDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Policy  string `json:"policy"`
	RuleID  string `json:"rule_id,omitempty"`
}

func encodeCached(d *Decision) ([]byte, error) {
	return json.Marshal(cachedDecision{
		Allowed: d.Allowed,
		Reason:  d.Reason,
		Policy:  d.Policy,
		RuleID:  d.RuleID,
	})
}

// decodeCached restores a stored verdict. A corrupt entry reports
// false and the caller treats the lookup as a miss.
func decodeCached(raw []byte) (*Decision, bool) {
	var c cachedDecision
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false
	}
	if c.Reason == "" {
		return nil, false
	}
	return &Decision{
		Allowed: c.Allowed,
		Reason:  c.Reason,
		Policy:  c.Policy,
		RuleID:  c.RuleID,
	}, true
}

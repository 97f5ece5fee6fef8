package policy

import "time"

// Effect is the outcome a rule contributes.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Decision is the outcome of evaluating one input against one policy.
//
// Allowed, Reason, RuleID, PolicyName, and TTL are deterministic for a
// given compiled policy and input. Timestamp and AuditID are
// per-evaluation audit metadata.
type Decision struct {
	// Allowed reports whether the action is permitted.
	Allowed bool `json:"allowed"`

	// Reason explains the decision. Always non-empty; never contains
	// attribute values.
	Reason string `json:"reason"`

	// PolicyName is the policy that produced this decision.
	PolicyName string `json:"policy_name"`

	// RuleID identifies the winning rule. Empty when no rule matched.
	RuleID string `json:"rule_id,omitempty"`

	// TTL is the winning rule's cache override. Zero means the caller's
	// sensitivity ladder applies.
	TTL time.Duration `json:"ttl,omitempty"`

	// Timestamp is when the evaluation ran.
	Timestamp time.Time `json:"timestamp"`

	// AuditID uniquely identifies this evaluation for audit trails.
	AuditID string `json:"audit_id"`
}

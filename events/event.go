// Package events publishes governance decision records to external
// sinks. Emitters are fire-and-forget: the authorization hot path must
// never block or fail because a sink is slow or down.
package events

// DecisionEvent is one governance decision record. Reason carries rule
// text or a fixed category, never request attribute values.
type DecisionEvent struct {
	Timestamp string `json:"timestamp"`
	AuditID   string `json:"audit_id"`
	Principal string `json:"principal"`
	Resource  string `json:"resource"`
	Action    string `json:"action"`
	Policy    string `json:"policy"`
	RuleID    string `json:"rule_id,omitempty"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	CacheHit  bool   `json:"cache_hit"`
	LatencyMs int64  `json:"latency_ms"`
}

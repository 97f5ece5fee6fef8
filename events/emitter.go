package events

import (
	"context"

	"github.com/jonwraymond/gateops/observe"
)

// Emitter delivers decision events to a sink. Emit must return
// quickly; implementations that do I/O complete it asynchronously and
// report failures to their logger.
type Emitter interface {
	Emit(event DecisionEvent)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(DecisionEvent) {}

// LogEmitter writes each decision event to the structured logger.
type LogEmitter struct {
	logger observe.Logger
}

// NewLogEmitter creates a log-sink emitter.
func NewLogEmitter(logger observe.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(event DecisionEvent) {
	e.logger.Info(context.Background(), "governance_decision",
		observe.Field{Key: "audit_id", Value: event.AuditID},
		observe.Field{Key: "principal", Value: event.Principal},
		observe.Field{Key: "resource", Value: event.Resource},
		observe.Field{Key: "action", Value: event.Action},
		observe.Field{Key: "policy", Value: event.Policy},
		observe.Field{Key: "rule_id", Value: event.RuleID},
		observe.Field{Key: "decision", Value: event.Decision},
		observe.Field{Key: "reason", Value: event.Reason},
		observe.Field{Key: "cache_hit", Value: event.CacheHit},
		observe.Field{Key: "latency_ms", Value: event.LatencyMs},
	)
}

var _ Emitter = NopEmitter{}
var _ Emitter = (*LogEmitter)(nil)

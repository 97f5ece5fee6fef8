package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Engine holds named compiled policies and evaluates inputs against
// them. Each policy lives behind an atomic pointer: Load publishes a
// new snapshot in one swap, and evaluations in flight keep reading the
// snapshot they started with.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*atomic.Pointer[compiledPolicy]
}

// NewEngine creates an empty policy engine.
func NewEngine() *Engine {
	return &Engine{
		policies: make(map[string]*atomic.Pointer[compiledPolicy]),
	}
}

// Load compiles a JSON policy document and atomically replaces any
// policy loaded under that name. A compile error leaves the previous
// policy untouched.
func (e *Engine) Load(name string, source []byte) error {
	if name == "" {
		return &CompileError{Detail: "policy name is empty"}
	}

	compiled, err := compile(name, source)
	if err != nil {
		return err
	}

	e.mu.Lock()
	ptr, ok := e.policies[name]
	if !ok {
		ptr = &atomic.Pointer[compiledPolicy]{}
		e.policies[name] = ptr
	}
	e.mu.Unlock()

	ptr.Store(compiled)
	return nil
}

// Evaluate runs the input against the named policy and returns a
// decision. Evaluation is deterministic: the same loaded policy and
// input always produce the same Allowed, Reason, RuleID, and TTL.
//
// Conflict resolution is fixed: rules are considered in priority order
// (highest first, document order within a priority); the
// highest-priority matching rule of each effect is selected; deny wins
// unless an allow strictly outranks every matching deny. When nothing
// matches, the decision is deny with reason "no matching rules".
func (e *Engine) Evaluate(ctx context.Context, policyName string, input *Input) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, ErrNilInput
	}

	e.mu.RLock()
	ptr := e.policies[policyName]
	e.mu.RUnlock()

	if ptr == nil {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policyName)
	}
	snapshot := ptr.Load()
	if snapshot == nil {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policyName)
	}

	return snapshot.evaluate(input), nil
}

// Names returns the loaded policy names, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name, ptr := range e.policies {
		if ptr.Load() != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// evaluate applies the conflict contract to the pre-sorted rules.
func (p *compiledPolicy) evaluate(input *Input) *Decision {
	var allow, deny *compiledRule
	for i := range p.rules {
		if allow != nil && deny != nil {
			break
		}
		r := &p.rules[i]
		if (r.effect == EffectAllow && allow != nil) || (r.effect == EffectDeny && deny != nil) {
			continue
		}
		if !r.matches(input) {
			continue
		}
		if r.effect == EffectAllow {
			allow = r
		} else {
			deny = r
		}
	}

	if deny != nil && (allow == nil || deny.priority >= allow.priority) {
		return p.decisionFrom(deny)
	}
	if allow != nil {
		return p.decisionFrom(allow)
	}
	return &Decision{
		Allowed:    false,
		Reason:     "no matching rules",
		PolicyName: p.name,
		Timestamp:  time.Now().UTC(),
		AuditID:    uuid.NewString(),
	}
}

func (p *compiledPolicy) decisionFrom(r *compiledRule) *Decision {
	reason := r.reason
	if reason == "" {
		if r.effect == EffectAllow {
			reason = fmt.Sprintf("allowed by rule %s", r.id)
		} else {
			reason = fmt.Sprintf("denied by rule %s", r.id)
		}
	}
	return &Decision{
		Allowed:    r.effect == EffectAllow,
		Reason:     reason,
		PolicyName: p.name,
		RuleID:     r.id,
		TTL:        r.ttl,
		Timestamp:  time.Now().UTC(),
		AuditID:    uuid.NewString(),
	}
}

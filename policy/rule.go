package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Condition operators.
const (
	opEq = "eq"
	opIn = "in"
)

// document is the JSON form of a policy.
type document struct {
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Rules       []ruleSpec `json:"rules"`
}

// ruleSpec is the JSON form of a single rule.
type ruleSpec struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Effect      string          `json:"effect"`
	Priority    int             `json:"priority,omitempty"`
	Subjects    []string        `json:"subjects,omitempty"`
	Roles       []string        `json:"roles,omitempty"`
	Actions     []string        `json:"actions,omitempty"`
	Resources   []string        `json:"resources,omitempty"`
	Conditions  []conditionSpec `json:"conditions,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	TTLSeconds  int             `json:"ttl_seconds,omitempty"`
}

// conditionSpec is the JSON form of an attribute condition.
type conditionSpec struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// condition is the compiled form of an attribute condition.
type condition struct {
	attribute string
	operator  string
	value     any
	values    []any
}

// compiledRule is the immutable matchable form of a rule.
type compiledRule struct {
	id         string
	effect     Effect
	priority   int
	subjects   []string
	roles      []string
	actions    []string
	resources  []string
	conditions []condition
	reason     string
	ttl        time.Duration
}

// matches reports whether the rule applies to the input. All configured
// dimensions must match; an empty dimension matches everything.
func (r *compiledRule) matches(input *Input) bool {
	if !matchAnyPattern(r.subjects, input.Subject.ID) {
		return false
	}
	if !matchAnyRole(r.roles, input.Subject.Roles) {
		return false
	}
	if !matchAnyPattern(r.actions, input.Action) {
		return false
	}
	if !matchAnyResource(r.resources, input.Resource) {
		return false
	}
	for _, c := range r.conditions {
		if !c.holds(input.Attributes) {
			return false
		}
	}
	return true
}

// compiledPolicy is an immutable snapshot of a loaded policy. Rules are
// sorted by priority, highest first; document order breaks ties.
type compiledPolicy struct {
	name  string
	rules []compiledRule
}

// compile parses and validates a policy document.
func compile(name string, source []byte) (*compiledPolicy, error) {
	var doc document
	if err := json.Unmarshal(source, &doc); err != nil {
		return nil, &CompileError{Policy: name, Detail: "invalid JSON", Err: err}
	}
	if len(doc.Rules) == 0 {
		return nil, &CompileError{Policy: name, Detail: "no rules defined"}
	}

	rules := make([]compiledRule, 0, len(doc.Rules))
	seen := make(map[string]bool, len(doc.Rules))
	for i, spec := range doc.Rules {
		rule, err := compileRule(name, i, spec)
		if err != nil {
			return nil, err
		}
		if seen[rule.id] {
			return nil, &CompileError{
				Policy: name,
				Detail: fmt.Sprintf("duplicate rule id %q", rule.id),
			}
		}
		seen[rule.id] = true
		rules = append(rules, rule)
	}

	// Stable sort fixes the evaluation order: priority descending,
	// document order within equal priorities.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].priority > rules[j].priority
	})

	return &compiledPolicy{name: name, rules: rules}, nil
}

func compileRule(policy string, index int, spec ruleSpec) (compiledRule, error) {
	fail := func(detail string) (compiledRule, error) {
		return compiledRule{}, &CompileError{
			Policy: policy,
			Detail: fmt.Sprintf("rule %d: %s", index, detail),
		}
	}

	if spec.ID == "" {
		return fail("missing id")
	}

	var effect Effect
	switch spec.Effect {
	case string(EffectAllow):
		effect = EffectAllow
	case string(EffectDeny):
		effect = EffectDeny
	default:
		return fail(fmt.Sprintf("invalid effect %q", spec.Effect))
	}

	if spec.TTLSeconds < 0 {
		return fail("negative ttl_seconds")
	}

	conditions := make([]condition, 0, len(spec.Conditions))
	for _, cs := range spec.Conditions {
		if cs.Attribute == "" {
			return fail("condition missing attribute")
		}
		switch cs.Operator {
		case opEq:
		case opIn:
			if len(cs.Values) == 0 {
				return fail(fmt.Sprintf("condition on %q: operator in requires values", cs.Attribute))
			}
		default:
			return fail(fmt.Sprintf("condition on %q: unknown operator %q", cs.Attribute, cs.Operator))
		}
		conditions = append(conditions, condition{
			attribute: cs.Attribute,
			operator:  cs.Operator,
			value:     cs.Value,
			values:    cs.Values,
		})
	}

	return compiledRule{
		id:         spec.ID,
		effect:     effect,
		priority:   spec.Priority,
		subjects:   spec.Subjects,
		roles:      spec.Roles,
		actions:    spec.Actions,
		resources:  spec.Resources,
		conditions: conditions,
		reason:     spec.Reason,
		ttl:        time.Duration(spec.TTLSeconds) * time.Second,
	}, nil
}

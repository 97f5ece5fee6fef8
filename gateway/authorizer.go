package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/gateops/auth"
	"github.com/jonwraymond/gateops/cache"
	"github.com/jonwraymond/gateops/events"
	"github.com/jonwraymond/gateops/observe"
	"github.com/jonwraymond/gateops/policy"
)

// AttrSensitivity is the request attribute carrying the resource's
// data sensitivity (public, low, medium, high, critical). It selects
// the verdict's cache TTL, not whether rules match.
const AttrSensitivity = "sensitivity"

// Span names on the authorization path.
const (
	opDecide = "authz.decide"
	opEval   = "policy.eval"
)

// TokenValidator authenticates a bearer token and returns the
// principal it names. *auth.Validator implements it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Principal, error)
}

// Evaluator evaluates a named policy against one input.
// *policy.Engine implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, policyName string, input *policy.Input) (*policy.Decision, error)
}

var _ TokenValidator = (*auth.Validator)(nil)
var _ Evaluator = (*policy.Engine)(nil)

// Config wires the Authorizer's collaborators. Validator, Engine, and
// Policy are required; everything else defaults to off.
type Config struct {
	// Validator authenticates bearer tokens.
	Validator TokenValidator

	// Engine evaluates the configured policy.
	Engine Evaluator

	// Policy is the policy document evaluated for every request.
	Policy string

	// Decisions stores evaluated verdicts. Nil disables caching.
	Decisions cache.Cache

	// TTL bounds how long verdicts stay cached, by resource
	// sensitivity. The zero value never caches; cache.DefaultTTLPolicy
	// gives the standard ladder.
	TTL cache.TTLPolicy

	// Events receives one governance event per decision. Nil discards
	// them.
	Events events.Emitter

	// Rollout routes a share of principals through an alternate
	// evaluator.
	Rollout RolloutConfig

	// Tracer, Metrics, and Logger record the hot path. Nil disables
	// the corresponding signal.
	Tracer  observe.Tracer
	Metrics observe.Metrics
	Logger  observe.Logger
}

// Authorizer runs requests through validation, the decision cache,
// and policy evaluation. Safe for concurrent use.
type Authorizer struct {
	config Config
	keyer  *cache.DecisionKeyer
}

// NewAuthorizer creates an authorizer with defaults applied.
func NewAuthorizer(config Config) (*Authorizer, error) {
	if config.Validator == nil {
		return nil, ErrNilValidator
	}
	if config.Engine == nil {
		return nil, ErrNilEngine
	}
	if config.Policy == "" {
		return nil, ErrNoPolicy
	}
	if config.Events == nil {
		config.Events = events.NopEmitter{}
	}
	if config.Tracer == nil {
		config.Tracer = observe.NopTracer()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	config.Rollout.Percent = clampPercent(config.Rollout.Percent)
	if config.Rollout.Strategy == nil {
		config.Rollout.Strategy = DefaultStrategy
	}

	return &Authorizer{
		config: config,
		keyer:  cache.NewDecisionKeyer(),
	}, nil
}

// Authorize runs one request through the authorization state machine
// and returns its single decision.
//
// An invalid token rejects before the cache or the engine is touched.
// A cache hit returns the stored verdict without evaluating; a miss
// evaluates and stores the verdict within its sensitivity's TTL.
// Evaluator failures never escape as errors: the authorizer fails
// closed, denying with a category reason, so a broken engine cannot
// grant access. The only error Authorize returns is the caller's own
// context ending mid-flight; no decision is made and no event is
// emitted in that case.
func (a *Authorizer) Authorize(ctx context.Context, token, resource, action string, attrs map[string]any) (*Decision, error) {
	start := time.Now()
	ctx, span := a.config.Tracer.StartSpan(ctx, observe.OpMeta{Name: opDecide, Policy: a.config.Policy})
	decision, err := a.authorize(ctx, token, resource, action, attrs, start)
	a.config.Tracer.EndSpan(span, err)
	return decision, err
}

// authorize is the state machine body; Authorize wraps it in a span.
func (a *Authorizer) authorize(ctx context.Context, token, resource, action string, attrs map[string]any, start time.Time) (*Decision, error) {
	principal, err := a.config.Validator.Validate(ctx, token)
	if err != nil {
		return a.rejected(ctx, err, resource, action, start), nil
	}

	key := a.decisionKey(ctx, principal.Subject, action, resource, attrs)
	if decision := a.lookup(ctx, key); decision != nil {
		a.decided(ctx, decision, principal.Subject, resource, action, start, 0)
		return decision, nil
	}

	verdict, evalDuration, evalErr := a.evaluate(ctx, principal, resource, action, attrs)
	if evalErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		decision := a.failClosed(ctx, evalErr)
		a.decided(ctx, decision, principal.Subject, resource, action, start, evalDuration)
		return decision, nil
	}

	decision := &Decision{
		Allowed: verdict.Allowed,
		Reason:  verdict.Reason,
		Policy:  verdict.PolicyName,
		RuleID:  verdict.RuleID,
		AuditID: verdict.AuditID,
	}
	a.store(ctx, key, decision, sensitivityOf(attrs), verdict.TTL)
	a.decided(ctx, decision, principal.Subject, resource, action, start, evalDuration)
	return decision, nil
}

// rejected normalizes a validation failure into the terminal Rejected
// state. The decision carries the fixed category; which check failed
// goes to the audit log only.
func (a *Authorizer) rejected(ctx context.Context, err error, resource, action string, start time.Time) *Decision {
	reason := auth.ReasonUnverifiable
	var rejection *auth.RejectionError
	if errors.As(err, &rejection) {
		reason = rejection.Reason
	}
	a.config.Logger.Warn(ctx, "token_rejected",
		observe.Field{Key: "reason", Value: reason},
		observe.Field{Key: "resource", Value: resource},
		observe.Field{Key: "action", Value: action},
	)

	decision := &Decision{
		Allowed: false,
		Reason:  ReasonInvalidToken,
		AuditID: uuid.NewString(),
	}
	a.decided(ctx, decision, "", resource, action, start, 0)
	return decision
}

// decisionKey derives the cache key, or "" when caching is off or the
// attributes cannot be canonicalized. The request still evaluates; it
// just cannot be cached.
func (a *Authorizer) decisionKey(ctx context.Context, principal, action, resource string, attrs map[string]any) string {
	if a.config.Decisions == nil {
		return ""
	}
	key, err := a.keyer.Key(principal, action, resource, attrs)
	if err != nil {
		a.config.Logger.Debug(ctx, "decision_key_skipped",
			observe.Field{Key: "error", Value: err.Error()},
		)
		return ""
	}
	return key
}

// lookup returns the stored verdict for key, stamped with a fresh
// audit identity, or nil on a miss.
func (a *Authorizer) lookup(ctx context.Context, key string) *Decision {
	if key == "" {
		return nil
	}
	raw, ok := a.config.Decisions.Get(ctx, key)
	if !ok {
		return nil
	}
	decision, ok := decodeCached(raw)
	if !ok {
		return nil
	}
	decision.AuditID = uuid.NewString()
	decision.CacheHit = true
	return decision
}

// evaluate runs the engine under its own span, routing rollout
// principals to the alternate evaluator.
func (a *Authorizer) evaluate(ctx context.Context, principal *auth.Principal, resource, action string, attrs map[string]any) (*policy.Decision, time.Duration, error) {
	engine := a.config.Rollout.route(a.config.Engine, principal.Subject)
	input := evalInput(principal, resource, action, attrs)

	start := time.Now()
	evalCtx, span := a.config.Tracer.StartSpan(ctx, observe.OpMeta{Name: opEval, Policy: a.config.Policy})
	verdict, err := engine.Evaluate(evalCtx, a.config.Policy, input)
	a.config.Tracer.EndSpan(span, err)
	return verdict, time.Since(start), err
}

// failClosed normalizes an evaluator failure into a deny.
func (a *Authorizer) failClosed(ctx context.Context, err error) *Decision {
	reason := ReasonEvaluationFailed
	if errors.Is(err, policy.ErrPolicyNotFound) {
		reason = ReasonPolicyNotFound
	}
	a.config.Logger.Error(ctx, "evaluation_failed",
		observe.Field{Key: "policy", Value: a.config.Policy},
		observe.Field{Key: "error", Value: err.Error()},
	)
	return &Decision{
		Allowed: false,
		Reason:  reason,
		Policy:  a.config.Policy,
		AuditID: uuid.NewString(),
	}
}

// store caches the verdict within its sensitivity's TTL. Best effort:
// a failed store never fails the decision.
func (a *Authorizer) store(ctx context.Context, key string, decision *Decision, sensitivity string, override time.Duration) {
	if key == "" {
		return
	}
	ttl := a.config.TTL.DecisionTTL(sensitivity, override)
	if ttl <= 0 {
		return
	}
	raw, err := encodeCached(decision)
	if err != nil {
		return
	}
	if err := a.config.Decisions.Set(ctx, key, raw, ttl); err != nil {
		a.config.Logger.Warn(ctx, "decision_store_failed",
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// decided records the terminal state: one metric sample and one
// governance event per request.
func (a *Authorizer) decided(ctx context.Context, decision *Decision, principal, resource, action string, start time.Time, evalDuration time.Duration) {
	a.config.Metrics.RecordDecision(ctx, decision.Policy, decision.Allowed, decision.CacheHit, evalDuration)

	verdict := "deny"
	if decision.Allowed {
		verdict = "allow"
	}
	a.config.Events.Emit(events.DecisionEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		AuditID:   decision.AuditID,
		Principal: principal,
		Resource:  resource,
		Action:    action,
		Policy:    decision.Policy,
		RuleID:    decision.RuleID,
		Decision:  verdict,
		Reason:    decision.Reason,
		CacheHit:  decision.CacheHit,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// evalInput maps the validated principal onto the engine's input. A
// resource identifier is server/tool; without a slash the whole
// identifier names the tool, matching rule pattern semantics.
func evalInput(principal *auth.Principal, resource, action string, attrs map[string]any) *policy.Input {
	server, tool, found := strings.Cut(resource, "/")
	if !found {
		server, tool = "", resource
	}
	return &policy.Input{
		Subject: policy.Subject{
			ID:          principal.Subject,
			Roles:       principal.Roles,
			Permissions: principal.Permissions,
		},
		Action: action,
		Resource: policy.Resource{
			Server:      server,
			Tool:        tool,
			Sensitivity: sensitivityOf(attrs),
		},
		Attributes: attrs,
	}
}

// sensitivityOf reads the resource's declared sensitivity from the
// request attributes.
func sensitivityOf(attrs map[string]any) string {
	s, _ := attrs[AttrSensitivity].(string)
	return s
}

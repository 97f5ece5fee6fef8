package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/gateops/auth"
	"github.com/jonwraymond/gateops/cache"
	"github.com/jonwraymond/gateops/events"
	"github.com/jonwraymond/gateops/policy"
)

var testSecret = []byte("gateway-test-secret-32-bytes-ok!")

// signToken mints an HS256 token for tests.
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

// devToken returns a valid token for a principal holding the dev role.
func devToken(t *testing.T, subject string) string {
	t.Helper()
	return signToken(t, jwt.MapClaims{
		"sub":   subject,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-time.Minute).Unix(),
		"roles": []any{"dev"},
	})
}

const toolsPolicy = `{
	"rules": [
		{"id": "allow-dev-invoke", "effect": "allow", "roles": ["dev"], "actions": ["invoke"], "reason": "developers may invoke tools"},
		{"id": "deny-refunds", "effect": "deny", "priority": 10, "resources": ["payments/refund"], "reason": "refunds are restricted"}
	]
}`

// countingEngine counts evaluations passing through to a real engine.
type countingEngine struct {
	engine *policy.Engine
	calls  atomic.Int64
}

func (e *countingEngine) Evaluate(ctx context.Context, name string, input *policy.Input) (*policy.Decision, error) {
	e.calls.Add(1)
	return e.engine.Evaluate(ctx, name, input)
}

// failingEngine always returns err.
type failingEngine struct{ err error }

func (e *failingEngine) Evaluate(context.Context, string, *policy.Input) (*policy.Decision, error) {
	return nil, e.err
}

// captureEmitter records every emitted event.
type captureEmitter struct {
	mu     sync.Mutex
	events []events.DecisionEvent
}

func (e *captureEmitter) Emit(event events.DecisionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *captureEmitter) all() []events.DecisionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.DecisionEvent(nil), e.events...)
}

func testValidator(t *testing.T) *auth.Validator {
	t.Helper()
	return auth.NewValidator(auth.ValidatorConfig{}, auth.NewStaticKeyProvider(testSecret))
}

func testEngine(t *testing.T) *countingEngine {
	t.Helper()
	engine := policy.NewEngine()
	if err := engine.Load("tools", []byte(toolsPolicy)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return &countingEngine{engine: engine}
}

// testAuthorizer builds an authorizer over a fresh engine, a memory
// cache, and a capturing event sink.
func testAuthorizer(t *testing.T) (*Authorizer, *countingEngine, *captureEmitter) {
	t.Helper()
	engine := testEngine(t)
	emitter := &captureEmitter{}
	authorizer, err := NewAuthorizer(Config{
		Validator: testValidator(t),
		Engine:    engine,
		Policy:    "tools",
		Decisions: cache.NewMemory(cache.MemoryConfig{}),
		TTL:       cache.DefaultTTLPolicy(),
		Events:    emitter,
	})
	if err != nil {
		t.Fatalf("NewAuthorizer() error = %v", err)
	}
	return authorizer, engine, emitter
}

func TestNewAuthorizer_Validation(t *testing.T) {
	engine := testEngine(t)

	_, err := NewAuthorizer(Config{Engine: engine, Policy: "tools"})
	if !errors.Is(err, ErrNilValidator) {
		t.Errorf("error = %v, want ErrNilValidator", err)
	}

	_, err = NewAuthorizer(Config{Validator: testValidator(t), Policy: "tools"})
	if !errors.Is(err, ErrNilEngine) {
		t.Errorf("error = %v, want ErrNilEngine", err)
	}

	_, err = NewAuthorizer(Config{Validator: testValidator(t), Engine: engine})
	if !errors.Is(err, ErrNoPolicy) {
		t.Errorf("error = %v, want ErrNoPolicy", err)
	}
}

func TestAuthorizer_AllowsAndCaches(t *testing.T) {
	authorizer, engine, emitter := testAuthorizer(t)
	ctx := context.Background()
	token := devToken(t, "alice")

	first, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if !first.Allowed {
		t.Fatalf("Allowed = false, want true (reason %q)", first.Reason)
	}
	if first.Reason != "developers may invoke tools" {
		t.Errorf("Reason = %q, want rule reason", first.Reason)
	}
	if first.RuleID != "allow-dev-invoke" {
		t.Errorf("RuleID = %q, want allow-dev-invoke", first.RuleID)
	}
	if first.CacheHit {
		t.Error("first call CacheHit = true, want false")
	}
	if got := engine.calls.Load(); got != 1 {
		t.Fatalf("engine calls = %d, want 1", got)
	}

	second, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if !second.Allowed {
		t.Error("second call Allowed = false, want true")
	}
	if !second.CacheHit {
		t.Error("second call CacheHit = false, want served from cache")
	}
	if got := engine.calls.Load(); got != 1 {
		t.Errorf("engine calls after cached request = %d, want 1", got)
	}
	if second.AuditID == first.AuditID {
		t.Error("cached decision reused the audit id, want a fresh one")
	}

	got := emitter.all()
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if got[0].CacheHit || !got[1].CacheHit {
		t.Errorf("event cache flags = %v/%v, want false/true", got[0].CacheHit, got[1].CacheHit)
	}
	if got[1].Decision != "allow" {
		t.Errorf("event decision = %q, want allow", got[1].Decision)
	}
}

func TestAuthorizer_RejectsInvalidToken(t *testing.T) {
	authorizer, engine, emitter := testAuthorizer(t)
	ctx := context.Background()

	expired := signToken(t, jwt.MapClaims{
		"sub":   "alice",
		"exp":   time.Now().Add(-time.Hour).Unix(),
		"roles": []any{"dev"},
	})

	for _, token := range []string{expired, "not-a-token", ""} {
		decision, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", nil)
		if err != nil {
			t.Fatalf("Authorize(%q) error = %v", token, err)
		}
		if decision.Allowed {
			t.Error("Allowed = true, want rejection")
		}
		if decision.Reason != ReasonInvalidToken {
			t.Errorf("Reason = %q, want %q", decision.Reason, ReasonInvalidToken)
		}
		if decision.Policy != "" {
			t.Errorf("Policy = %q, want empty before evaluation", decision.Policy)
		}
		if decision.AuditID == "" {
			t.Error("AuditID is empty")
		}
	}

	// Rejection happens before the cache or the engine is touched.
	if got := engine.calls.Load(); got != 0 {
		t.Errorf("engine calls = %d, want 0", got)
	}

	got := emitter.all()
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	for _, event := range got {
		if event.Decision != "deny" {
			t.Errorf("event decision = %q, want deny", event.Decision)
		}
		if event.Principal != "" {
			t.Errorf("event principal = %q, want empty for rejected tokens", event.Principal)
		}
	}
}

func TestAuthorizer_DeniesByRule(t *testing.T) {
	authorizer, _, _ := testAuthorizer(t)

	decision, err := authorizer.Authorize(context.Background(), devToken(t, "alice"), "payments/refund", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("Allowed = true, want deny")
	}
	if decision.Reason != "refunds are restricted" {
		t.Errorf("Reason = %q, want rule reason", decision.Reason)
	}
	if decision.RuleID != "deny-refunds" {
		t.Errorf("RuleID = %q, want deny-refunds", decision.RuleID)
	}
}

func TestAuthorizer_FailsClosed(t *testing.T) {
	emitter := &captureEmitter{}
	authorizer, err := NewAuthorizer(Config{
		Validator: testValidator(t),
		Engine:    &failingEngine{err: errors.New("engine offline")},
		Policy:    "tools",
		Events:    emitter,
	})
	if err != nil {
		t.Fatalf("NewAuthorizer() error = %v", err)
	}

	decision, err := authorizer.Authorize(context.Background(), devToken(t, "alice"), "payments/search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v, want decision instead", err)
	}
	if decision.Allowed {
		t.Fatal("Allowed = true, want fail-closed deny")
	}
	if decision.Reason != ReasonEvaluationFailed {
		t.Errorf("Reason = %q, want %q", decision.Reason, ReasonEvaluationFailed)
	}
	if len(emitter.all()) != 1 {
		t.Errorf("events = %d, want 1", len(emitter.all()))
	}
}

func TestAuthorizer_FailsClosedPolicyNotFound(t *testing.T) {
	authorizer, err := NewAuthorizer(Config{
		Validator: testValidator(t),
		Engine:    policy.NewEngine(),
		Policy:    "missing",
	})
	if err != nil {
		t.Fatalf("NewAuthorizer() error = %v", err)
	}

	decision, err := authorizer.Authorize(context.Background(), devToken(t, "alice"), "payments/search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("Allowed = true, want deny")
	}
	if decision.Reason != ReasonPolicyNotFound {
		t.Errorf("Reason = %q, want %q", decision.Reason, ReasonPolicyNotFound)
	}
}

func TestAuthorizer_CriticalNeverCached(t *testing.T) {
	authorizer, engine, _ := testAuthorizer(t)
	ctx := context.Background()
	token := devToken(t, "alice")
	attrs := map[string]any{AttrSensitivity: cache.SensitivityCritical}

	for i := 0; i < 2; i++ {
		decision, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", attrs)
		if err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		if decision.CacheHit {
			t.Error("CacheHit = true, want critical decisions never cached")
		}
	}
	if got := engine.calls.Load(); got != 2 {
		t.Errorf("engine calls = %d, want 2", got)
	}
}

func TestAuthorizer_UnkeyableAttributesSkipCache(t *testing.T) {
	authorizer, engine, _ := testAuthorizer(t)
	ctx := context.Background()
	token := devToken(t, "alice")
	attrs := map[string]any{"stream": make(chan int)}

	for i := 0; i < 2; i++ {
		decision, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", attrs)
		if err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("Allowed = false, want evaluation despite unkeyable attributes")
		}
		if decision.CacheHit {
			t.Error("CacheHit = true, want unkeyable requests never cached")
		}
	}
	if got := engine.calls.Load(); got != 2 {
		t.Errorf("engine calls = %d, want 2", got)
	}
}

func TestAuthorizer_AttributesAffectCacheKey(t *testing.T) {
	authorizer, engine, _ := testAuthorizer(t)
	ctx := context.Background()
	token := devToken(t, "alice")

	if _, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", map[string]any{"region": "us"}); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if _, err := authorizer.Authorize(ctx, token, "payments/search", "invoke", map[string]any{"region": "eu"}); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if got := engine.calls.Load(); got != 2 {
		t.Errorf("engine calls = %d, want 2 distinct evaluations", got)
	}
}

func TestAuthorizer_ContextCancelled(t *testing.T) {
	authorizer, _, emitter := testAuthorizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := authorizer.Authorize(ctx, devToken(t, "alice"), "payments/search", "invoke", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if decision != nil {
		t.Errorf("decision = %+v, want nil when the caller is gone", decision)
	}
	if got := emitter.all(); len(got) != 0 {
		t.Errorf("events = %d, want none for an abandoned request", len(got))
	}
}

func TestAuthorizer_RolloutRoutesToNext(t *testing.T) {
	engine := testEngine(t)
	next := &failingEngine{err: errors.New("next generation offline")}

	authorizer, err := NewAuthorizer(Config{
		Validator: testValidator(t),
		Engine:    engine,
		Policy:    "tools",
		Rollout:   RolloutConfig{Percent: 100, Next: next},
	})
	if err != nil {
		t.Fatalf("NewAuthorizer() error = %v", err)
	}

	decision, err := authorizer.Authorize(context.Background(), devToken(t, "alice"), "payments/search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	// The failing next engine proves the rollout path was taken.
	if decision.Allowed || decision.Reason != ReasonEvaluationFailed {
		t.Errorf("decision = %+v, want fail-closed deny from the rollout engine", decision)
	}
	if got := engine.calls.Load(); got != 0 {
		t.Errorf("primary engine calls = %d, want 0 at percent 100", got)
	}
}

func TestAuthorizer_RolloutZeroRoutesNobody(t *testing.T) {
	engine := testEngine(t)
	next := &failingEngine{err: errors.New("next generation offline")}

	authorizer, err := NewAuthorizer(Config{
		Validator: testValidator(t),
		Engine:    engine,
		Policy:    "tools",
		Rollout:   RolloutConfig{Percent: 0, Next: next},
	})
	if err != nil {
		t.Fatalf("NewAuthorizer() error = %v", err)
	}

	decision, err := authorizer.Authorize(context.Background(), devToken(t, "alice"), "payments/search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if !decision.Allowed {
		t.Errorf("Allowed = false (%q), want primary engine allow", decision.Reason)
	}
	if got := engine.calls.Load(); got != 1 {
		t.Errorf("primary engine calls = %d, want 1", got)
	}
}

func TestAuthorizer_OneEventPerRequest(t *testing.T) {
	authorizer, _, emitter := testAuthorizer(t)
	ctx := context.Background()
	token := devToken(t, "alice")

	requests := 0
	for _, call := range []struct {
		token    string
		resource string
	}{
		{token, "payments/search"}, // miss, evaluated
		{token, "payments/search"}, // hit
		{token, "payments/refund"}, // deny
		{"garbage", "payments/search"}, // rejected
	} {
		if _, err := authorizer.Authorize(ctx, call.token, call.resource, "invoke", nil); err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		requests++
	}

	got := emitter.all()
	if len(got) != requests {
		t.Fatalf("events = %d, want exactly %d (one per request)", len(got), requests)
	}
	seen := make(map[string]bool, len(got))
	for _, event := range got {
		if event.AuditID == "" {
			t.Error("event audit id is empty")
		}
		if seen[event.AuditID] {
			t.Errorf("audit id %q reused across events", event.AuditID)
		}
		seen[event.AuditID] = true
	}
}

func TestAuthorizer_ToolOnlyResource(t *testing.T) {
	authorizer, _, _ := testAuthorizer(t)

	// Without a slash the whole identifier names the tool.
	decision, err := authorizer.Authorize(context.Background(), devToken(t, "alice"), "search", "invoke", nil)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if !decision.Allowed {
		t.Errorf("Allowed = false (%q), want allow for unqualified tool", decision.Reason)
	}
}

// Package gateway composes the authorization hot path: token
// validation, decision caching, policy evaluation, and governance
// events, in that order.
//
// The Authorizer runs one request through a fixed state machine:
//
//	Received → Validating → [Rejected | CacheLookup]
//	CacheLookup → [CacheHit → Decided | CacheMiss → Evaluating → CacheStore → Decided]
//
// Every request terminates in exactly one decision. An invalid token
// rejects before the cache or the engine is touched. A cache hit
// returns the stored verdict without evaluating. A miss evaluates,
// stores the verdict for as long as the resource's sensitivity allows,
// and returns. Evaluator failures never escape as errors: the
// authorizer fails closed, denying with a category reason.
//
//	authorizer, err := gateway.NewAuthorizer(gateway.Config{
//	    Validator: validator,
//	    Engine:    engine,
//	    Policy:    "tools",
//	    Decisions: cache.NewMemory(cache.MemoryConfig{}),
//	    TTL:       cache.DefaultTTLPolicy(),
//	    Events:    events.NewLogEmitter(logger),
//	})
//	if err != nil {
//	    return err
//	}
//	decision, err := authorizer.Authorize(ctx, token, "payments/refund", "invoke", attrs)
//
// The Invoker is the outbound half: after a request is authorized, it
// carries the backend call through the per-destination circuit
// breaker, the retry executor, and the transport pool, recording one
// span and one metric sample per logical call.
//
// Runtime wires both halves, plus health checks and decision event
// sinks, from a loaded configuration. It is the one place where
// backend selection happens (memory versus redis cache, log versus
// pubsub versus kafka events, HS versus RSA versus JWKS keys).
package gateway

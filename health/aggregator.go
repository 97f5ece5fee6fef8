package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// AggregatorConfig configures check execution.
type AggregatorConfig struct {
	// Timeout bounds a full CheckAll pass. Checks still running when it
	// expires report unhealthy.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs the registered checks concurrently.
	// Default: true
	Parallel bool
}

// Aggregator runs a set of named health checkers and folds their
// results into one status.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	names    []string // registration order
}

// NewAggregator creates an aggregator. With no config, checks run in
// parallel under a 10 second budget.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{Timeout: 10 * time.Second, Parallel: true}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{config: cfg, checkers: make(map[string]Checker)}
}

// Register adds a checker under name. Registering a name twice replaces
// the previous checker and keeps its position.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.names = append(a.names, name)
	}
	a.checkers[name] = checker
}

// Unregister removes the named checker.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	if i := slices.Index(a.names, name); i >= 0 {
		a.names = slices.Delete(a.names, i, i+1)
	}
}

// CheckerNames returns registered checker names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.names)
}

// Check runs the single named checker.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.run(ctx, checker), nil
}

// CheckAll runs every registered checker and returns results keyed by
// checker name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	type entry struct {
		name    string
		checker Checker
	}

	a.mu.RLock()
	snapshot := make([]entry, 0, len(a.names))
	for _, name := range a.names {
		snapshot = append(snapshot, entry{name, a.checkers[name]})
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(snapshot))
	if len(snapshot) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if !a.config.Parallel {
		for _, e := range snapshot {
			results[e.name] = a.run(ctx, e.checker)
		}
		return results
	}

	outcomes := make([]Result, len(snapshot))
	var wg sync.WaitGroup
	for i, e := range snapshot {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = a.run(ctx, e.checker)
		}()
	}
	wg.Wait()

	for i, e := range snapshot {
		results[e.name] = outcomes[i]
	}
	return results
}

// OverallStatus folds results into a single status: any unhealthy check
// wins, then any degraded, otherwise healthy. No results is healthy.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	worst := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			worst = StatusDegraded
		}
	}
	return worst
}

// run executes one checker, stamping duration and timestamp. A checker
// still running when ctx expires reports unhealthy with ErrCheckTimeout
// rather than blocking the caller.
func (a *Aggregator) run(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		r := checker.Check(ctx)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		done <- r.WithDuration(time.Since(start))
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Error:     ErrCheckTimeout,
			Message:   "check timed out",
			Timestamp: start,
			Duration:  time.Since(start),
		}
	}
}

// Checker adapts the aggregator itself into a single Checker, letting a
// whole subsystem report as one component of a larger aggregator.
func (a *Aggregator) Checker() Checker {
	return &compositeChecker{agg: a}
}

type compositeChecker struct {
	agg *Aggregator
}

func (c *compositeChecker) Name() string {
	return "aggregate"
}

func (c *compositeChecker) Check(ctx context.Context) Result {
	results := c.agg.CheckAll(ctx)
	if len(results) == 0 {
		empty := Degraded("no checks registered")
		empty.Error = ErrNoCheckers
		return empty
	}

	details := make(map[string]any, len(results))
	for name, r := range results {
		details[name] = map[string]any{
			"status":   r.Status.String(),
			"message":  r.Message,
			"duration": r.Duration.String(),
		}
	}

	status := c.agg.OverallStatus(results)
	return Result{
		Status:    status,
		Message:   summaryMessage(status),
		Details:   details,
		Timestamp: time.Now(),
	}
}

func summaryMessage(s Status) string {
	switch s {
	case StatusDegraded:
		return "some checks degraded"
	case StatusUnhealthy:
		return "some checks failed"
	default:
		return "all checks passed"
	}
}

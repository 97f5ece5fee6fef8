package health

import "errors"

// Sentinels reported by probes and the aggregator.
var (
	// ErrCheckFailed marks a probe that ran and found trouble.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a probe that outran its deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound means no probe is registered under that name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNoCheckers means the aggregator has nothing to run.
	ErrNoCheckers = errors.New("health: no checkers registered")
)

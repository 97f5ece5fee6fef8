package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig tunes the process memory probe.
type MemoryCheckerConfig struct {
	// WarningThreshold is the heap fraction above which the probe
	// degrades, in (0, 1). Default 0.8.
	WarningThreshold float64

	// CriticalThreshold is the heap fraction above which the probe
	// reports unhealthy, in (0, 1). Default 0.95.
	CriticalThreshold float64

	// MaxAlloc caps the expected allocation in bytes. Zero uses the
	// memory obtained from the OS as the ceiling.
	MaxAlloc uint64
}

// MemoryChecker grades the gateway's own heap so a leaking decision
// cache shows up in readiness before the OOM killer notices it.
type MemoryChecker struct {
	config MemoryCheckerConfig
}

// NewMemoryChecker builds the probe, clamping out-of-range thresholds
// back to their defaults.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = min(config.WarningThreshold+0.1, 0.99)
	}
	return &MemoryChecker{config: config}
}

func (m *MemoryChecker) Name() string { return "memory" }

// Check reads runtime memory statistics and grades heap pressure
// against the configured thresholds.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ceiling := m.config.MaxAlloc
	if ceiling == 0 {
		ceiling = stats.Sys
	}
	if ceiling == 0 {
		return Healthy("memory stats unavailable").WithDetails(map[string]any{
			"alloc_bytes": stats.Alloc,
			"num_gc":      stats.NumGC,
		})
	}

	ratio := float64(stats.Alloc) / float64(ceiling)
	details := map[string]any{
		"alloc_bytes":    stats.Alloc,
		"alloc_mb":       float64(stats.Alloc) / (1 << 20),
		"max_alloc":      ceiling,
		"usage_percent":  ratio * 100,
		"heap_alloc":     stats.HeapAlloc,
		"heap_in_use":    stats.HeapInuse,
		"heap_objects":   stats.HeapObjects,
		"gc_pause_total": stats.PauseTotalNs,
		"num_gc":         stats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	switch {
	case ratio >= m.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("memory usage critical: %.1f%%", ratio*100), ErrCheckFailed).
			WithDetails(details)
	case ratio >= m.config.WarningThreshold:
		return Degraded(fmt.Sprintf("memory usage high: %.1f%%", ratio*100)).
			WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", ratio*100)).
			WithDetails(details)
	}
}

// ForceGC runs a collection so the next check reads settled numbers.
func (m *MemoryChecker) ForceGC() { runtime.GC() }

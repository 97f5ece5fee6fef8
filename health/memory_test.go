package health

import (
	"context"
	"testing"
)

func TestNewMemoryChecker_Defaults(t *testing.T) {
	probe := NewMemoryChecker(MemoryCheckerConfig{})

	if probe.config.WarningThreshold != 0.8 || probe.config.CriticalThreshold != 0.95 {
		t.Errorf("thresholds = %v/%v, want 0.8/0.95",
			probe.config.WarningThreshold, probe.config.CriticalThreshold)
	}
	if probe.Name() != "memory" {
		t.Errorf("Name() = %q, want %q", probe.Name(), "memory")
	}
}

func TestNewMemoryChecker_ClampsThresholds(t *testing.T) {
	probe := NewMemoryChecker(MemoryCheckerConfig{WarningThreshold: 1.5})
	if probe.config.WarningThreshold != 0.8 {
		t.Errorf("out-of-range warning = %v, want default 0.8", probe.config.WarningThreshold)
	}

	probe = NewMemoryChecker(MemoryCheckerConfig{WarningThreshold: 0.9, CriticalThreshold: 0.7})
	if probe.config.CriticalThreshold <= probe.config.WarningThreshold {
		t.Errorf("critical %v was not raised above warning %v",
			probe.config.CriticalThreshold, probe.config.WarningThreshold)
	}

	probe = NewMemoryChecker(MemoryCheckerConfig{WarningThreshold: 0.7, CriticalThreshold: 0.9})
	if probe.config.WarningThreshold != 0.7 || probe.config.CriticalThreshold != 0.9 {
		t.Errorf("valid thresholds changed: %v/%v",
			probe.config.WarningThreshold, probe.config.CriticalThreshold)
	}
}

func TestMemoryChecker_Check(t *testing.T) {
	probe := NewMemoryChecker(MemoryCheckerConfig{})

	got := probe.Check(context.Background())
	if got.Status == StatusUnhealthy {
		t.Logf("heap unexpectedly hot in test process: %s", got.Message)
	}
	for _, key := range []string{"alloc_bytes", "heap_alloc", "num_gc", "goroutines", "usage_percent"} {
		if _, ok := got.Details[key]; !ok {
			t.Errorf("Details missing %s", key)
		}
	}
}

func TestMemoryChecker_CancelledContext(t *testing.T) {
	probe := NewMemoryChecker(MemoryCheckerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := probe.Check(ctx)
	if got.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want StatusUnhealthy", got.Status)
	}
	if got.Error != context.Canceled {
		t.Errorf("Error = %v, want context.Canceled", got.Error)
	}
}

func TestMemoryChecker_TinyCeiling(t *testing.T) {
	probe := NewMemoryChecker(MemoryCheckerConfig{
		MaxAlloc:          1,
		WarningThreshold:  0.5,
		CriticalThreshold: 0.8,
	})

	got := probe.Check(context.Background())
	if got.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want StatusUnhealthy against a one byte ceiling", got.Status)
	}
	if got.Details["max_alloc"] != uint64(1) {
		t.Errorf("max_alloc = %v, want 1", got.Details["max_alloc"])
	}
}

func TestMemoryChecker_ForceGC(t *testing.T) {
	probe := NewMemoryChecker(MemoryCheckerConfig{})
	probe.ForceGC()

	if got := probe.Check(context.Background()); got.Details == nil {
		t.Error("Check() after ForceGC returned no details")
	}
}

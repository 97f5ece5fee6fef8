package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	names := map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
		Status(42):      "unknown",
		Status(-1):      "unknown",
	}
	for status, want := range names {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(status), got, want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	redisDown := errors.New("redis unreachable")

	tests := []struct {
		name       string
		result     Result
		wantStatus Status
		wantErr    error
	}{
		{"healthy", Healthy("pool at 8/32"), StatusHealthy, nil},
		{"degraded", Degraded("jwks refresh overdue"), StatusDegraded, nil},
		{"unhealthy", Unhealthy("redis unreachable", redisDown), StatusUnhealthy, redisDown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.result.Status != tc.wantStatus {
				t.Errorf("Status = %v, want %v", tc.result.Status, tc.wantStatus)
			}
			if tc.result.Message == "" {
				t.Error("Message is empty")
			}
			if tc.result.Error != tc.wantErr {
				t.Errorf("Error = %v, want %v", tc.result.Error, tc.wantErr)
			}
			if tc.result.Timestamp.IsZero() {
				t.Error("Timestamp was not stamped")
			}
		})
	}
}

func TestResult_Builders(t *testing.T) {
	r := Degraded("cache evicting hard").
		WithDetails(map[string]any{"entries": 950, "capacity": 1000}).
		WithDuration(12 * time.Millisecond)

	if r.Details["entries"] != 950 {
		t.Errorf("Details[entries] = %v, want 950", r.Details["entries"])
	}
	if r.Duration != 12*time.Millisecond {
		t.Errorf("Duration = %v, want 12ms", r.Duration)
	}
	if r.Status != StatusDegraded || r.Message != "cache evicting hard" {
		t.Errorf("builders changed the base result: %+v", r)
	}
}

func TestCheckerFunc(t *testing.T) {
	probe := NewCheckerFunc("breakers", func(context.Context) Result {
		return Healthy("all closed")
	})

	if probe.Name() != "breakers" {
		t.Errorf("Name() = %q, want %q", probe.Name(), "breakers")
	}
	got := probe.Check(context.Background())
	if got.Status != StatusHealthy || got.Message != "all closed" {
		t.Errorf("Check() = %+v, want healthy with message all closed", got)
	}
}

func TestCheckerFunc_ContextAware(t *testing.T) {
	probe := NewCheckerFunc("idp", func(ctx context.Context) Result {
		if ctx.Err() != nil {
			return Unhealthy("probe abandoned", ctx.Err())
		}
		return Healthy("reachable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := probe.Check(ctx); got.Status != StatusUnhealthy {
		t.Errorf("Check() Status = %v, want StatusUnhealthy", got.Status)
	}
}

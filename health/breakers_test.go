package health

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/gateops/resilience"
)

func TestBreakerChecker_Name(t *testing.T) {
	checker := NewBreakerChecker(resilience.NewBreakers(resilience.CircuitBreakerConfig{}))

	if checker.Name() != "breakers" {
		t.Errorf("Name() = %v, want 'breakers'", checker.Name())
	}
}

func TestBreakerChecker_NoDestinations(t *testing.T) {
	checker := NewBreakerChecker(resilience.NewBreakers(resilience.CircuitBreakerConfig{}))

	result := checker.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy", result.Status)
	}
	if result.Message != "no destinations tracked" {
		t.Errorf("Message = %q, want 'no destinations tracked'", result.Message)
	}
	if result.Details["destinations"] != 0 {
		t.Errorf("destinations = %v, want 0", result.Details["destinations"])
	}
}

func TestBreakerChecker_AllClosed(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{})
	breakers.For("https://payments.internal")
	breakers.For("https://ledger.internal")

	checker := NewBreakerChecker(breakers)
	result := checker.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy", result.Status)
	}
	if result.Message != "all 2 circuits closed" {
		t.Errorf("Message = %q, want 'all 2 circuits closed'", result.Message)
	}
	if result.Details["destinations"] != 2 {
		t.Errorf("destinations = %v, want 2", result.Details["destinations"])
	}
}

func TestBreakerChecker_OpenDegrades(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
	})
	breakers.For("https://ledger.internal")
	breakers.For("https://payments.internal").RecordFailure()

	checker := NewBreakerChecker(breakers)
	result := checker.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want StatusDegraded", result.Status)
	}
	if result.Message != "1 of 2 destinations open" {
		t.Errorf("Message = %q, want '1 of 2 destinations open'", result.Message)
	}

	open, ok := result.Details["open"].([]string)
	if !ok || len(open) != 1 {
		t.Fatalf("open = %v, want one destination", result.Details["open"])
	}
	if open[0] != "https://payments.internal" {
		t.Errorf("open[0] = %q, want payments destination", open[0])
	}
}

func TestBreakerChecker_HalfOpenHealthy(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Millisecond,
	})
	breakers.For("https://payments.internal").RecordFailure()

	time.Sleep(10 * time.Millisecond)

	checker := NewBreakerChecker(breakers)
	result := checker.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy for half-open circuit", result.Status)
	}
	if result.Message != "1 of 1 destinations recovering" {
		t.Errorf("Message = %q, want '1 of 1 destinations recovering'", result.Message)
	}

	halfOpen, ok := result.Details["half_open"].([]string)
	if !ok || len(halfOpen) != 1 {
		t.Fatalf("half_open = %v, want one destination", result.Details["half_open"])
	}
}

func TestBreakerChecker_OpenListSorted(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
	})
	breakers.For("https://zeta.internal").RecordFailure()
	breakers.For("https://alpha.internal").RecordFailure()

	checker := NewBreakerChecker(breakers)
	result := checker.Check(context.Background())

	open, ok := result.Details["open"].([]string)
	if !ok || len(open) != 2 {
		t.Fatalf("open = %v, want two destinations", result.Details["open"])
	}
	if open[0] != "https://alpha.internal" || open[1] != "https://zeta.internal" {
		t.Errorf("open = %v, want sorted destinations", open)
	}
}

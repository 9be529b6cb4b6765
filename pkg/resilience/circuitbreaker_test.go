package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(context.Background(), func(context.Context) (any, error) {
			return nil, fmt.Errorf("boom %d", i)
		})
	}

	if cb.State() != StateOpen {
		t.Fatalf("State() = %q, want %q after 2 failures", cb.State(), StateOpen)
	}

	_, err := cb.Execute(context.Background(), func(context.Context) (any, error) {
		t.Fatal("fn must not run while the breaker is open")
		return nil, nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	_, _ = cb.Execute(context.Background(), func(context.Context) (any, error) {
		return nil, fmt.Errorf("fail")
	})
	time.Sleep(20 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %q, want %q after reset timeout", cb.State(), StateHalfOpen)
	}

	result, err := cb.Execute(context.Background(), func(context.Context) (any, error) {
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %v, want %q", result, "recovered")
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %q, want %q after a successful probe", cb.State(), StateClosed)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	_, _ = cb.Execute(context.Background(), func(context.Context) (any, error) {
		return nil, fmt.Errorf("fail")
	})
	time.Sleep(20 * time.Millisecond)

	_, _ = cb.Execute(context.Background(), func(context.Context) (any, error) {
		return nil, fmt.Errorf("probe failed")
	})

	if cb.State() != StateOpen {
		t.Errorf("State() = %q, want %q after a failed probe", cb.State(), StateOpen)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	_, _ = cb.Execute(context.Background(), func(context.Context) (any, error) {
		return nil, fmt.Errorf("fail")
	})
	if cb.State() != StateOpen {
		t.Fatalf("State() = %q, want %q", cb.State(), StateOpen)
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("State() = %q, want %q after Reset", cb.State(), StateClosed)
	}
}

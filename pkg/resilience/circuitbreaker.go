// Package resilience provides small, dependency-free building blocks for
// guarding calls to external systems: a circuit breaker here, with room for
// retry/hedge helpers alongside it as they're needed.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a circuit breaker's current state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned by Execute without calling fn when the breaker
// is open and the reset timeout hasn't elapsed yet.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after failureThreshold consecutive failures, then
// rejects calls for resetTimeout before allowing one probe call through.
// A successful probe closes the breaker; a failed probe reopens it.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewCircuitBreaker builds a CircuitBreaker. failureThreshold defaults to 5
// and resetTimeout defaults to 30s when zero.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// State reports the breaker's current state, transitioning Open to
// HalfOpen as a side effect once resetTimeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// Execute runs fn if the breaker allows it, and records the outcome. An Open
// breaker rejects the call with ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	cb.mu.Lock()
	if cb.stateLocked() == StateOpen {
		cb.mu.Unlock()
		return nil, ErrCircuitOpen
	}
	cb.mu.Unlock()

	result, err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return result, err
	}
	cb.failures = 0
	cb.state = StateClosed
	return result, nil
}

// Reset forces the breaker back to Closed with a clean failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}

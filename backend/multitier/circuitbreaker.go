package multitier

import (
	"sync"
	"time"
)

type cbState int

const (
	stateClosed cbState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker gates L2 access behind a Closed/Open/HalfOpen state
// machine. HalfOpen admits parallel probes rather than a single gated
// one, so a burst arriving right at the reset boundary may record
// several failures before the breaker reopens.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            cbState
	failures         uint32
	openedAt         time.Time
	failureThreshold uint32
	resetTimeout     time.Duration
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and attempts a half-open probe after resetTimeout.
func NewCircuitBreaker(failureThreshold uint32, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// AllowRequest reports whether an L2 call should proceed right now.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(cb.openedAt) >= cb.resetTimeout {
			cb.state = stateHalfOpen
			return true
		}
		return false
	default: // stateHalfOpen
		return true
	}
}

// ReportSuccess closes the breaker from HalfOpen and resets the
// failure counter from Closed (a decay on every success).
func (cb *CircuitBreaker) ReportSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateHalfOpen:
		cb.state = stateClosed
		cb.failures = 0
	case stateClosed:
		cb.failures = 0
	}
}

// ReportFailure trips the breaker open once failures reach the
// threshold (from Closed), or immediately re-opens it from HalfOpen.
func (cb *CircuitBreaker) ReportFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = stateOpen
			cb.openedAt = time.Now()
		}
	case stateHalfOpen:
		cb.state = stateOpen
		cb.openedAt = time.Now()
	case stateOpen:
		// already open
	}
}

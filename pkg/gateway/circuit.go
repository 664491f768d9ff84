package gateway

import (
	"sync"
	"time"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker opens after threshold consecutive provider failures. Once
// the cooldown passes it admits one probe at a time; probes consecutive
// successes close it again and any probe failure reopens it.
type CircuitBreaker struct {
	threshold int
	probes    int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	passed   int
	probing  bool
	openedAt time.Time
}

// NewCircuitBreaker falls back to 5 failures, 2 probes and 30s for
// non-positive arguments.
func NewCircuitBreaker(threshold, probes int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: positive(threshold, 5),
		probes:    positive(probes, 2),
		cooldown:  positive(cooldown, 30*time.Second),
		now:       time.Now,
	}
}

// WithClock replaces time.Now; it returns cb for chaining.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	if now != nil {
		cb.now = now
	}
	return cb
}

// Allow reports whether a call may go out. Every allowed call must be
// followed by RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state, cb.passed = CircuitHalfOpen, 0
	}
	if cb.state == CircuitHalfOpen {
		if cb.probing {
			return false
		}
		cb.probing = true
	}
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != CircuitHalfOpen {
		return
	}
	cb.probing = false
	if cb.passed++; cb.passed >= cb.probes {
		cb.state = CircuitClosed
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state, cb.openedAt, cb.probing = CircuitOpen, cb.now(), false
	}
}

// State reports an open breaker whose cooldown has passed as half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		return CircuitHalfOpen
	}
	return cb.state
}

func positive[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

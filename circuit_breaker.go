package refreshkit

import (
	"sync"
	"time"
)

// CircuitState is the circuit breaker's current state.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker open.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before admitting
	// half-open trial calls.
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls bounds the trial calls admitted while half-open.
	HalfOpenMaxCalls int
}

// StateChangeFunc observes breaker transitions. Subscribers never influence
// behavior; they exist for monitoring.
type StateChangeFunc func(from, to CircuitState)

// CircuitBreaker is a three-state failure isolator. All transitions happen
// under one mutex so concurrent Admit/Record calls cannot tear state.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu            sync.Mutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	subscribers   []StateChangeFunc
}

// NewCircuitBreaker creates a breaker, applying defaults for zero fields
// (threshold 5, recovery 60s, 3 half-open trials).
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMaxCalls == 0 {
		cfg.HalfOpenMaxCalls = 3
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Admit reports whether a call may proceed. An open breaker lazily
// transitions to half-open once the recovery timeout has elapsed; there is
// no background timer. Half-open admits at most HalfOpenMaxCalls trials.
func (cb *CircuitBreaker) Admit() bool {
	cb.mu.Lock()
	var change *stateChange

	admitted := false
	switch cb.state {
	case StateClosed:
		admitted = true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.cfg.RecoveryTimeout {
			change = cb.transition(StateHalfOpen)
			cb.halfOpenCalls = 1
			admitted = true
		}
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.cfg.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			admitted = true
		}
	}
	cb.mu.Unlock()

	cb.notify(change)
	return admitted
}

// RecordSuccess must be called exactly once per successful attempt. A single
// success while half-open closes the breaker and zeroes the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var change *stateChange
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		change = cb.transition(StateClosed)
		cb.failures = 0
		cb.halfOpenCalls = 0
	}
	cb.mu.Unlock()

	cb.notify(change)
}

// RecordFailure must be called exactly once per failed attempt.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var change *stateChange
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			change = cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A trial failure re-opens immediately.
		change = cb.transition(StateOpen)
		cb.halfOpenCalls = 0
	case StateOpen:
		// Already open; lastFailure refresh above restarts recovery.
	}
	cb.mu.Unlock()

	cb.notify(change)
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Subscribe registers fn for state-change notifications. Not safe to call
// concurrently with request traffic; subscribe during setup.
func (cb *CircuitBreaker) Subscribe(fn StateChangeFunc) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.subscribers = append(cb.subscribers, fn)
}

type stateChange struct {
	from, to CircuitState
}

// transition must be called with the mutex held; the returned change is
// delivered by notify after unlock so subscribers cannot deadlock.
func (cb *CircuitBreaker) transition(to CircuitState) *stateChange {
	change := &stateChange{from: cb.state, to: to}
	cb.state = to
	return change
}

func (cb *CircuitBreaker) notify(change *stateChange) {
	if change == nil {
		return
	}
	cb.mu.Lock()
	subs := make([]StateChangeFunc, len(cb.subscribers))
	copy(subs, cb.subscribers)
	cb.mu.Unlock()

	for _, fn := range subs {
		fn(change.from, change.to)
	}
}

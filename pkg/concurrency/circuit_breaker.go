package concurrency

import (
	"sync"
	"sync/atomic"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int32

const (
	// StateClosed lets every call through
	StateClosed CircuitBreakerState = 0

	// StateOpen rejects calls until the reset timeout elapses
	StateOpen CircuitBreakerState = 1

	// StateHalfOpen lets trial calls through to check whether the dependency recovered
	StateHalfOpen CircuitBreakerState = 2
)

// BreakerConfig tunes a CircuitBreaker. Zero fields take defaults.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int64 `mapstructure:"failure_threshold"`
	// ResetTimeout is how long the circuit stays open before probing
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
	// HalfOpenSuccesses is the number of trial calls that must succeed to close again
	HalfOpenSuccesses int64 `mapstructure:"half_open_successes"`
}

// DefaultBreakerConfig returns the settings used for zero fields.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  10,
		ResetTimeout:      30 * time.Second,
		HalfOpenSuccesses: 5,
	}
}

// CircuitBreaker stops calls to a failing dependency so callers fail fast
// instead of queueing behind timeouts.
type CircuitBreaker struct {
	state                int32 // atomic: CircuitBreakerState
	consecutiveFailures  int64 // atomic
	consecutiveSuccesses int64 // atomic
	lastFailureTime      int64 // atomic: Unix nano timestamp
	cfg                  BreakerConfig
	onChange             func(from, to CircuitBreakerState)
	mu                   sync.Mutex
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	return &CircuitBreaker{state: int32(StateClosed), cfg: cfg}
}

// OnStateChange registers fn to run after every state transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitBreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// IsOpen reports whether calls are currently rejected. An open circuit whose reset
// timeout elapsed moves to half-open and reports false.
func (cb *CircuitBreaker) IsOpen() bool {
	if CircuitBreakerState(atomic.LoadInt32(&cb.state)) != StateOpen {
		return false
	}
	lastFailure := atomic.LoadInt64(&cb.lastFailureTime)
	if lastFailure > 0 && time.Since(time.Unix(0, lastFailure)) > cb.cfg.ResetTimeout {
		cb.transitionTo(StateHalfOpen)
		return false
	}
	return true
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	atomic.StoreInt64(&cb.consecutiveFailures, 0)

	if CircuitBreakerState(atomic.LoadInt32(&cb.state)) == StateHalfOpen {
		if atomic.AddInt64(&cb.consecutiveSuccesses, 1) >= cb.cfg.HalfOpenSuccesses {
			cb.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	state := CircuitBreakerState(atomic.LoadInt32(&cb.state))

	atomic.StoreInt64(&cb.consecutiveSuccesses, 0)
	atomic.StoreInt64(&cb.lastFailureTime, time.Now().UnixNano())
	failures := atomic.AddInt64(&cb.consecutiveFailures, 1)

	switch {
	case state == StateClosed && failures >= cb.cfg.FailureThreshold:
		cb.transitionTo(StateOpen)
	case state == StateHalfOpen:
		// any failed trial call reopens
		cb.transitionTo(StateOpen)
	}
}

// State returns the current state without advancing it
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return CircuitBreakerState(atomic.LoadInt32(&cb.state))
}

// ConsecutiveFailures returns the current number of consecutive failures
func (cb *CircuitBreaker) ConsecutiveFailures() int64 {
	return atomic.LoadInt64(&cb.consecutiveFailures)
}

// Reset closes the circuit and clears its counters
func (cb *CircuitBreaker) Reset() {
	cb.transitionTo(StateClosed)
	atomic.StoreInt64(&cb.lastFailureTime, 0)
}

func (cb *CircuitBreaker) transitionTo(newState CircuitBreakerState) {
	cb.mu.Lock()
	oldState := CircuitBreakerState(atomic.LoadInt32(&cb.state))
	if oldState == newState {
		cb.mu.Unlock()
		return
	}
	atomic.StoreInt32(&cb.state, int32(newState))

	switch newState {
	case StateClosed:
		atomic.StoreInt64(&cb.consecutiveFailures, 0)
		atomic.StoreInt64(&cb.consecutiveSuccesses, 0)
	case StateHalfOpen:
		atomic.StoreInt64(&cb.consecutiveSuccesses, 0)
	}
	onChange := cb.onChange
	cb.mu.Unlock()

	if onChange != nil {
		onChange(oldState, newState)
	}
}

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

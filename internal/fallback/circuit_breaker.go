package fallback

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	ResetTimeout     time.Duration // initial cooldown before transitioning to half-open
	HalfOpenMax      int           // max probe requests allowed in half-open
}

// DefaultCircuitBreakerConfig returns the defaults both OpenAI fallbacks use.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      1,
	}
}

// CircuitBreaker guards calls to the optional LLM fallback (spec §5 "external
// fallback"). One instance per OpenAIHeaderFallback/OpenAIPatientNameFallback;
// it stops calls after repeated transient failures. Concurrency is bounded
// separately, by each instance's mutex and the process-wide shared semaphore.
type CircuitBreaker struct {
	mu              sync.Mutex
	config          CircuitBreakerConfig
	state           CircuitState
	failures        int
	lastFailureAt   time.Time
	halfOpenCount   int
	consecutiveOpen int
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: cfg, state: CircuitStateClosed}
}

// backoffDuration doubles the reset timeout on each re-open from half-open,
// capped at 5 minutes.
func (cb *CircuitBreaker) backoffDuration() time.Duration {
	multiplier := 1 << uint(cb.consecutiveOpen)
	backoff := time.Duration(multiplier) * cb.config.ResetTimeout
	const maxBackoff = 5 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// State returns the current state, first checking for an Open -> HalfOpen
// transition if the backoff has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkAndTransition()
	return cb.state
}

// GetExponentialBackoffDuration exposes backoffDuration for callers that want
// to observe the current wait without mutating state.
func (cb *CircuitBreaker) GetExponentialBackoffDuration() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.backoffDuration()
}

func (cb *CircuitBreaker) checkAndTransition() {
	if cb.state == CircuitStateOpen && time.Since(cb.lastFailureAt) > cb.backoffDuration() {
		cb.state = CircuitStateHalfOpen
		cb.halfOpenCount = 0
	}
}

// Allow reports whether a call should be attempted right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkAndTransition()
	switch cb.state {
	case CircuitStateClosed:
		return true
	case CircuitStateHalfOpen:
		if cb.halfOpenCount < cb.config.HalfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.consecutiveOpen = 0
	cb.state = CircuitStateClosed
	cb.halfOpenCount = 0
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailureAt = time.Now()
	if cb.state == CircuitStateHalfOpen {
		cb.state = CircuitStateOpen
		cb.consecutiveOpen++
		return
	}
	if cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitStateOpen
	}
}

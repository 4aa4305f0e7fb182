package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int `mapstructure:"failure_threshold"`

	// SuccessThreshold is the number of successes that closes a half-open circuit
	SuccessThreshold int `mapstructure:"success_threshold"`

	// Timeout is how long the circuit stays open before probing again
	Timeout time.Duration `mapstructure:"timeout"`

	// OnStateChange is called when the state changes
	OnStateChange func(name string, from, to CircuitBreakerState) `mapstructure:"-"`
}

// CircuitBreakerStatus represents the current status of a circuit breaker
type CircuitBreakerStatus struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalRejections     int64     `json:"total_rejections"`
	LastFailureTime     time.Time `json:"last_failure_time,omitempty"`
	NextAttempt         time.Time `json:"next_attempt,omitempty"`
}

// CircuitBreaker guards calls whose outcome is only known later, such as
// a stream that fails midway. Callers ask Allow before starting and
// Record the outcome when done.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu                   sync.Mutex
	state                CircuitBreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	rejections           int64
	lastFailureTime      time.Time
	nextAttempt          time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Before(cb.nextAttempt) {
			cb.rejections++
			return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
		}
		cb.setState(StateHalfOpen)
	}
	return nil
}

// Record registers the outcome of an allowed call.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses++
		if cb.state == StateHalfOpen && cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState

	switch newState {
	case StateOpen:
		cb.nextAttempt = cb.now().Add(cb.config.Timeout)
	case StateHalfOpen:
		cb.consecutiveSuccesses = 0
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, oldState, newState)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Status returns the current status of the circuit breaker
func (cb *CircuitBreaker) Status() CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := CircuitBreakerStatus{
		Name:                cb.name,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalRejections:     cb.rejections,
		LastFailureTime:     cb.lastFailureTime,
	}
	if cb.state == StateOpen {
		status.NextAttempt = cb.nextAttempt
	}
	return status
}

// Reset closes the circuit and clears counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.rejections = 0
	cb.lastFailureTime = time.Time{}
}

// Check reports an open circuit as degraded so readiness is unaffected.
func (cb *CircuitBreaker) Check(ctx context.Context) Check {
	status := cb.Status()
	check := Check{
		Name:        cb.name,
		Status:      StatusHealthy,
		LastChecked: cb.now(),
		Metadata:    status,
	}
	if status.State != StateClosed.String() {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("circuit %s", status.State)
	}
	return check
}

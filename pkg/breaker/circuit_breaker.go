// Package breaker implements the circuit breakers that guard outbound
// payment provider calls. A provider that keeps failing is taken out of
// rotation until a probe shows it recovered, which is what lets the
// gateway fall back to the secondary provider instead of stalling on a
// dead primary.
package breaker

import (
	"context"
	"sync"
	"time"
)

// State of a breaker
type State int

const (
	// StateClosed calls flow through normally
	StateClosed State = iota
	// StateOpen calls are rejected without touching the provider
	StateOpen
	// StateHalfOpen a limited number of probe calls test recovery
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpenState the breaker is open and the call was not attempted
	ErrOpenState = &CircuitBreakerError{message: "circuit breaker is open"}
	// ErrTooManyRequests the half-open probe budget is exhausted
	ErrTooManyRequests = &CircuitBreakerError{message: "too many requests"}
)

// CircuitBreakerError marks errors raised by the breaker itself rather
// than by the wrapped call. The gateway treats these as provider
// unavailability when deciding whether to fall back.
type CircuitBreakerError struct {
	message string
}

func (e *CircuitBreakerError) Error() string {
	return e.message
}

// IsCircuitBreakerError reports whether err came from a breaker
func IsCircuitBreakerError(err error) bool {
	_, ok := err.(*CircuitBreakerError)
	return ok
}

// Config breaker tuning
type Config struct {
	// MaxRequests probe calls allowed while half-open
	MaxRequests uint32
	// Interval window after which closed-state counts reset
	Interval time.Duration
	// Timeout how long an open breaker waits before probing
	Timeout time.Duration
	// ReadyToTrip decides when accumulated failures open the breaker
	ReadyToTrip func(counts Counts) bool
	// OnStateChange observes transitions, usually for logging
	OnStateChange func(name string, from State, to State)
}

// Counts call outcomes for the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker guards one named dependency. Counts are tracked per
// generation; a state change or interval expiry starts a fresh one so a
// stale burst of failures cannot trip the breaker forever.
type CircuitBreaker struct {
	name          string
	maxRequests   uint32
	interval      time.Duration
	timeout       time.Duration
	readyToTrip   func(counts Counts) bool
	onStateChange func(name string, from State, to State)

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// NewCircuitBreaker creates a breaker for the named dependency
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          name,
		maxRequests:   config.MaxRequests,
		interval:      config.Interval,
		timeout:       config.Timeout,
		readyToTrip:   config.ReadyToTrip,
		onStateChange: config.OnStateChange,
	}

	if cb.maxRequests == 0 {
		cb.maxRequests = 1
	}
	if cb.interval == 0 {
		cb.interval = time.Minute
	}
	if cb.timeout == 0 {
		cb.timeout = time.Minute
	}
	if cb.readyToTrip == nil {
		cb.readyToTrip = func(counts Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		}
	}

	cb.newGeneration(time.Now())

	return cb
}

// Execute runs fn if the breaker allows it and records the outcome. A
// panic inside fn counts as a failure and is re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := cb.beforeCall()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterCall(generation, false)
			panic(e)
		}
	}()

	err = fn()
	cb.afterCall(generation, err == nil)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, _ := cb.currentState(time.Now())
	return state
}

// Counts returns the counts for the current generation
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

// Reset forces the breaker closed and clears its counts
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.newGeneration(time.Now())
	cb.state = StateClosed
}

func (cb *CircuitBreaker) beforeCall() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	if state == StateOpen {
		return generation, ErrOpenState
	}
	if state == StateHalfOpen && cb.counts.Requests >= cb.maxRequests {
		return generation, ErrTooManyRequests
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterCall(before uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)
	if generation != before {
		// The generation rolled over while the call ran; its outcome
		// belongs to a window that no longer exists
		return
	}

	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

func (cb *CircuitBreaker) onSuccess(state State, now time.Time) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.maxRequests {
		cb.setState(StateClosed, now)
	}
}

func (cb *CircuitBreaker) onFailure(state State, now time.Time) {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if cb.readyToTrip(cb.counts) {
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.newGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	cb.newGeneration(now)

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}

func (cb *CircuitBreaker) newGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}

	switch cb.state {
	case StateOpen:
		cb.expiry = now.Add(cb.timeout)
	case StateClosed:
		cb.expiry = now.Add(cb.interval)
	default:
		// Half-open has no expiry; it resolves through call outcomes
		cb.expiry = time.Time{}
	}
}

// Manager holds one breaker per provider, created lazily with a shared
// config so both payment providers trip under the same policy.
type Manager struct {
	breakers sync.Map
	config   Config
}

// NewManager creates a breaker manager
func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// GetBreaker returns the breaker for name, creating it on first use
func (m *Manager) GetBreaker(name string) *CircuitBreaker {
	if cb, ok := m.breakers.Load(name); ok {
		return cb.(*CircuitBreaker)
	}

	cb := NewCircuitBreaker(name, m.config)
	actual, loaded := m.breakers.LoadOrStore(name, cb)
	if loaded {
		return actual.(*CircuitBreaker)
	}
	return cb
}

// Execute runs fn under the named breaker
func (m *Manager) Execute(ctx context.Context, name string, fn func() error) error {
	return m.GetBreaker(name).Execute(ctx, fn)
}

// State returns the state of the named breaker
func (m *Manager) State(name string) State {
	return m.GetBreaker(name).State()
}

// DefaultManager is used when a caller does not supply its own
var DefaultManager = NewManager(Config{
	MaxRequests: 5,
	Interval:    time.Minute,
	Timeout:     30 * time.Second,
})

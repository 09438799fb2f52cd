// Package circuitbreaker guards calls to a remote dependency.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling fn while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

// Config holds breaker parameters. Zero values take defaults.
type Config struct {
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it. Default 2.
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays open before probing. Default 30s.
	OpenTimeout time.Duration
	// Component labels state-change callbacks.
	Component string
	// OnStateChange is invoked outside the lock after every transition.
	OnStateChange func(component string, from, to State)
}

// CircuitBreaker opens after repeated failures and lets probes through once
// OpenTimeout has elapsed.
type CircuitBreaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// New returns a closed breaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Call runs fn when the breaker allows it. Context cancellation is returned
// as-is and does not count as a failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	cb.record(err == nil)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.cfg.OpenTimeout {
		cb.mu.Unlock()
		return ErrOpen
	}
	cb.successes = 0
	notify := cb.transitionLocked(StateHalfOpen)
	cb.mu.Unlock()
	notify()
	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	notify := func() {}
	if ok {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.successes = 0
				notify = cb.transitionLocked(StateClosed)
			}
		}
	} else {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.failures = 0
			cb.openedAt = cb.now()
			notify = cb.transitionLocked(StateOpen)
		}
	}
	cb.mu.Unlock()
	notify()
}

// transitionLocked sets the new state and returns the callback to run after unlocking.
func (cb *CircuitBreaker) transitionLocked(to State) func() {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange == nil || from == to {
		return func() {}
	}
	return func() { cb.cfg.OnStateChange(cb.cfg.Component, from, to) }
}

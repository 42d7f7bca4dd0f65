// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to the housing portal.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/zkhbridge/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker stops hammering the portal after consecutive failures and
// lets a single trial request through once resetTimeout has elapsed.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string // Component name for metrics
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	clock        clock
	ignore       func(error) bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces the wall clock.
func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithIgnore marks errors that must not count as failures (e.g. caller cancellation).
func WithIgnore(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.ignore = fn }
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		ignore:       isCancellation,
	}

	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Execute runs the given function respecting the breaker state.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.recordSuccess()
	case cb.ignore != nil && cb.ignore(err):
		// neither success nor failure
	default:
		cb.recordFailure()
	}
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) > cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	if cb.state == StateHalfOpen {
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
		return
	}

	if cb.state == StateClosed && cb.failures >= cb.threshold {
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateClosed {
		cb.transitionTo(StateClosed)
	}
}

// transitionTo handles state transitions and updates metrics.
// Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	if newState == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// RetryAfter reports how long an open breaker keeps rejecting calls.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return 0
	}
	left := cb.resetTimeout - cb.clock.Now().Sub(cb.openedAt)
	if left < 0 {
		return 0
	}
	return left
}

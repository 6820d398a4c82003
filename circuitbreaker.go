package pipelinekit

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState string

// Recognized breaker states.
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// CircuitBreaker wraps a Handler with the three-state breaker pattern:
// closed (normal operation), open (fail fast without invoking the wrapped
// handler), and half-open (a single probe call decides whether to close or
// reopen). Create one CircuitBreaker per protected handler and reuse it
// across calls; a breaker created per call never accumulates failures and
// so never opens.
type CircuitBreaker[C Command, R any] struct {
	mu               sync.Mutex
	handler          Handler[C, R]
	clock            clockz.Clock
	name             string
	state            BreakerState
	failureThreshold int
	successThreshold int
	resetTimeout     time.Duration
	failures         int
	successes        int
	generation       int
	probing          bool
	lastFailTime     time.Time
}

// NewCircuitBreaker creates a breaker around handler. It opens after
// failureThreshold consecutive failures while closed, and waits
// resetTimeout before allowing a single half-open probe. successThreshold
// defaults to 1 consecutive success to close from half-open; use
// SetSuccessThreshold to change it.
func NewCircuitBreaker[C Command, R any](name string, handler Handler[C, R], failureThreshold int, resetTimeout time.Duration) *CircuitBreaker[C, R] {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker[C, R]{
		handler:          handler,
		name:             name,
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: 1,
		resetTimeout:     resetTimeout,
		clock:            clockz.RealClock,
	}
}

// WithBreakerClock overrides the clock used for reset-timeout bookkeeping.
func (cb *CircuitBreaker[C, R]) WithBreakerClock(clock clockz.Clock) *CircuitBreaker[C, R] {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = clock
	return cb
}

// SetSuccessThreshold updates the consecutive successes required in
// half-open state before the circuit closes.
func (cb *CircuitBreaker[C, R]) SetSuccessThreshold(n int) *CircuitBreaker[C, R] {
	if n < 1 {
		n = 1
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successThreshold = n
	return cb
}

// Handle implements Handler. While open and not yet past resetTimeout, it
// fails immediately with ErrCircuitOpen. Once resetTimeout has elapsed, the
// first caller to arrive is admitted as the half-open probe; every other
// caller arriving before that probe resolves is rejected rather than
// racing it into the wrapped handler concurrently.
func (cb *CircuitBreaker[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	var zero R

	cb.mu.Lock()

	if cb.state == BreakerOpen && cb.clock.Since(cb.lastFailTime) > cb.resetTimeout {
		if cb.probing {
			cb.mu.Unlock()
			cb.emitRejected(ctx)
			return zero, NewError(KindBreakerOpen, ErrCircuitOpen, cb.name)
		}
		cb.state = BreakerHalfOpen
		cb.failures = 0
		cb.successes = 0
		cb.generation++
		cb.probing = true
		capitan.Warn(ctx, SignalBreakerHalfOpen,
			FieldName.Field(cb.name),
			FieldState.Field(string(cb.state)),
			FieldGeneration.Field(cb.generation),
		)
	} else if cb.state == BreakerHalfOpen {
		if cb.probing {
			cb.mu.Unlock()
			cb.emitRejected(ctx)
			return zero, NewError(KindBreakerOpen, ErrCircuitOpen, cb.name)
		}
		cb.probing = true
	}

	state := cb.state
	generation := cb.generation
	handler := cb.handler

	if state == BreakerOpen {
		cb.mu.Unlock()
		cb.emitRejected(ctx)
		return zero, NewError(KindBreakerOpen, ErrCircuitOpen, cb.name)
	}
	cb.mu.Unlock()

	result, err := handler.Handle(ctx, cmd)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if state == BreakerHalfOpen {
		cb.probing = false
	}

	// A generation mismatch means a concurrent Reset or a later probe has
	// already moved the breaker on; this call's outcome no longer applies.
	if cb.generation != generation {
		return result, err
	}

	// Cancellation is neither a success nor a failure: it reflects the
	// caller giving up, not the guarded handler misbehaving.
	if IsCanceled(err) {
		return result, err
	}

	if err != nil {
		cb.onFailure(ctx)
		// Preserve an already-classified error's Kind (e.g. validation,
		// rate limiting) so an outer RetryPolicy's WithRetryable predicate
		// can still branch on it; only bare errors get wrapped as
		// KindExecutionFailed here.
		if dispatchErr, ok := err.(*DispatchError); ok {
			return result, dispatchErr.WithPath(cb.name)
		}
		return result, NewError(KindExecutionFailed, err, cb.name)
	}
	cb.onSuccess(ctx)
	return result, nil
}

func (cb *CircuitBreaker[C, R]) emitRejected(ctx context.Context) {
	capitan.Error(ctx, SignalBreakerRejected,
		FieldName.Field(cb.name),
		FieldState.Field(string(cb.State())),
	)
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker[C, R]) onSuccess(ctx context.Context) {
	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
			capitan.Info(ctx, SignalBreakerClosed,
				FieldName.Field(cb.name),
				FieldState.Field(string(cb.state)),
				FieldSuccesses.Field(cb.successes),
				FieldSuccessThreshold.Field(cb.successThreshold),
			)
		}
	}
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker[C, R]) onFailure(ctx context.Context) {
	cb.lastFailTime = cb.clock.Now()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = BreakerOpen
			capitan.Error(ctx, SignalBreakerOpened,
				FieldName.Field(cb.name),
				FieldState.Field(string(cb.state)),
				FieldFailures.Field(cb.failures),
				FieldFailureThreshold.Field(cb.failureThreshold),
			)
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.failures = 0
		cb.successes = 0
		capitan.Error(ctx, SignalBreakerOpened,
			FieldName.Field(cb.name),
			FieldState.Field(string(cb.state)),
			FieldFailures.Field(cb.failures),
			FieldFailureThreshold.Field(cb.failureThreshold),
		)
	}
}

// State returns the current state without the side-effecting half-open
// transition that Handle performs; a caller racing a pending transition may
// observe Open for a moment after resetTimeout elapses.
func (cb *CircuitBreaker[C, R]) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed, discarding counters and bumping
// the generation so any in-flight probe's outcome is ignored.
func (cb *CircuitBreaker[C, R]) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.failures = 0
	cb.successes = 0
	cb.probing = false
	cb.generation++
}

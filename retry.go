package pipelinekit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Recognized metricz keys for a RetryPolicy's internal counters.
const (
	RetryAttemptsTotal  = metricz.Key("retry.attempts.total")
	RetrySuccessesTotal = metricz.Key("retry.successes.total")
	RetryExhaustedTotal = metricz.Key("retry.exhausted.total")
	RetryDelayTotalMs   = metricz.Key("retry.delay.total.ms")
	RetryAttemptCurrent = metricz.Key("retry.attempt.current")
)

// Recognized hookz event keys for a RetryPolicy.
const (
	RetryEventAttempt   = hookz.Key("retry.attempt")
	RetryEventSuccess   = hookz.Key("retry.success")
	RetryEventExhausted = hookz.Key("retry.exhausted")
)

// RetryEvent is emitted over hookz whenever an attempt completes, the policy
// ultimately succeeds, or every attempt is exhausted.
type RetryEvent struct {
	Name          string
	Attempt       int
	MaxAttempts   int
	Success       bool
	Err           error
	Timestamp     time.Time
}

// DelayStrategy computes the wait before the next attempt, given the
// zero-based attempt number that just failed and the policy's base delay.
type DelayStrategy func(attempt int, base, maxDelay time.Duration) time.Duration

// ConstantDelay always waits base, regardless of attempt number.
func ConstantDelay(_ int, base, _ time.Duration) time.Duration {
	return base
}

// ExponentialDelay doubles the delay each attempt, capped at maxDelay
// (maxDelay <= 0 means uncapped).
func ExponentialDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	d := base
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if maxDelay > 0 && d > maxDelay {
			return maxDelay
		}
	}
	return d
}

// DecorrelatedJitterDelay implements the AWS "decorrelated jitter" backoff:
// the next delay is a random value between base and 3x the previous delay,
// capped at maxDelay. prev is the delay actually used for the previous
// attempt (base if this is the first retry).
func DecorrelatedJitterDelay(prev, base, maxDelay time.Duration) time.Duration {
	if prev <= 0 {
		prev = base
	}
	upper := prev * 3
	if maxDelay > 0 && upper > maxDelay {
		upper = maxDelay
	}
	if upper <= base {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(upper-base))) //nolint:gosec
}

// RetryPolicy wraps a Handler with bounded retry-with-delay semantics.
// Constant and Exponential strategies are stateless across attempts;
// decorrelated jitter additionally needs the previous attempt's delay, so
// RetryPolicy drives that strategy itself rather than through DelayStrategy.
type RetryPolicy[C Command, R any] struct {
	mu          sync.RWMutex
	handler     Handler[C, R]
	maxAttempts int
	baseDelay   time.Duration
	capDelay    time.Duration
	strategy    DelayStrategy
	jitter      bool
	clock       clockz.Clock
	tracer      *tracez.Tracer
	metrics     *metricz.Registry
	hooks       *hookz.Hooks[RetryEvent]
	name        string
	retryable   func(error) bool
}

// Metrics returns the policy's internal counter/gauge registry.
func (p *RetryPolicy[C, R]) Metrics() *metricz.Registry { return p.metrics }

// OnAttempt registers an asynchronous handler invoked after each attempt.
func (p *RetryPolicy[C, R]) OnAttempt(handler func(context.Context, RetryEvent) error) error {
	_, err := p.hooks.Hook(RetryEventAttempt, handler)
	return err
}

// OnSuccess registers an asynchronous handler invoked when the policy succeeds.
func (p *RetryPolicy[C, R]) OnSuccess(handler func(context.Context, RetryEvent) error) error {
	_, err := p.hooks.Hook(RetryEventSuccess, handler)
	return err
}

// OnExhausted registers an asynchronous handler invoked when every attempt fails.
func (p *RetryPolicy[C, R]) OnExhausted(handler func(context.Context, RetryEvent) error) error {
	_, err := p.hooks.Hook(RetryEventExhausted, handler)
	return err
}

// Close releases the policy's tracer and hook resources.
func (p *RetryPolicy[C, R]) Close() error {
	p.tracer.Close()
	p.hooks.Close()
	return nil
}

// RetryOption configures a RetryPolicy at construction.
type RetryOption[C Command, R any] func(*RetryPolicy[C, R])

// WithRetryCap sets the maxDelay passed to the delay strategy and to
// decorrelated jitter; ConstantDelay ignores it.
func WithRetryCap[C Command, R any](maxDelay time.Duration) RetryOption[C, R] {
	return func(p *RetryPolicy[C, R]) { p.capDelay = maxDelay }
}

// WithDecorrelatedJitter switches the policy to decorrelated-jitter delay,
// ignoring any DelayStrategy passed to NewRetryPolicy.
func WithDecorrelatedJitter[C Command, R any]() RetryOption[C, R] {
	return func(p *RetryPolicy[C, R]) { p.jitter = true }
}

// WithRetryClock overrides the clock driving the inter-attempt wait.
func WithRetryClock[C Command, R any](clock clockz.Clock) RetryOption[C, R] {
	return func(p *RetryPolicy[C, R]) { p.clock = clock }
}

// WithRetryable restricts retry to errors matching predicate; by default
// every non-nil error is retried.
func WithRetryable[C Command, R any](predicate func(error) bool) RetryOption[C, R] {
	return func(p *RetryPolicy[C, R]) { p.retryable = predicate }
}

// NewRetryPolicy wraps handler with up to maxAttempts total tries, waiting
// between attempts per strategy (ConstantDelay if nil).
func NewRetryPolicy[C Command, R any](name string, handler Handler[C, R], maxAttempts int, baseDelay time.Duration, strategy DelayStrategy, opts ...RetryOption[C, R]) *RetryPolicy[C, R] {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if strategy == nil {
		strategy = ConstantDelay
	}
	metrics := metricz.New()
	metrics.Counter(RetryAttemptsTotal)
	metrics.Counter(RetrySuccessesTotal)
	metrics.Counter(RetryExhaustedTotal)
	metrics.Counter(RetryDelayTotalMs)
	metrics.Gauge(RetryAttemptCurrent)
	p := &RetryPolicy[C, R]{
		handler:     handler,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		strategy:    strategy,
		clock:       clockz.RealClock,
		tracer:      tracez.New(),
		metrics:     metrics,
		hooks:       hookz.New[RetryEvent](),
		name:        name,
		retryable:   func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle implements Handler, retrying per the configured policy. The last
// attempt's error, wrapped with KindRetriesExhausted, is returned once every
// attempt fails or the retryable predicate rejects an error; cancellation during an inter-attempt wait returns
// immediately with a canceled error instead of waiting out the remaining
// attempts.
func (p *RetryPolicy[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	p.mu.RLock()
	handler := p.handler
	maxAttempts := p.maxAttempts
	baseDelay := p.baseDelay
	capDelay := p.capDelay
	strategy := p.strategy
	jitter := p.jitter
	clock := p.clock
	retryable := p.retryable
	p.mu.RUnlock()

	spanCtx, span := p.tracer.StartSpan(ctx, tracez.Key("retry.handle"))
	defer span.Finish()

	var zero R
	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		p.metrics.Gauge(RetryAttemptCurrent).Set(float64(attempt + 1))
		p.metrics.Counter(RetryAttemptsTotal).Inc()
		if attempt > 0 {
			capitan.Info(ctx, SignalRetryAttemptStart,
				FieldName.Field(p.name),
				FieldAttempt.Field(attempt+1),
				FieldMaxAttempts.Field(maxAttempts),
			)
		}

		result, err := handler.Handle(spanCtx, cmd)
		if p.hooks.ListenerCount(RetryEventAttempt) > 0 {
			_ = p.hooks.Emit(ctx, RetryEventAttempt, RetryEvent{ //nolint:errcheck
				Name: p.name, Attempt: attempt + 1, MaxAttempts: maxAttempts,
				Success: err == nil, Err: err, Timestamp: time.Now(),
			})
		}
		if err == nil {
			p.metrics.Counter(RetrySuccessesTotal).Inc()
			p.metrics.Gauge(RetryAttemptCurrent).Set(0)
			if attempt > 0 {
				capitan.Info(ctx, SignalRetrySucceeded,
					FieldName.Field(p.name),
					FieldAttempt.Field(attempt+1),
				)
			}
			if p.hooks.ListenerCount(RetryEventSuccess) > 0 {
				_ = p.hooks.Emit(ctx, RetryEventSuccess, RetryEvent{ //nolint:errcheck
					Name: p.name, Attempt: attempt + 1, MaxAttempts: maxAttempts,
					Success: true, Timestamp: time.Now(),
				})
			}
			return result, nil
		}

		lastErr = err
		if IsCanceled(err) {
			// Cancellation is never retried, regardless of policy, and is
			// surfaced as-is rather than wrapped in retriesExhausted.
			return zero, err
		}
		if !retryable(err) || attempt == maxAttempts-1 {
			break
		}

		capitan.Warn(ctx, SignalRetryAttemptFail,
			FieldName.Field(p.name),
			FieldAttempt.Field(attempt+1),
			FieldError.Field(err.Error()),
		)

		if jitter {
			delay = DecorrelatedJitterDelay(delay, baseDelay, capDelay)
		} else {
			delay = strategy(attempt, baseDelay, capDelay)
		}

		p.metrics.Counter(RetryDelayTotalMs).Add(float64(delay.Milliseconds()))

		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return zero, CanceledError(ctx.Err(), p.name)
		}
	}

	p.metrics.Counter(RetryExhaustedTotal).Inc()
	p.metrics.Gauge(RetryAttemptCurrent).Set(0)
	capitan.Error(ctx, SignalRetryExhausted,
		FieldName.Field(p.name),
		FieldMaxAttempts.Field(maxAttempts),
		FieldError.Field(lastErr.Error()),
	)
	if p.hooks.ListenerCount(RetryEventExhausted) > 0 {
		_ = p.hooks.Emit(ctx, RetryEventExhausted, RetryEvent{ //nolint:errcheck
			Name: p.name, Attempt: maxAttempts, MaxAttempts: maxAttempts,
			Success: false, Err: lastErr, Timestamp: time.Now(),
		})
	}
	return zero, NewError(KindRetriesExhausted, lastErr, p.name)
}

package pipelinekit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"golang.org/x/sync/semaphore"
)

// BackpressureStrategy selects how Acquire behaves once a Semaphore is
// saturated: maxConcurrency slots are taken and, for Error, active plus
// waiting callers are at maxOutstanding.
type BackpressureStrategy int

// Recognized backpressure strategies.
const (
	// StrategySuspend blocks the caller until a slot frees or ctx is done.
	// It never rejects and does not consult maxOutstanding, so the wait
	// queue is unbounded.
	StrategySuspend BackpressureStrategy = iota
	// StrategyError rejects immediately with ErrQueueFull once active plus
	// queued waiters would exceed maxOutstanding (an unset maxOutstanding
	// counts as maxConcurrency, so no caller waits), or once errorTimeout
	// elapses for a caller already waiting.
	StrategyError
	// StrategyDrop rejects every caller immediately whenever no slot is
	// free; it never queues.
	StrategyDrop
)

// SemaphoreStats is a point-in-time snapshot of a Semaphore's counters.
type SemaphoreStats struct {
	Active        int
	Waiting       int
	TotalAcquired int64
	TotalTimedOut int64
	TotalRejected int64
	TotalDropped  int64
}

// Permit is the token returned by a successful Acquire. Release is
// idempotent: calling it more than once, or not at all, is safe, though a
// leaked Permit holds its slot until the process exits.
type Permit struct {
	released atomic.Bool
	sem      *Semaphore
}

// Release returns the slot to the semaphore. Safe to call from any
// goroutine, any number of times.
func (p *Permit) Release() {
	if p.released.CompareAndSwap(false, true) {
		p.sem.release()
	}
}

// Semaphore bounds concurrent command execution and, depending on strategy,
// either queues, rejects, or drops callers beyond that bound. The admitted
// FIFO ordering and cancellation-safe queueing are delegated to
// golang.org/x/sync/semaphore.Weighted; Semaphore layers maxOutstanding,
// per-strategy rejection, and diagnostics on top.
type Semaphore struct {
	gate           *semaphore.Weighted
	maxConcurrency int
	maxOutstanding int
	strategy       BackpressureStrategy
	name           string

	active        int64
	waiting       int64
	totalAcquired int64
	totalTimedOut int64
	totalRejected int64
	totalDropped  int64
}

// SemaphoreOption configures a Semaphore at construction.
type SemaphoreOption func(*Semaphore)

// WithMaxOutstanding bounds active plus waiting callers under StrategyError.
// StrategySuspend and StrategyDrop do not consult it.
func WithMaxOutstanding(n int) SemaphoreOption {
	return func(s *Semaphore) { s.maxOutstanding = n }
}

// WithBackpressureStrategy selects the behavior for callers beyond capacity.
func WithBackpressureStrategy(strategy BackpressureStrategy) SemaphoreOption {
	return func(s *Semaphore) { s.strategy = strategy }
}

// WithSemaphoreName sets the diagnostic name attached to emitted signals.
func WithSemaphoreName(name string) SemaphoreOption {
	return func(s *Semaphore) { s.name = name }
}

// NewSemaphore creates a Semaphore permitting maxConcurrency concurrent
// holders. With no options it suspends excess callers indefinitely and never
// bounds the wait queue.
func NewSemaphore(maxConcurrency int, opts ...SemaphoreOption) *Semaphore {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	s := &Semaphore{
		gate:           semaphore.NewWeighted(int64(maxConcurrency)),
		maxConcurrency: maxConcurrency,
		strategy:       StrategySuspend,
		name:           "semaphore",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire blocks (or rejects, or drops, per strategy) until a slot is
// available, ctx is done, or the Error strategy's timeout elapses. A
// non-nil Permit is returned iff err is nil.
func (s *Semaphore) Acquire(ctx context.Context, errorTimeout time.Duration) (*Permit, error) {
	switch s.strategy {
	case StrategyDrop:
		if !s.gate.TryAcquire(1) {
			atomic.AddInt64(&s.totalDropped, 1)
			s.emit(ctx, SignalSemaphoreDropped)
			return nil, NewError(KindQueueFull, ErrDropped, s.name)
		}
		atomic.AddInt64(&s.active, 1)
		atomic.AddInt64(&s.totalAcquired, 1)
		s.emit(ctx, SignalSemaphoreAcquired)
		return &Permit{sem: s}, nil

	case StrategyError:
		// An unset (<= 0) outstanding bound leaves no room to wait.
		limit := int64(s.maxOutstanding)
		if limit <= 0 {
			limit = int64(s.maxConcurrency)
		}
		if atomic.LoadInt64(&s.active)+atomic.LoadInt64(&s.waiting) >= limit {
			atomic.AddInt64(&s.totalRejected, 1)
			s.emit(ctx, SignalSemaphoreRejected)
			return nil, NewError(KindQueueFull, ErrQueueFull, s.name)
		}

		waitCtx := ctx
		var cancel func()
		if errorTimeout > 0 {
			var c context.CancelFunc
			waitCtx, c = context.WithTimeout(waitCtx, errorTimeout)
			cancel = c
		}

		atomic.AddInt64(&s.waiting, 1)
		err := s.gate.Acquire(waitCtx, 1)
		atomic.AddInt64(&s.waiting, -1)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, CanceledError(ctx.Err(), s.name)
			}
			atomic.AddInt64(&s.totalTimedOut, 1)
			s.emit(ctx, SignalSemaphoreTimedOut)
			return nil, NewError(KindQueueFull, ErrQueueFull, s.name)
		}

		atomic.AddInt64(&s.active, 1)
		atomic.AddInt64(&s.totalAcquired, 1)
		s.emit(ctx, SignalSemaphoreAcquired)
		return &Permit{sem: s}, nil

	default: // StrategySuspend
		atomic.AddInt64(&s.waiting, 1)
		err := s.gate.Acquire(ctx, 1)
		atomic.AddInt64(&s.waiting, -1)
		if err != nil {
			return nil, CanceledError(ctx.Err(), s.name)
		}
		atomic.AddInt64(&s.active, 1)
		atomic.AddInt64(&s.totalAcquired, 1)
		s.emit(ctx, SignalSemaphoreAcquired)
		return &Permit{sem: s}, nil
	}
}

// release returns one slot to the gate.
func (s *Semaphore) release() {
	atomic.AddInt64(&s.active, -1)
	s.gate.Release(1)
}

// Stats returns a point-in-time snapshot of the semaphore's counters.
func (s *Semaphore) Stats() SemaphoreStats {
	return SemaphoreStats{
		Active:        int(atomic.LoadInt64(&s.active)),
		Waiting:       int(atomic.LoadInt64(&s.waiting)),
		TotalAcquired: atomic.LoadInt64(&s.totalAcquired),
		TotalTimedOut: atomic.LoadInt64(&s.totalTimedOut),
		TotalRejected: atomic.LoadInt64(&s.totalRejected),
		TotalDropped:  atomic.LoadInt64(&s.totalDropped),
	}
}

// SemaphoreGate wraps a Handler so every call acquires a permit before
// invoking it and releases the permit on every exit path, including a
// panic-free early return. A single permit covers the entire call,
// including every attempt a wrapped RetryPolicy makes, matching the bus
// dispatch order of "acquire once, release on all exit paths."
type SemaphoreGate[C Command, R any] struct {
	sem          *Semaphore
	handler      Handler[C, R]
	errorTimeout time.Duration
}

// NewSemaphoreGate wraps handler with sem, using errorTimeout for the Error
// strategy's bounded wait (ignored by the other strategies).
func NewSemaphoreGate[C Command, R any](sem *Semaphore, handler Handler[C, R], errorTimeout time.Duration) *SemaphoreGate[C, R] {
	return &SemaphoreGate[C, R]{sem: sem, handler: handler, errorTimeout: errorTimeout}
}

// Handle implements Handler.
func (g *SemaphoreGate[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	var zero R
	permit, err := g.sem.Acquire(ctx, g.errorTimeout)
	if err != nil {
		return zero, err
	}
	defer permit.Release()
	return g.handler.Handle(ctx, cmd)
}

func (s *Semaphore) emit(ctx context.Context, signal capitan.Signal) {
	capitan.Info(ctx, signal,
		FieldName.Field(s.name),
		FieldActive.Field(int(atomic.LoadInt64(&s.active))),
		FieldOutstanding.Field(int(atomic.LoadInt64(&s.waiting))),
		FieldCapacity.Field(s.maxConcurrency),
	)
}

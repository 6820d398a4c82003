package pipelinekit

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// anyPipeline is the type-erased shape every registered Pipeline satisfies,
// so the Bus can hold pipelines of differing command/result types behind one
// registry without reflection-based invocation at call time.
type anyPipeline interface {
	ExecuteAny(ctx *Context, cmd any) (any, error)
	Name() string
}

// GlobalMiddleware wraps every command dispatched through a Bus, regardless
// of its type, unlike a Pipeline's typed Middleware which is bound to one
// command/result pair. next invokes the remainder of the global chain and
// ultimately the type-specific pipeline.
type GlobalMiddleware interface {
	Priority() int
	Execute(ctx *Context, cmd any, next GlobalNext) (any, error)
}

// GlobalNext invokes the remainder of the global middleware chain.
type GlobalNext func(ctx *Context, cmd any) (any, error)

// GlobalMiddlewareFunc adapts a plain function into a GlobalMiddleware.
type GlobalMiddlewareFunc struct {
	Label string
	Prio  int
	Fn    func(ctx *Context, cmd any, next GlobalNext) (any, error)
}

// Priority implements GlobalMiddleware.
func (f GlobalMiddlewareFunc) Priority() int { return f.Prio }

// Execute implements GlobalMiddleware.
func (f GlobalMiddlewareFunc) Execute(ctx *Context, cmd any, next GlobalNext) (any, error) {
	return f.Fn(ctx, cmd, next)
}

// Name implements Name.
func (f GlobalMiddlewareFunc) Name() string { return f.Label }

// Bus is a type-indexed registry of pipelines. Exactly one pipeline may be
// registered per concrete command type; dispatch for that type always
// invokes the same pipeline, so middleware, retry, and breaker state
// accumulate across calls rather than resetting.
type Bus struct {
	mu        sync.RWMutex
	pipelines map[reflect.Type]anyPipeline
	global    []globalEntry
	seq       int
	observers *ObserverRegistry
}

type globalEntry struct {
	mw  GlobalMiddleware
	seq int
}

// BusOption configures a Bus at construction time.
type BusOption func(*Bus)

// WithObserverCapacity overrides the default bound on in-flight observer
// notifications (see NewObserverRegistry).
func WithObserverCapacity(n int) BusOption {
	return func(b *Bus) { b.observers = NewObserverRegistry(n) }
}

// NewBus creates an empty registry.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		pipelines: make(map[reflect.Type]anyPipeline),
		observers: NewObserverRegistry(32),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Observers returns the bus-wide observer registry attached to every
// execution Context created by NewDispatchContext.
func (b *Bus) Observers() *ObserverRegistry { return b.observers }

// Use attaches a GlobalMiddleware, ordered with the others by ascending
// priority (ties broken by registration order), and applied to every
// command type dispatched through the bus.
func (b *Bus) Use(mw GlobalMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, globalEntry{mw: mw, seq: b.seq})
	b.seq++
}

// Register binds a Pipeline built around handler to command type C. It is an
// error to register a second pipeline for a type already registered.
func Register[C Command, R any](b *Bus, name string, handler Handler[C, R], middlewares ...Middleware[C, R]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero C
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf(&zero).Elem()
	}
	if _, exists := b.pipelines[t]; exists {
		return NewError(KindAlreadyRegistered, ErrAlreadyRegistered, name)
	}

	p := NewPipeline[C, R](name, handler, middlewares...)
	b.pipelines[t] = p

	capitan.Info(context.Background(), SignalBusRegistered,
		FieldName.Field(name),
		FieldCommandType.Field(t.String()),
	)
	return nil
}

// ResilienceOptions bundles the optional back-pressure, retry, and
// circuit-breaker layers RegisterResilient wraps around a handler, in the
// order the bus dispatch applies them: a permit is acquired once and held
// across every retry attempt; the breaker is consulted on each attempt.
// Breaker, if set, must already be constructed around the same handler
// passed to RegisterResilient (NewCircuitBreaker takes the handler it
// guards at construction time, since it must be created once and reused).
type ResilienceOptions[C Command, R any] struct {
	Semaphore        *Semaphore
	SemaphoreTimeout time.Duration
	Breaker          *CircuitBreaker[C, R]
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryStrategy    DelayStrategy
	RetryOpts        []RetryOption[C, R]
}

// RegisterResilient registers handler wrapped with whichever of
// ResilienceOptions' layers are configured, composed as
// semaphore(retry(breaker-or-handler)). Omitted layers (nil
// Semaphore/Breaker, zero RetryMaxAttempts) are skipped entirely rather
// than installed as pass-through no-ops.
func RegisterResilient[C Command, R any](b *Bus, name string, handler Handler[C, R], opts ResilienceOptions[C, R], middlewares ...Middleware[C, R]) error {
	effective := handler
	if opts.Breaker != nil {
		effective = opts.Breaker
	}
	if opts.RetryMaxAttempts > 0 {
		effective = NewRetryPolicy[C, R](name, effective, opts.RetryMaxAttempts, opts.RetryBaseDelay, opts.RetryStrategy, opts.RetryOpts...)
	}
	if opts.Semaphore != nil {
		effective = NewSemaphoreGate[C, R](opts.Semaphore, effective, opts.SemaphoreTimeout)
	}
	return Register[C, R](b, name, effective, middlewares...)
}

// lookup finds the pipeline registered for cmd's concrete type.
func (b *Bus) lookup(cmd any) (anyPipeline, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.pipelines[reflect.TypeOf(cmd)]
	return p, ok
}

// dispatchAny folds the global middleware chain around the type-erased
// pipeline invocation, then runs it.
func (b *Bus) dispatchAny(ctx *Context, cmd any) (any, error) {
	b.mu.RLock()
	entries := make([]globalEntry, len(b.global))
	copy(entries, b.global)
	b.mu.RUnlock()

	sortGlobalEntries(entries)

	terminal := func(ctx *Context, cmd any) (any, error) {
		p, ok := b.lookup(cmd)
		if !ok {
			capitan.Warn(ctx, SignalBusRejected,
				FieldCommandType.Field(reflect.TypeOf(cmd).String()),
			)
			return nil, NewError(KindHandlerNotFound, ErrHandlerNotFound, reflect.TypeOf(cmd).String())
		}
		result, err := p.ExecuteAny(ctx, cmd)
		if err == nil {
			capitan.Info(ctx, SignalBusDispatched,
				FieldName.Field(p.Name()),
				FieldCommandType.Field(reflect.TypeOf(cmd).String()),
			)
		}
		return result, err
	}

	chain := terminal
	for i := len(entries) - 1; i >= 0; i-- {
		mw := entries[i].mw
		tail := chain
		chain = func(ctx *Context, cmd any) (any, error) {
			return mw.Execute(ctx, cmd, tail)
		}
	}
	return chain(ctx, cmd)
}

func sortGlobalEntries(entries []globalEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].mw.Priority() < entries[j-1].mw.Priority(); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Dispatch sends cmd through the registered global middleware and the
// pipeline bound to cmd's type, returning ErrHandlerNotFound if none is
// registered. The result is returned as any; callers that know C/R should
// use the Send free function instead for a type-safe result.
func (b *Bus) Dispatch(ctx *Context, cmd any) (any, error) {
	return b.dispatchAny(ctx, cmd)
}

// Send dispatches cmd (of type C) through the bus and type-asserts the
// result back to R, the pairing established at Register time.
func Send[C Command, R any](b *Bus, ctx *Context, cmd C) (R, error) {
	var zero R
	result, err := b.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(R)
	if !ok {
		return zero, NewError(KindExecutionFailed, ErrCommandTypeMismatch, "bus")
	}
	return typed, nil
}

// NewDispatchContext is a convenience wrapper around NewContext that also
// attaches the bus's shared observer registry.
func (b *Bus) NewDispatchContext(parent context.Context, metadata Metadata) *Context {
	ctx := NewContext(parent, metadata)
	ctx.SetObservers(b.observers)
	return ctx
}

// Pipelines returns the diagnostic names of every registered pipeline, for
// Inspector snapshots. Order is unspecified.
func (b *Bus) Pipelines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.pipelines))
	for _, p := range b.pipelines {
		names = append(names, p.Name())
	}
	return names
}

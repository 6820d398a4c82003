package pipelinekit

import (
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/tracez"
)

// Pipeline binds a Handler to its ordered middleware chain. A Pipeline
// instance may be invoked concurrently by many callers; the composed chain
// is immutable between calls to AddMiddleware.
type Pipeline[C Command, R any] struct {
	mu      sync.RWMutex
	handler Handler[C, R]
	entries []entry[C, R]
	chain   chainFunc[C, R]
	seq     int
	tracer  *tracez.Tracer
	name    string
}

// NewPipeline creates a Pipeline bound to handler, with optional middleware
// already attached in the order given (further middleware may be added
// later with AddMiddleware regardless of priority).
func NewPipeline[C Command, R any](name string, handler Handler[C, R], middlewares ...Middleware[C, R]) *Pipeline[C, R] {
	p := &Pipeline[C, R]{handler: handler, tracer: tracez.New(), name: name}
	for _, mw := range middlewares {
		p.addLocked(mw)
	}
	p.rebuildLocked()
	return p
}

func (p *Pipeline[C, R]) addLocked(mw Middleware[C, R]) {
	p.entries = append(p.entries, entry[C, R]{mw: mw, seq: p.seq})
	p.seq++
}

func (p *Pipeline[C, R]) rebuildLocked() {
	handler := p.handler
	tracer := p.tracer
	p.chain = buildChain(p.entries, func(ctx *Context, cmd C) (R, error) {
		handlerCtx, span := tracer.StartSpan(ctx.Context, tracez.Key("pipeline.handler"))
		defer span.Finish()

		observers := ctx.Observers()
		observers.Emit(ctx, Event{Kind: EventHandlerStart, Name: p.name, Timestamp: time.Now()})

		result, err := handler.Handle(handlerCtx, cmd)

		if err != nil {
			observers.Emit(ctx, Event{Kind: EventHandlerFail, Name: p.name, Err: err, Timestamp: time.Now()})
		} else {
			observers.Emit(ctx, Event{Kind: EventHandlerFinish, Name: p.name, Timestamp: time.Now()})
		}
		return result, err
	})
}

// AddMiddleware inserts mw, preserving the stable-priority invariant, and
// rebuilds the composed chain. Safe for concurrent use, including while
// Execute is in flight on other goroutines (those calls finish against the
// chain snapshot they started with).
func (p *Pipeline[C, R]) AddMiddleware(mw Middleware[C, R]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(mw)
	p.rebuildLocked()
}

// Execute runs cmd through the middleware chain and the handler. If ctx is
// already canceled, Execute fails immediately with a *DispatchError of kind
// Canceled without invoking any middleware or the handler.
func (p *Pipeline[C, R]) Execute(ctx *Context, cmd C) (result R, err error) {
	defer recoverPanic(&result, &err, p.name)

	var zero R
	if err := ctx.Err(); err != nil {
		return zero, CanceledError(err, p.name)
	}

	p.mu.RLock()
	chain := p.chain
	p.mu.RUnlock()

	observers := ctx.Observers()
	observers.Emit(ctx, Event{Kind: EventPipelineStart, Name: p.name, Timestamp: time.Now()})

	rootCtx, span := p.tracer.StartSpan(ctx.Context, tracez.Key("pipeline.execute"))
	span.SetTag(tracez.Tag("pipeline.name"), p.name)
	ctx = &Context{Context: rootCtx, metadata: ctx.metadata, s: ctx.s}
	defer span.Finish()

	result, err = chain(ctx, cmd)

	if err != nil {
		span.SetTag(tracez.Tag("pipeline.success"), "false")
		observers.Emit(ctx, Event{Kind: EventPipelineFail, Name: p.name, Err: err, Timestamp: time.Now()})
		capitan.Error(ctx, SignalPipelineFailed,
			FieldName.Field(p.name),
			FieldError.Field(err.Error()),
			FieldTimestamp.Field(float64(time.Now().Unix())),
		)
		return result, err
	}

	span.SetTag(tracez.Tag("pipeline.success"), "true")
	observers.Emit(ctx, Event{Kind: EventPipelineFinish, Name: p.name, Timestamp: time.Now()})
	return result, nil
}

// ExecuteAny is the type-erased entry point the Bus dispatches through. It
// exists so a Bus can hold pipelines of differing C/R behind one registry
// without reflection-based invocation at call time: the assertions below
// run once per call, not once per middleware.
func (p *Pipeline[C, R]) ExecuteAny(ctx *Context, cmd any) (any, error) {
	typed, ok := cmd.(C)
	if !ok {
		return nil, NewError(KindExecutionFailed, ErrCommandTypeMismatch, p.name)
	}
	return p.Execute(ctx, typed)
}

// Name returns the pipeline's diagnostic name.
func (p *Pipeline[C, R]) Name() string { return p.name }

// MiddlewareNames returns the ordered (post stable-sort) names of attached
// middleware, for Inspector snapshots.
func (p *Pipeline[C, R]) MiddlewareNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sorted := sortEntries(p.entries)
	names := make([]string, len(sorted))
	for i, e := range sorted {
		names[i] = nameOf(e.mw)
	}
	return names
}

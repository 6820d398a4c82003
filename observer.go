package pipelinekit

import (
	"context"
	"sync"
	"time"
)

// EventKind identifies which lifecycle moment an Observer callback fired for.
type EventKind string

// Recognized event kinds.
const (
	EventPipelineStart    EventKind = "pipeline.start"
	EventPipelineFinish   EventKind = "pipeline.finish"
	EventPipelineFail     EventKind = "pipeline.fail"
	EventMiddlewareStart  EventKind = "middleware.start"
	EventMiddlewareFinish EventKind = "middleware.finish"
	EventMiddlewareFail   EventKind = "middleware.fail"
	EventHandlerStart     EventKind = "handler.start"
	EventHandlerFinish    EventKind = "handler.finish"
	EventHandlerFail      EventKind = "handler.fail"
	EventCustom           EventKind = "custom"
)

// Event is the payload delivered to every Observer callback.
type Event struct {
	Kind      EventKind
	Name      string // middleware/handler name, empty for pipeline-level events
	Err       error
	Timestamp time.Time
	Name2     string // custom event name, only set when Kind == EventCustom
}

// Observer receives fire-and-forget lifecycle notifications for a single
// execution. Implementations must return quickly; ObserverRegistry bounds
// how long a slow observer can hold up dispatch.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// ObserverRegistry is a fan-out of Observers, shared by pointer; it holds a
// mutex and is not copied after first use. A slow observer is offloaded to a
// bounded worker pool rather than blocking the pipeline; once the pool is
// saturated, further events are dropped for every observer rather than
// queued without bound.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers []Observer
	sem       chan struct{}
}

// NewObserverRegistry creates a registry whose asynchronous fan-out never
// runs more than maxInFlight observer callbacks concurrently.
func NewObserverRegistry(maxInFlight int) *ObserverRegistry {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	return &ObserverRegistry{sem: make(chan struct{}, maxInFlight)}
}

// Add registers an observer. Safe for concurrent use.
func (r *ObserverRegistry) Add(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Emit delivers ev to every registered observer. Callbacks for a single
// execution are delivered in emission order: when ctx is a *Context, the
// dispatch for this call waits for the previously chained dispatch on the
// same execution to finish before running, so "pipeline start" can never be
// observed after "pipeline finish" for the same call. Ordering across
// executions (or when ctx is a plain context.Context with no execution
// identity) is unspecified. Emit never blocks the caller: the dispatch
// itself always runs on its own goroutine, and it drops every observer's
// callback for this event (not the caller) if the bounded worker pool is
// momentarily saturated.
func (r *ObserverRegistry) Emit(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	r.mu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()
	if len(observers) == 0 {
		return
	}

	dispatch := func() {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
			for _, o := range observers {
				o.Observe(ctx, ev)
			}
		default:
			// Pool saturated: drop this event for every observer rather
			// than block dispatch or deliver it to some but not others.
		}
	}

	if dctx, ok := ctx.(*Context); ok {
		dctx.chainEmit(dispatch)
		return
	}
	go dispatch()
}

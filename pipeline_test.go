package pipelinekit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func echoHandler() Handler[int, int] {
	return HandlerFunc[int, int](func(_ context.Context, cmd int) (int, error) { return cmd, nil })
}

func TestPipelineExecuteBasic(t *testing.T) {
	p := NewPipeline[int, int]("echo", echoHandler())
	ctx := NewContext(context.Background(), NewMetadata())

	result, err := p.Execute(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 7 {
		t.Errorf("expected 7, got %d", result)
	}
	if p.Name() != "echo" {
		t.Errorf("expected name echo, got %q", p.Name())
	}
}

func TestPipelineAlreadyCanceled(t *testing.T) {
	p := NewPipeline[int, int]("echo", echoHandler())
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := NewContext(cctx, NewMetadata())

	_, err := p.Execute(ctx, 1)
	if err == nil {
		t.Fatal("expected error for already-canceled context")
	}
	if KindOf(err) != KindCanceled {
		t.Errorf("expected KindCanceled, got %v", KindOf(err))
	}
}

func TestPipelineMiddlewareOrder(t *testing.T) {
	var order []string
	mk := func(name string, prio int) Middleware[int, int] {
		return MiddlewareFunc[int, int]{
			Label: name, Prio: prio,
			Fn: func(ctx *Context, cmd int, next Next[int, int]) (int, error) {
				order = append(order, name)
				return next(ctx, cmd)
			},
		}
	}
	p := NewPipeline[int, int]("ordered", echoHandler(),
		mk("late", PriorityPostProcessing),
		mk("early", PrioritySecurity),
	)

	ctx := NewContext(context.Background(), NewMetadata())
	if _, err := p.Execute(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Errorf("expected [early late], got %v", order)
	}

	names := p.MiddlewareNames()
	if len(names) != 2 || names[0] != "early" || names[1] != "late" {
		t.Errorf("expected MiddlewareNames [early late], got %v", names)
	}
}

func TestPipelineAddMiddlewareAfterConstruction(t *testing.T) {
	p := NewPipeline[int, int]("dyn", echoHandler())
	called := false
	p.AddMiddleware(MiddlewareFunc[int, int]{
		Label: "added", Prio: PriorityCustom,
		Fn: func(ctx *Context, cmd int, next Next[int, int]) (int, error) {
			called = true
			return next(ctx, cmd)
		},
	})

	ctx := NewContext(context.Background(), NewMetadata())
	if _, err := p.Execute(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected middleware added after construction to run")
	}
}

func TestPipelineRecoversPanic(t *testing.T) {
	h := HandlerFunc[int, int](func(_ context.Context, _ int) (int, error) {
		panic("boom")
	})
	p := NewPipeline[int, int]("panicky", h)
	ctx := NewContext(context.Background(), NewMetadata())

	_, err := p.Execute(ctx, 1)
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if KindOf(err) != KindExecutionFailed {
		t.Errorf("expected KindExecutionFailed, got %v", KindOf(err))
	}
}

func TestPipelineExecuteAnyTypeMismatch(t *testing.T) {
	p := NewPipeline[int, int]("typed", echoHandler())
	ctx := NewContext(context.Background(), NewMetadata())

	_, err := p.ExecuteAny(ctx, "not an int")
	if err == nil {
		t.Fatal("expected a type mismatch error")
	}
	if !errors.Is(err, ErrCommandTypeMismatch) {
		t.Errorf("expected ErrCommandTypeMismatch, got %v", err)
	}
}

func TestPipelineEmitsMiddlewareAndHandlerEvents(t *testing.T) {
	mw := MiddlewareFunc[int, int]{
		Label: "tagger", Prio: PriorityValidation,
		Fn: func(ctx *Context, cmd int, next Next[int, int]) (int, error) { return next(ctx, cmd) },
	}
	p := NewPipeline[int, int]("observed", echoHandler(), mw)

	var mu sync.Mutex
	var kinds []EventKind
	registry := NewObserverRegistry(8)
	registry.Add(ObserverFunc(func(_ context.Context, ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	}))

	ctx := NewContext(context.Background(), NewMetadata())
	ctx.SetObservers(registry)

	if _, err := p.Execute(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Emit is asynchronous; give the bounded worker pool a moment to drain.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(kinds)
		mu.Unlock()
		if n >= 6 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[EventKind]bool{
		EventPipelineStart: false, EventPipelineFinish: false,
		EventMiddlewareStart: false, EventMiddlewareFinish: false,
		EventHandlerStart: false, EventHandlerFinish: false,
	}
	for _, k := range kinds {
		want[k] = true
	}
	for kind, seen := range want {
		if !seen {
			t.Errorf("expected event kind %q to be emitted, got %v", kind, kinds)
		}
	}
}

func TestPipelineExecuteAnyDelegates(t *testing.T) {
	p := NewPipeline[int, int]("typed", echoHandler())
	ctx := NewContext(context.Background(), NewMetadata())

	result, err := p.ExecuteAny(ctx, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(int) != 9 {
		t.Errorf("expected 9, got %v", result)
	}
}

package pipelinekit

import (
	"context"
	"errors"
	"testing"
)

type greetCmd struct{ Name string }
type greetResult struct{ Message string }

func TestRegisterAndSend(t *testing.T) {
	bus := NewBus()
	h := HandlerFunc[greetCmd, greetResult](func(_ context.Context, cmd greetCmd) (greetResult, error) {
		return greetResult{Message: "hi " + cmd.Name}, nil
	})
	if err := Register[greetCmd, greetResult](bus, "greet", h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := bus.NewDispatchContext(context.Background(), NewMetadata())
	result, err := Send[greetCmd, greetResult](bus, ctx, greetCmd{Name: "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "hi ada" {
		t.Errorf("expected 'hi ada', got %q", result.Message)
	}
}

func TestRegisterDuplicateType(t *testing.T) {
	bus := NewBus()
	h := HandlerFunc[greetCmd, greetResult](func(_ context.Context, cmd greetCmd) (greetResult, error) {
		return greetResult{}, nil
	})
	if err := Register[greetCmd, greetResult](bus, "first", h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Register[greetCmd, greetResult](bus, "second", h)
	if err == nil {
		t.Fatal("expected an error registering a second pipeline for the same command type")
	}
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("expected ErrAlreadyRegistered, got %v", err)
	}
}

type unregisteredCmd struct{}

func TestDispatchHandlerNotFound(t *testing.T) {
	bus := NewBus()
	ctx := bus.NewDispatchContext(context.Background(), NewMetadata())
	_, err := bus.Dispatch(ctx, unregisteredCmd{})
	if err == nil {
		t.Fatal("expected handler-not-found error")
	}
	if KindOf(err) != KindHandlerNotFound {
		t.Errorf("expected KindHandlerNotFound, got %v", KindOf(err))
	}
}

func TestSendTypeMismatch(t *testing.T) {
	bus := NewBus()
	h := HandlerFunc[greetCmd, greetResult](func(_ context.Context, _ greetCmd) (greetResult, error) {
		return greetResult{}, nil
	})
	if err := Register[greetCmd, greetResult](bus, "greet", h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := bus.NewDispatchContext(context.Background(), NewMetadata())
	// Send expects a different result type than what's registered.
	_, err := Send[greetCmd, string](bus, ctx, greetCmd{Name: "x"})
	if err == nil {
		t.Fatal("expected a type-mismatch error")
	}
}

func TestBusGlobalMiddlewareOrdering(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Use(GlobalMiddlewareFunc{
		Label: "late", Prio: PriorityPostProcessing,
		Fn: func(ctx *Context, cmd any, next GlobalNext) (any, error) {
			order = append(order, "late")
			return next(ctx, cmd)
		},
	})
	bus.Use(GlobalMiddlewareFunc{
		Label: "early", Prio: PrioritySecurity,
		Fn: func(ctx *Context, cmd any, next GlobalNext) (any, error) {
			order = append(order, "early")
			return next(ctx, cmd)
		},
	})

	h := HandlerFunc[greetCmd, greetResult](func(_ context.Context, _ greetCmd) (greetResult, error) {
		return greetResult{}, nil
	})
	if err := Register[greetCmd, greetResult](bus, "greet", h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := bus.NewDispatchContext(context.Background(), NewMetadata())
	if _, err := bus.Dispatch(ctx, greetCmd{Name: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Errorf("expected [early late], got %v", order)
	}
}

func TestBusPipelines(t *testing.T) {
	bus := NewBus()
	h := HandlerFunc[greetCmd, greetResult](func(_ context.Context, _ greetCmd) (greetResult, error) {
		return greetResult{}, nil
	})
	if err := Register[greetCmd, greetResult](bus, "greet", h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := bus.Pipelines()
	if len(names) != 1 || names[0] != "greet" {
		t.Errorf("expected [greet], got %v", names)
	}
}

func TestNewBusWithObserverCapacity(t *testing.T) {
	bus := NewBus(WithObserverCapacity(1))
	if bus.Observers() == nil {
		t.Fatal("expected an observer registry")
	}
}

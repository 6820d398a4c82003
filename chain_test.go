package pipelinekit

import "testing"

func TestBuildChainOrdersByPriority(t *testing.T) {
	var order []string
	record := func(name string, prio int) Middleware[int, int] {
		return MiddlewareFunc[int, int]{
			Label: name, Prio: prio,
			Fn: func(ctx *Context, cmd int, next Next[int, int]) (int, error) {
				order = append(order, name+":enter")
				result, err := next(ctx, cmd)
				order = append(order, name+":exit")
				return result, err
			},
		}
	}

	entries := []entry[int, int]{
		{mw: record("last", PriorityPostProcessing), seq: 0},
		{mw: record("first", PrioritySecurity), seq: 1},
		{mw: record("middle", PriorityValidation), seq: 2},
	}

	chain := buildChain(entries, func(ctx *Context, cmd int) (int, error) { return cmd, nil })
	ctx := NewContext(nil, NewMetadata())
	if _, err := chain(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first:enter", "middle:enter", "last:enter", "last:exit", "middle:exit", "first:exit"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestBuildChainStableOnTies(t *testing.T) {
	var order []string
	record := func(name string) Middleware[int, int] {
		return MiddlewareFunc[int, int]{
			Label: name, Prio: PriorityCustom,
			Fn: func(ctx *Context, cmd int, next Next[int, int]) (int, error) {
				order = append(order, name)
				return next(ctx, cmd)
			},
		}
	}

	entries := []entry[int, int]{
		{mw: record("a"), seq: 0},
		{mw: record("b"), seq: 1},
		{mw: record("c"), seq: 2},
	}
	chain := buildChain(entries, func(ctx *Context, cmd int) (int, error) { return cmd, nil })
	ctx := NewContext(nil, NewMetadata())
	if _, err := chain(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected insertion order %v, got %v", want, order)
		}
	}
}

func TestBuildChainShortCircuit(t *testing.T) {
	handlerCalled := false
	guard := MiddlewareFunc[int, int]{
		Label: "guard", Prio: PrioritySecurity, SuppressesGuard: true,
		Fn: func(_ *Context, _ int, _ Next[int, int]) (int, error) {
			return -1, nil // never calls next
		},
	}
	entries := []entry[int, int]{{mw: guard, seq: 0}}
	chain := buildChain(entries, func(ctx *Context, cmd int) (int, error) {
		handlerCalled = true
		return cmd, nil
	})

	ctx := NewContext(nil, NewMetadata())
	result, err := chain(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != -1 {
		t.Errorf("expected short-circuited result -1, got %d", result)
	}
	if handlerCalled {
		t.Error("expected handler to never run when guard short-circuits")
	}
}

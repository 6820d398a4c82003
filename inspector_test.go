package pipelinekit

import (
	"context"
	"strings"
	"testing"
)

func TestInspectAndDiagram(t *testing.T) {
	h := HandlerFunc[int, int](func(_ context.Context, cmd int) (int, error) { return cmd, nil })
	mw := MiddlewareFunc[int, int]{
		Label: "validation", Prio: PriorityValidation,
		Fn: func(ctx *Context, cmd int, next Next[int, int]) (int, error) { return next(ctx, cmd) },
	}
	p := NewPipeline[int, int]("sample", h, mw)

	snap := Inspect(p)
	if snap.Name != "sample" {
		t.Errorf("expected name sample, got %q", snap.Name)
	}
	if len(snap.Middlewares) != 1 || snap.Middlewares[0] != "validation" {
		t.Errorf("expected [validation], got %v", snap.Middlewares)
	}

	diagram := snap.Diagram()
	if !strings.Contains(diagram, "validation") {
		t.Errorf("expected diagram to mention validation, got %q", diagram)
	}
	if !strings.HasPrefix(diagram, "[int]") {
		t.Errorf("expected diagram to start with [int], got %q", diagram)
	}
}

func TestSnapshotDiff(t *testing.T) {
	before := PipelineSnapshot{Middlewares: []string{"a", "b", "c"}}
	after := PipelineSnapshot{Middlewares: []string{"b", "c", "d"}}

	diff := Diff(before, after)
	if len(diff.Added) != 1 || diff.Added[0] != "d" {
		t.Errorf("expected added [d], got %v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "a" {
		t.Errorf("expected removed [a], got %v", diff.Removed)
	}
	if diff.Reordered {
		t.Error("expected b,c to keep their relative order")
	}
}

func TestSnapshotDiffDetectsReorder(t *testing.T) {
	before := PipelineSnapshot{Middlewares: []string{"a", "b"}}
	after := PipelineSnapshot{Middlewares: []string{"b", "a"}}

	diff := Diff(before, after)
	if !diff.Reordered {
		t.Error("expected a,b swap to be detected as reordered")
	}
}

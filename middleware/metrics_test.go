package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/metricz"

	pk "github.com/pipelinekit/pipelinekit"
)

type measuredCmd struct{}

func TestMetricsMiddlewareCountsExecutionsAndFailures(t *testing.T) {
	registry := metricz.New()
	mw := NewMetricsMiddleware[measuredCmd, int](registry)
	ctx := pk.NewContext(context.Background(), pk.NewMetadata())

	ok := pk.Next[measuredCmd, int](func(_ *pk.Context, _ measuredCmd) (int, error) { return 1, nil })
	if _, err := mw.Execute(ctx, measuredCmd{}, ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	fail := pk.Next[measuredCmd, int](func(_ *pk.Context, _ measuredCmd) (int, error) { return 0, boom })
	if _, err := mw.Execute(ctx, measuredCmd{}, fail); !errors.Is(err, boom) {
		t.Errorf("expected the underlying error to pass through, got %v", err)
	}

	if got := registry.Counter(MetricsExecutionsTotal).Value(); got != 2 {
		t.Errorf("expected 2 executions, got %v", got)
	}
	if got := registry.Counter(MetricsFailuresTotal).Value(); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestMetricsMiddlewareMetadata(t *testing.T) {
	mw := NewMetricsMiddleware[measuredCmd, int](metricz.New())
	if mw.Name() != "metrics" {
		t.Errorf("expected name metrics, got %q", mw.Name())
	}
	if mw.Priority() != pk.PriorityObservability {
		t.Errorf("expected PriorityObservability, got %d", mw.Priority())
	}
}

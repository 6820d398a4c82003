package pipelinekit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	boom := errors.New("service error")
	calls := 0
	h := HandlerFunc[int, int](func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, boom
	})
	cb := NewCircuitBreaker[int, int]("test", h, 3, 5*time.Second)

	for i := 0; i < 3; i++ {
		if _, err := cb.Handle(context.Background(), i); err == nil {
			t.Fatal("expected an error from the failing handler")
		}
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	// A fourth call should fail fast without invoking the handler.
	calls = 0
	_, err := cb.Handle(context.Background(), 99)
	if err == nil {
		t.Fatal("expected ErrCircuitOpen")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected the handler not to run while open, got %d calls", calls)
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	clock := clockz.NewFakeClock()
	failuresLeft := 3
	h := HandlerFunc[int, int](func(_ context.Context, n int) (int, error) {
		if failuresLeft > 0 {
			failuresLeft--
			return 0, errors.New("broken")
		}
		return n * 2, nil
	})
	cb := NewCircuitBreaker[int, int]("test", h, 3, 5*time.Second).WithBreakerClock(clock)

	for i := 0; i < 3; i++ {
		if _, err := cb.Handle(context.Background(), i); err == nil {
			t.Fatal("expected failures to open the breaker")
		}
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	clock.Advance(6 * time.Second)

	result, err := cb.Handle(context.Background(), 21)
	if err != nil {
		t.Fatalf("expected the half-open probe to succeed: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("expected closed after a successful probe, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenReopensOnFailure(t *testing.T) {
	clock := clockz.NewFakeClock()
	h := HandlerFunc[int, int](func(_ context.Context, _ int) (int, error) {
		return 0, errors.New("still broken")
	})
	cb := NewCircuitBreaker[int, int]("test", h, 2, time.Second).WithBreakerClock(clock)

	for i := 0; i < 2; i++ {
		_, _ = cb.Handle(context.Background(), i) //nolint:errcheck
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	clock.Advance(2 * time.Second)
	if _, err := cb.Handle(context.Background(), 1); err == nil {
		t.Fatal("expected the probe to fail again")
	}
	if cb.State() != BreakerOpen {
		t.Errorf("expected open again after a failed probe, got %s", cb.State())
	}
}

func TestCircuitBreakerCancellationNotCounted(t *testing.T) {
	h := HandlerFunc[int, int](func(ctx context.Context, _ int) (int, error) {
		return 0, ctx.Err()
	})
	cb := NewCircuitBreaker[int, int]("test", h, 1, time.Second)

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cb.Handle(cctx, 1); !IsCanceled(err) {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("expected cancellation to leave the breaker closed, got %s", cb.State())
	}
}

func TestCircuitBreakerPreservesClassifiedErrorKind(t *testing.T) {
	h := HandlerFunc[int, int](func(_ context.Context, _ int) (int, error) {
		return 0, NewValidationError("name", ReasonMissingRequired, "required")
	})
	cb := NewCircuitBreaker[int, int]("test", h, 5, time.Second)

	_, err := cb.Handle(context.Background(), 1)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if KindOf(err) != KindValidation {
		t.Errorf("expected the handler's KindValidation to survive the breaker, got %v", KindOf(err))
	}
}

func TestCircuitBreakerWrapsUnclassifiedErrorAsExecutionFailed(t *testing.T) {
	h := HandlerFunc[int, int](func(_ context.Context, _ int) (int, error) {
		return 0, errors.New("opaque failure")
	})
	cb := NewCircuitBreaker[int, int]("test", h, 5, time.Second)

	_, err := cb.Handle(context.Background(), 1)
	if err == nil {
		t.Fatal("expected an error")
	}
	if KindOf(err) != KindExecutionFailed {
		t.Errorf("expected a bare error to still be wrapped as KindExecutionFailed, got %v", KindOf(err))
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	h := HandlerFunc[int, int](func(_ context.Context, _ int) (int, error) {
		return 0, errors.New("broken")
	})
	cb := NewCircuitBreaker[int, int]("test", h, 1, time.Second)
	_, _ = cb.Handle(context.Background(), 1) //nolint:errcheck
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	cb.Reset()
	if cb.State() != BreakerClosed {
		t.Errorf("expected closed after Reset, got %s", cb.State())
	}
}

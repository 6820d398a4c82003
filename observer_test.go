package pipelinekit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestObserverRegistryEmitsToAll(t *testing.T) {
	reg := NewObserverRegistry(4)
	var count int32
	var wg sync.WaitGroup
	wg.Add(2)
	reg.Add(ObserverFunc(func(_ context.Context, _ Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	}))
	reg.Add(ObserverFunc(func(_ context.Context, _ Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	}))

	reg.Emit(context.Background(), Event{Kind: EventPipelineStart, Timestamp: time.Now()})
	wg.Wait()
	if atomic.LoadInt32(&count) != 2 {
		t.Errorf("expected both observers to fire, got %d", count)
	}
}

func TestObserverRegistryNilSafe(t *testing.T) {
	var reg *ObserverRegistry
	// Must not panic.
	reg.Emit(context.Background(), Event{Kind: EventPipelineStart})
}

func TestObserverRegistryDropsWhenSaturated(t *testing.T) {
	reg := NewObserverRegistry(1)
	release := make(chan struct{})
	started := make(chan struct{})
	reg.Add(ObserverFunc(func(_ context.Context, _ Event) {
		close(started)
		<-release
	}))

	reg.Emit(context.Background(), Event{Kind: EventPipelineStart})
	<-started // first callback is now occupying the single slot

	var secondRan int32
	reg.Add(ObserverFunc(func(_ context.Context, _ Event) {
		atomic.AddInt32(&secondRan, 1)
	}))
	// This emit fans out to both observers; the first blocks the one slot,
	// so the second observer's callback for this emission is dropped.
	reg.Emit(context.Background(), Event{Kind: EventPipelineFinish})

	time.Sleep(20 * time.Millisecond)
	close(release)

	if atomic.LoadInt32(&secondRan) != 0 {
		t.Error("expected the saturated pool to drop the second observer's callback")
	}
}

// Package testing provides test utilities for pipelinekit-based
// applications: a configurable mock Handler and assertion helpers built on
// testify, mirroring the teacher's own testing support package.
//
// Example usage:
//
//	func TestDispatch(t *testing.T) {
//	    mock := pktest.NewMockHandler[Ping, Pong](t, "ping-handler")
//	    mock.WithReturn(Pong{}, nil)
//	    bus := pk.NewBus()
//	    require.NoError(t, pk.Register[Ping, Pong](bus, "ping", mock))
//	    _, err := pk.Send[Ping, Pong](bus, ctx, Ping{})
//	    require.NoError(t, err)
//	    pktest.AssertDispatched(t, mock, 1)
//	}
package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	pk "github.com/pipelinekit/pipelinekit"
)

// MockCall records a single invocation of a MockHandler.
type MockCall[C pk.Command] struct {
	Cmd       C
	Timestamp time.Time
}

// MockHandler is a configurable pk.Handler[C,R] that records every call and
// returns a preconfigured result, error, or delay.
type MockHandler[C pk.Command, R any] struct {
	t *testing.T

	mu        sync.Mutex
	name      string
	returnVal R
	returnErr error
	delay     time.Duration
	calls     []MockCall[C]
}

// NewMockHandler creates a MockHandler named name for use in test t.
func NewMockHandler[C pk.Command, R any](t *testing.T, name string) *MockHandler[C, R] {
	return &MockHandler[C, R]{t: t, name: name}
}

// WithReturn configures the value and error every Handle call returns.
func (m *MockHandler[C, R]) WithReturn(val R, err error) *MockHandler[C, R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnVal, m.returnErr = val, err
	return m
}

// WithDelay configures an artificial delay before Handle returns, honoring
// ctx cancellation during the wait.
func (m *MockHandler[C, R]) WithDelay(d time.Duration) *MockHandler[C, R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Handle implements pk.Handler.
func (m *MockHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	m.mu.Lock()
	delay := m.delay
	val, err := m.returnVal, m.returnErr
	m.calls = append(m.calls, MockCall[C]{Cmd: cmd, Timestamp: time.Now()})
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}
	return val, err
}

// CallCount returns how many times Handle has been invoked.
func (m *MockHandler[C, R]) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of every recorded call.
func (m *MockHandler[C, R]) Calls() []MockCall[C] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall[C], len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent call, or the zero value and false if
// Handle was never invoked.
func (m *MockHandler[C, R]) LastCall() (MockCall[C], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MockCall[C]{}, false
	}
	return m.calls[len(m.calls)-1], true
}

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pk "github.com/pipelinekit/pipelinekit"
)

// AssertDispatched fails t unless mock was called exactly expectedCalls times.
func AssertDispatched[C pk.Command, R any](t *testing.T, mock *MockHandler[C, R], expectedCalls int) {
	t.Helper()
	assert.Equal(t, expectedCalls, mock.CallCount(), "unexpected call count for %q", mock.name)
}

// AssertNotDispatched fails t unless mock was never called.
func AssertNotDispatched[C pk.Command, R any](t *testing.T, mock *MockHandler[C, R]) {
	t.Helper()
	assert.Equal(t, 0, mock.CallCount(), "expected %q not to be called", mock.name)
}

// AssertRecorded fails t unless r's lifetime totals match the given counts.
func AssertRecorded(t *testing.T, r *pk.Recorder, total, success, failure int64) {
	t.Helper()
	stats := r.Stats()
	assert.Equal(t, total, stats.LifetimeTotal, "lifetime total mismatch")
	assert.Equal(t, success, stats.LifetimeSuccess, "lifetime success mismatch")
	assert.Equal(t, failure, stats.LifetimeFailure, "lifetime failure mismatch")
}

// RequireKind fails t (stopping the test) unless err is a *pk.DispatchError
// of the given Kind.
func RequireKind(t *testing.T, err error, kind pk.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, pk.KindOf(err))
}

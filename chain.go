package pipelinekit

import (
	"context"
	"sort"
	"time"

	"github.com/zoobzio/capitan"
)

// DiagnosticsEnabled gates the chain builder's "next not called" warning.
// Disable in production builds where the extra bookkeeping is unwanted.
var DiagnosticsEnabled = true

// chainFunc is the effective function a built chain exposes: it takes a
// command and context and produces a result or error, having already folded
// in every middleware and the terminal handler.
type chainFunc[C Command, R any] func(ctx *Context, cmd C) (R, error)

// entry pairs a middleware with its insertion sequence number so that the
// stable sort in buildChain preserves registration order among equal
// priorities.
type entry[C Command, R any] struct {
	mw  Middleware[C, R]
	seq int
}

// sortEntries returns entries stably sorted by ascending priority: ties
// resolve by insertion order, which sort.SliceStable already preserves from
// the slice's existing order.
func sortEntries[C Command, R any](entries []entry[C, R]) []entry[C, R] {
	sorted := make([]entry[C, R], len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].mw.Priority() < sorted[j].mw.Priority()
	})
	return sorted
}

// buildChain stable-sorts middlewares by ascending priority (ties broken by
// insertion order) and folds them around handle into a single chainFunc.
// M[0] runs first on entry and last on exit; handle runs exactly once if
// every middleware calls next.
func buildChain[C Command, R any](entries []entry[C, R], handle func(ctx *Context, cmd C) (R, error)) chainFunc[C, R] {
	sorted := sortEntries(entries)

	next := chainFunc[C, R](handle)
	for i := len(sorted) - 1; i >= 0; i-- {
		mw := sorted[i].mw
		tail := next
		name := nameOf(mw)
		next = func(ctx *Context, cmd C) (R, error) {
			called := false
			guarded := tail
			wrapped := Next[C, R](func(ctx *Context, cmd C) (R, error) {
				called = true
				return guarded(ctx, cmd)
			})

			observers := ctx.Observers()
			observers.Emit(ctx, Event{Kind: EventMiddlewareStart, Name: name, Timestamp: time.Now()})

			result, err := mw.Execute(ctx, cmd, wrapped)

			if err != nil {
				observers.Emit(ctx, Event{Kind: EventMiddlewareFail, Name: name, Err: err, Timestamp: time.Now()})
			} else {
				observers.Emit(ctx, Event{Kind: EventMiddlewareFinish, Name: name, Timestamp: time.Now()})
			}
			if DiagnosticsEnabled && !called && !suppressesGuard(mw) {
				capitan.Warn(context.Background(), SignalMiddlewareSkipped,
					FieldName.Field(nameOf(mw)),
					FieldTimestamp.Field(float64(time.Now().Unix())),
				)
			}
			return result, err
		}
	}
	return next
}

package pipelinekit

import (
	"fmt"
	"reflect"
	"strings"
)

// PipelineSnapshot is a descriptive, point-in-time view of a Pipeline's
// composition, suitable for diagnostics and for diffing against an earlier
// snapshot to detect configuration drift.
type PipelineSnapshot struct {
	Name        string
	CommandType string
	ResultType  string
	HandlerType string
	Middlewares []string
}

// Inspect produces a PipelineSnapshot for p.
func Inspect[C Command, R any](p *Pipeline[C, R]) PipelineSnapshot {
	var zeroC C
	var zeroR R
	return PipelineSnapshot{
		Name:        p.Name(),
		CommandType: typeName(zeroC),
		ResultType:  typeName(zeroR),
		HandlerType: typeName(p.handler),
		Middlewares: p.MiddlewareNames(),
	}
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "any"
	}
	return t.String()
}

// Diagram renders the snapshot as an ASCII chain diagram:
// [Command] -> M1 -> M2 -> ... -> [Handler] -> [Result].
func (s PipelineSnapshot) Diagram() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.CommandType)
	for _, m := range s.Middlewares {
		fmt.Fprintf(&b, " -> %s", m)
	}
	fmt.Fprintf(&b, " -> [%s] -> [%s]", s.HandlerType, s.ResultType)
	return b.String()
}

// SnapshotDiff reports the differences between two PipelineSnapshots of the
// same pipeline taken at different times.
type SnapshotDiff struct {
	Added       []string
	Removed     []string
	Reordered   bool
	BeforeOrder []string
	AfterOrder  []string
}

// Diff compares before and after, reporting middleware additions, removals,
// and whether the surviving, common middleware changed relative order.
func Diff(before, after PipelineSnapshot) SnapshotDiff {
	beforeSet := make(map[string]bool, len(before.Middlewares))
	for _, m := range before.Middlewares {
		beforeSet[m] = true
	}
	afterSet := make(map[string]bool, len(after.Middlewares))
	for _, m := range after.Middlewares {
		afterSet[m] = true
	}

	d := SnapshotDiff{BeforeOrder: before.Middlewares, AfterOrder: after.Middlewares}
	for _, m := range after.Middlewares {
		if !beforeSet[m] {
			d.Added = append(d.Added, m)
		}
	}
	for _, m := range before.Middlewares {
		if !afterSet[m] {
			d.Removed = append(d.Removed, m)
		}
	}

	var commonBefore, commonAfter []string
	for _, m := range before.Middlewares {
		if afterSet[m] {
			commonBefore = append(commonBefore, m)
		}
	}
	for _, m := range after.Middlewares {
		if beforeSet[m] {
			commonAfter = append(commonAfter, m)
		}
	}
	d.Reordered = !equalSlices(commonBefore, commonAfter)
	return d
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

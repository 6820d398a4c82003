package pipelinekit

// Priority bands, per the standard middleware ordering schema. These are
// convention, not an enum: any int32 is a valid priority, but code reaching
// for a band should use these names rather than magic numbers.
const (
	PriorityPreProcessing  = 0
	PrioritySecurity       = 100
	PriorityValidation     = 300
	PriorityTrafficControl = 400
	PriorityObservability  = 500
	PriorityEnhancement    = 600
	PriorityErrorHandling  = 700
	PriorityPostProcessing = 800
	PriorityTransactions   = 900
	PriorityCustom         = 1000
)

// Before returns an insertion priority that runs immediately ahead of p.
func Before(p int) int { return p - 1 }

// After returns an insertion priority that runs immediately behind p.
func After(p int) int { return p + 1 }

// Between returns an insertion priority midway between a and b.
func Between(a, b int) int {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + (hi-lo)/2
}

// Middleware observes, transforms, or guards a single command execution. A
// middleware may pass through to next, short-circuit by returning without
// calling it, transform the command or context before calling it, or
// translate the result/error after it returns.
type Middleware[C Command, R any] interface {
	// Priority determines ordering within a chain: lower values execute
	// first on entry and last on exit.
	Priority() int
	// Execute performs this middleware's work, calling next to continue the
	// chain or returning directly to short-circuit.
	Execute(ctx *Context, cmd C, next Next[C, R]) (R, error)
}

// Name is an optional interface a Middleware can implement to contribute a
// human-readable name to Inspector snapshots and diagnostic traces.
type Name interface {
	Name() string
}

// NextGuardSuppressing is an optional interface a Middleware implements to
// declare that it may deliberately not call next (authorization failure,
// cache hit, rate-limit rejection). The chain builder uses this to decide
// whether a middleware that skipped next is a bug to surface in diagnostic
// builds.
type NextGuardSuppressing interface {
	IsNextGuardSuppressing() bool
}

// MiddlewareFunc adapts a plain function and a fixed priority into a
// Middleware; Label and SuppressesGuard supply its Name and next-guard
// suppression.
type MiddlewareFunc[C Command, R any] struct {
	Label           string
	Prio            int
	Fn              func(ctx *Context, cmd C, next Next[C, R]) (R, error)
	SuppressesGuard bool
}

// Priority implements Middleware.
func (m MiddlewareFunc[C, R]) Priority() int { return m.Prio }

// Execute implements Middleware.
func (m MiddlewareFunc[C, R]) Execute(ctx *Context, cmd C, next Next[C, R]) (R, error) {
	return m.Fn(ctx, cmd, next)
}

// Name implements Name.
func (m MiddlewareFunc[C, R]) Name() string { return m.Label }

// IsNextGuardSuppressing implements NextGuardSuppressing.
func (m MiddlewareFunc[C, R]) IsNextGuardSuppressing() bool { return m.SuppressesGuard }

func nameOf(m any) string {
	if n, ok := m.(Name); ok {
		return n.Name()
	}
	return "middleware"
}

func suppressesGuard(m any) bool {
	if n, ok := m.(NextGuardSuppressing); ok {
		return n.IsNextGuardSuppressing()
	}
	return false
}

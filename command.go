package pipelinekit

import "context"

// Command is a marker for values dispatched through a Bus. A command carries
// its own inputs; the result type it produces is fixed by the Handler bound
// to it at registration time, not by the command value itself.
type Command any

// Handler produces a Result for every Command of type C. There is exactly one
// Handler per command type registered on a Bus.
type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

// Handle implements Handler.
func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// Next invokes the remainder of a middleware chain, ultimately reaching the
// handler. Middleware may call Next zero or more times (though calling it
// more than once is unusual and the caller's responsibility to justify).
type Next[C Command, R any] func(ctx *Context, cmd C) (R, error)

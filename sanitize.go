package pipelinekit

// SecureBus decorates a Bus so that failures surfaced to callers never leak
// a handler's internal error message. It is not a separate pipeline shape;
// every registration, middleware attachment, and dispatch still runs
// through the wrapped Bus unchanged, only the error returned to the caller
// differs.
type SecureBus struct {
	bus *Bus
}

// NewSecureBus wraps bus, sanitizing every error Dispatch/Send return.
func NewSecureBus(bus *Bus) *SecureBus {
	return &SecureBus{bus: bus}
}

// Use attaches a GlobalMiddleware to the underlying bus.
func (s *SecureBus) Use(mw GlobalMiddleware) { s.bus.Use(mw) }

// Dispatch sends cmd through the wrapped bus and sanitizes any resulting
// error. Kinds that are already safe to surface verbatim (validation,
// authorization, rate limiting, breaker/queue state, cancellation) pass
// through unchanged; everything else, including a bare handler-raised
// error, is replaced with an executionFailed envelope that omits the
// underlying message.
func (s *SecureBus) Dispatch(ctx *Context, cmd any) (any, error) {
	result, err := s.bus.Dispatch(ctx, cmd)
	if err == nil {
		return result, nil
	}
	return result, sanitizeError(err)
}

// SendSecure dispatches cmd through the wrapped bus and sanitizes any
// resulting error, as Dispatch does.
func SendSecure[C Command, R any](s *SecureBus, ctx *Context, cmd C) (R, error) {
	var zero R
	result, err := s.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(R)
	if !ok {
		return zero, sanitizeError(NewError(KindExecutionFailed, ErrCommandTypeMismatch, "bus"))
	}
	return typed, nil
}

// safeKinds never need sanitizing: they are part of the public contract a
// caller is expected to branch on, not an internal detail.
var safeKinds = map[Kind]bool{
	KindHandlerNotFound:    true,
	KindAlreadyRegistered:  true,
	KindValidation:         true,
	KindAuthentication:     true,
	KindAuthorization:      true,
	KindSecurityPolicy:     true,
	KindRateLimitExceeded:  true,
	KindCircuitBreakerOpen: true,
	KindQueueFull:          true,
	KindTimeout:            true,
	KindCanceled:           true,
	KindRetriesExhausted:   true,
	KindBreakerOpen:        true,
}

func sanitizeError(err error) error {
	kind := KindOf(err)
	if kind == KindRetriesExhausted {
		// The exhausted envelope wraps the last attempt's raw error; keep the
		// kind but drop the cause so its message is not surfaced.
		return &DispatchError{Kind: KindRetriesExhausted, Message: "retries exhausted"}
	}
	if safeKinds[kind] {
		return err
	}
	return &DispatchError{
		Kind:    KindExecutionFailed,
		Message: "command execution failed",
	}
}

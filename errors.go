package pipelinekit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes the error taxonomy callers must be able to switch on,
// independent of the underlying error's dynamic type.
type Kind string

// Recognized error kinds, per the dispatch error taxonomy.
const (
	KindHandlerNotFound    Kind = "handlerNotFound"
	KindAlreadyRegistered  Kind = "alreadyRegistered"
	KindValidation         Kind = "validation"
	KindAuthentication     Kind = "authentication"
	KindAuthorization      Kind = "authorization"
	KindSecurityPolicy     Kind = "securityPolicy"
	KindRateLimitExceeded  Kind = "rateLimitExceeded"
	KindCircuitBreakerOpen Kind = "circuitBreakerOpen"
	KindQueueFull          Kind = "queueFull"
	KindTimeout            Kind = "timeout"
	KindCanceled           Kind = "cancelled"
	KindEncryption         Kind = "encryption"
	KindDecryption         Kind = "decryption"
	KindCompression        Kind = "compression"
	KindDecompression      Kind = "decompression"
	KindCache              Kind = "cache"
	KindRetriesExhausted   Kind = "resilience.retriesExhausted"
	KindBreakerOpen        Kind = "resilience.breakerOpen"
	KindExecutionFailed    Kind = "executionFailed"
)

// ValidationReason enumerates the recognized validation failure reasons.
type ValidationReason string

// Recognized validation reasons.
const (
	ReasonMissingRequired   ValidationReason = "missingRequired"
	ReasonInvalidEmail      ValidationReason = "invalidEmail"
	ReasonInvalidFormat     ValidationReason = "invalidFormat"
	ReasonTooLong           ValidationReason = "tooLong"
	ReasonTooShort          ValidationReason = "tooShort"
	ReasonInvalidCharacters ValidationReason = "invalidCharacters"
	ReasonWeakPassword      ValidationReason = "weakPassword"
	ReasonCustom            ValidationReason = "custom"
)

// DispatchError is the common envelope for every error kind the bus and
// pipeline surface. Path records which middleware (outermost first)
// observed the failure, mirroring the chain's unwind order.
type DispatchError struct {
	Kind      Kind
	Message   string
	Err       error
	Path      []string
	Field     string
	Reason    ValidationReason
	Required  string
	Actual    string
	Timestamp time.Time
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	path := strings.Join(e.Path, " -> ")
	if path == "" {
		path = "unknown"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%s)", e.Kind, e.Err, path)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, path)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the error stems from a timeout, either explicit
// or via context.DeadlineExceeded.
func (e *DispatchError) IsTimeout() bool {
	return e.Kind == KindTimeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the error stems from cooperative cancellation.
func (e *DispatchError) IsCanceled() bool {
	return e.Kind == KindCanceled || errors.Is(e.Err, context.Canceled)
}

// WithPath prepends a frame to the error's middleware path, used as an error
// unwinds outward through the chain.
func (e *DispatchError) WithPath(frame string) *DispatchError {
	e.Path = append([]string{frame}, e.Path...)
	return e
}

// NewError wraps an arbitrary error in a DispatchError of the given kind.
func NewError(kind Kind, err error, frame string) *DispatchError {
	return &DispatchError{
		Kind:      kind,
		Err:       err,
		Path:      []string{frame},
		Timestamp: time.Now(),
	}
}

// NewValidationError constructs a validation failure for a specific field.
func NewValidationError(field string, reason ValidationReason, msg string) *DispatchError {
	return &DispatchError{
		Kind:      KindValidation,
		Field:     field,
		Reason:    reason,
		Message:   msg,
		Timestamp: time.Now(),
	}
}

// NewAuthorizationError records an insufficient-permission failure.
func NewAuthorizationError(required, actual string) *DispatchError {
	return &DispatchError{
		Kind:      KindAuthorization,
		Required:  required,
		Actual:    actual,
		Timestamp: time.Now(),
	}
}

// CanceledError wraps a context cancellation/timeout as a DispatchError.
func CanceledError(ctxErr error, frame string) *DispatchError {
	return &DispatchError{
		Kind:      KindCanceled,
		Err:       ctxErr,
		Path:      []string{frame},
		Timestamp: time.Now(),
	}
}

// Sentinel errors for conditions that do not need per-execution context.
var (
	ErrHandlerNotFound     = errors.New("pipelinekit: no handler registered for command type")
	ErrAlreadyRegistered   = errors.New("pipelinekit: command type already registered")
	ErrQueueFull           = errors.New("pipelinekit: back-pressure queue is full")
	ErrDropped             = errors.New("pipelinekit: command dropped under back-pressure")
	ErrCircuitOpen         = errors.New("pipelinekit: circuit breaker is open")
	ErrCommandTypeMismatch = errors.New("pipelinekit: command does not match pipeline's registered type")
)

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *DispatchError; otherwise it maps the package's sentinel errors and
// context cancellation/deadline errors to their Kinds, and returns the zero
// Kind for anything else.
func KindOf(err error) Kind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrHandlerNotFound):
		return KindHandlerNotFound
	case errors.Is(err, ErrAlreadyRegistered):
		return KindAlreadyRegistered
	case errors.Is(err, ErrQueueFull):
		return KindQueueFull
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitBreakerOpen
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return ""
}

// IsCanceled reports whether err represents cooperative cancellation of any
// kind, regardless of how it was wrapped.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return KindOf(err) == KindCanceled
}

// recoverPanic converts a panic inside a handler or middleware invocation
// into an executionFailed DispatchError rather than letting it unwind past
// the pipeline boundary. Call it via defer with named return values:
//
//	func (p *Pipeline[C, R]) Execute(ctx *Context, cmd C) (result R, err error) {
//	    defer recoverPanic(&result, &err, p.name)
//	    ...
//	}
func recoverPanic[R any](result *R, err *error, frame string) {
	if rec := recover(); rec != nil {
		var zero R
		*result = zero
		*err = NewError(KindExecutionFailed, fmt.Errorf("panic: %v", rec), frame)
	}
}

package middleware

import (
	"reflect"

	pk "github.com/pipelinekit/pipelinekit"
)

// FieldRule validates a single field's value, returning a reason and message
// on failure. Rule is applied per field declared in a Schema, not via
// reflection over the command's struct tags.
type FieldRule func(value any) (reason pk.ValidationReason, msg string, ok bool)

// Field pairs a command field name with the value extractor and rules that
// validate it.
type Field[C pk.Command] struct {
	Name    string
	Extract func(cmd C) any
	Rules   []FieldRule
}

// Schema is an explicit, per-command-type validation declaration: the
// re-architected replacement for reflection-based struct validation.
type Schema[C pk.Command] struct {
	Fields []Field[C]
}

// ValidationMiddleware validates a command against an explicit Schema before
// calling next. It never calls next when any field fails; it reports the
// first failing field only, matching the single-error DispatchError shape.
type ValidationMiddleware[C pk.Command, R any] struct {
	schema Schema[C]
}

// NewValidationMiddleware builds a ValidationMiddleware from schema.
func NewValidationMiddleware[C pk.Command, R any](schema Schema[C]) *ValidationMiddleware[C, R] {
	return &ValidationMiddleware[C, R]{schema: schema}
}

// Priority implements pk.Middleware.
func (m *ValidationMiddleware[C, R]) Priority() int { return pk.PriorityValidation }

// Name implements pk.Name.
func (m *ValidationMiddleware[C, R]) Name() string { return "validation" }

// IsNextGuardSuppressing implements pk.NextGuardSuppressing.
func (m *ValidationMiddleware[C, R]) IsNextGuardSuppressing() bool { return true }

// Execute implements pk.Middleware.
func (m *ValidationMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	var zero R
	for _, field := range m.schema.Fields {
		value := field.Extract(cmd)
		for _, rule := range field.Rules {
			reason, msg, ok := rule(value)
			if !ok {
				return zero, pk.NewValidationError(field.Name, reason, msg)
			}
		}
	}
	return next(ctx, cmd)
}

// Required fails if value is the empty string, nil, or a nil/empty slice or map.
func Required() FieldRule {
	return func(value any) (pk.ValidationReason, string, bool) {
		if isEmpty(value) {
			return pk.ReasonMissingRequired, "field is required", false
		}
		return "", "", true
	}
}

// MaxLength fails if value (as a string) is longer than n.
func MaxLength(n int) FieldRule {
	return func(value any) (pk.ValidationReason, string, bool) {
		s, ok := value.(string)
		if !ok || len(s) <= n {
			return "", "", true
		}
		return pk.ReasonTooLong, "exceeds maximum length", false
	}
}

// MinLength fails if value (as a string) is shorter than n.
func MinLength(n int) FieldRule {
	return func(value any) (pk.ValidationReason, string, bool) {
		s, ok := value.(string)
		if !ok || len(s) >= n {
			return "", "", true
		}
		return pk.ReasonTooShort, "below minimum length", false
	}
}

// Custom wraps an arbitrary predicate as a FieldRule.
func Custom(msg string, predicate func(value any) bool) FieldRule {
	return func(value any) (pk.ValidationReason, string, bool) {
		if predicate(value) {
			return "", "", true
		}
		return pk.ReasonCustom, msg, false
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
		return rv.Len() == 0
	}
	return false
}

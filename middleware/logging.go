package middleware

import (
	"time"

	"github.com/zoobzio/capitan"

	pk "github.com/pipelinekit/pipelinekit"
)

// Recognized logging middleware signals.
const (
	SignalExecutionStarted  capitan.Signal = "middleware.logging.started"
	SignalExecutionFinished capitan.Signal = "middleware.logging.finished"
)

var (
	fieldCommand  = capitan.NewStringKey("command")
	fieldDuration = capitan.NewFloat64Key("duration_ms")
	fieldOutcome  = capitan.NewStringKey("outcome")
)

// LoggingMiddleware emits a capitan signal before and after every execution,
// recording wall-clock duration and outcome. It never short-circuits the
// chain.
type LoggingMiddleware[C pk.Command, R any] struct {
	commandName string
}

// NewLoggingMiddleware creates a LoggingMiddleware labeling emitted signals
// with commandName.
func NewLoggingMiddleware[C pk.Command, R any](commandName string) *LoggingMiddleware[C, R] {
	return &LoggingMiddleware[C, R]{commandName: commandName}
}

// Priority implements pk.Middleware.
func (m *LoggingMiddleware[C, R]) Priority() int { return pk.PriorityObservability }

// Name implements pk.Name.
func (m *LoggingMiddleware[C, R]) Name() string { return "logging" }

// Execute implements pk.Middleware.
func (m *LoggingMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	started := time.Now()
	capitan.Info(ctx, SignalExecutionStarted, fieldCommand.Field(m.commandName))

	result, err := next(ctx, cmd)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	capitan.Info(ctx, SignalExecutionFinished,
		fieldCommand.Field(m.commandName),
		fieldDuration.Field(float64(time.Since(started).Milliseconds())),
		fieldOutcome.Field(outcome),
	)
	return result, err
}

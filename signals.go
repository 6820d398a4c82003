package pipelinekit

import "github.com/zoobzio/capitan"

// Signal constants for PipelineKit's internal lifecycle events.
// Signals follow the pattern: <component>.<event>.
const (
	SignalPipelineStarted  capitan.Signal = "pipeline.started"
	SignalPipelineFinished capitan.Signal = "pipeline.finished"
	SignalPipelineFailed   capitan.Signal = "pipeline.failed"

	SignalMiddlewareStarted  capitan.Signal = "middleware.started"
	SignalMiddlewareFinished capitan.Signal = "middleware.finished"
	SignalMiddlewareSkipped  capitan.Signal = "middleware.next_not_called"

	SignalBusRegistered capitan.Signal = "bus.registered"
	SignalBusDispatched capitan.Signal = "bus.dispatched"
	SignalBusRejected   capitan.Signal = "bus.rejected"

	SignalSemaphoreAcquired capitan.Signal = "semaphore.acquired"
	SignalSemaphoreReleased capitan.Signal = "semaphore.released"
	SignalSemaphoreRejected capitan.Signal = "semaphore.rejected"
	SignalSemaphoreTimedOut capitan.Signal = "semaphore.timed_out"
	SignalSemaphoreDropped  capitan.Signal = "semaphore.dropped"

	SignalRetryAttemptStart capitan.Signal = "retry.attempt_start"
	SignalRetryAttemptFail  capitan.Signal = "retry.attempt_fail"
	SignalRetrySucceeded    capitan.Signal = "retry.succeeded"
	SignalRetryExhausted    capitan.Signal = "retry.exhausted"

	SignalBreakerOpened   capitan.Signal = "circuitbreaker.opened"
	SignalBreakerClosed   capitan.Signal = "circuitbreaker.closed"
	SignalBreakerHalfOpen capitan.Signal = "circuitbreaker.half_open"
	SignalBreakerRejected capitan.Signal = "circuitbreaker.rejected"
)

// Common capitan field keys shared across components.
var (
	FieldName      = capitan.NewStringKey("name")
	FieldError     = capitan.NewStringKey("error")
	FieldTimestamp = capitan.NewFloat64Key("timestamp")

	FieldCommandType = capitan.NewStringKey("command_type")
	FieldPriority    = capitan.NewIntKey("priority")

	FieldState            = capitan.NewStringKey("state")
	FieldFailures         = capitan.NewIntKey("failures")
	FieldSuccesses        = capitan.NewIntKey("successes")
	FieldFailureThreshold = capitan.NewIntKey("failure_threshold")
	FieldSuccessThreshold = capitan.NewIntKey("success_threshold")
	FieldGeneration       = capitan.NewIntKey("generation")

	FieldAttempt     = capitan.NewIntKey("attempt")
	FieldMaxAttempts = capitan.NewIntKey("max_attempts")

	FieldActive      = capitan.NewIntKey("active")
	FieldOutstanding = capitan.NewIntKey("outstanding")
	FieldCapacity    = capitan.NewIntKey("capacity")
)

package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrScenarioNotFound is returned when a scenario id is unknown to the loader.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrTaskNotFound is returned when a task handle is unknown to the task store.
var ErrTaskNotFound = errors.New("task not found")

// ErrUnknownStepType is returned when no handler is registered for a step type.
var ErrUnknownStepType = errors.New("unknown step type")

// ErrNonTerminating is returned when cycle detection trips: a step
// transitioned to itself without suspension, or the traversal exceeded its
// step budget.
var ErrNonTerminating = errors.New("non-terminating flow")

// ErrDepthExceeded is returned when sub-scenario nesting passes the
// configured maximum.
var ErrDepthExceeded = errors.New("sub-scenario depth exceeded")

// ErrFlowUnavailable is the well-defined answer of a session already in the
// error status: new events are rejected, never silently re-attempted.
var ErrFlowUnavailable = errors.New("flow unavailable: session is in error state")

// UnknownStepError reports a registry miss for a concrete step.
type UnknownStepError struct {
	StepID   string
	StepType string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("step %q: unknown step type %q", e.StepID, e.StepType)
}

func (e *UnknownStepError) Unwrap() error { return ErrUnknownStepType }

// HandlerError reports a failed or timed-out handler dispatch. It is
// recoverable by scenario authors through on_error routing.
type HandlerError struct {
	StepID   string
	StepType string
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("step %q (%s): handler failed: %v", e.StepID, e.StepType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

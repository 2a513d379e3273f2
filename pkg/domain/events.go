package domain

import (
	"context"
	"time"
)

// EventKind is the intake event shape accepted by the engine.
type EventKind string

const (
	// EventStart begins (or restarts) a scenario for a session.
	EventStart EventKind = "start"
	// EventInput delivers external input to a suspended session.
	EventInput EventKind = "input"
	// EventTimer is a scheduler firing. Produced internally; it travels
	// through the same path as any external event.
	EventTimer EventKind = "timer"
)

// Event is one unit of work for the engine core.
type Event struct {
	Kind       EventKind
	SessionKey string

	// ScenarioID is required for start events and for timer events that
	// must seed a session.
	ScenarioID string

	// StepID optionally repositions the session (timer events).
	StepID string

	// Input is the external payload matched against a waiting input step.
	Input any

	// Payload is merged into the session context before the traversal
	// (timer firings).
	Payload map[string]any
}

// StepEvent describes entry into or exit from a step.
type StepEvent struct {
	Timestamp  time.Time
	SessionKey string
	ScenarioID string
	StepID     string
	StepType   string
}

// DispatchEvent describes one handler dispatch.
type DispatchEvent struct {
	Timestamp  time.Time
	SessionKey string
	StepID     string
	StepType   string
	Duration   time.Duration
	IsError    bool
}

// TaskEvent describes a scheduler firing.
type TaskEvent struct {
	Timestamp  time.Time
	Handle     string
	SessionKey string
	ScenarioID string
	IsError    bool
}

// LifecycleHooks are optional observability callbacks. Nil members are
// skipped; hooks must not mutate their arguments.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnDispatch  func(context.Context, *DispatchEvent)
	OnSuspend   func(context.Context, *StepEvent)
	OnTaskFired func(context.Context, *TaskEvent)
}

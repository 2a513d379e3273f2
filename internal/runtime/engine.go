// Package runtime contains the engine core: the per-session state machine
// that loads a session, walks the scenario graph until a suspension point
// or terminal step, and persists the result. All traversal for a session
// happens inside the session manager's lock, so at most one traversal is
// in flight per key at any instant.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/videlboga/scenarium/internal/logging"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
	"github.com/videlboga/scenarium/pkg/registry"
	"github.com/videlboga/scenarium/pkg/session"
	"github.com/videlboga/scenarium/pkg/template"
)

// TaskScheduler is the narrow scheduling surface the schedule_run step
// needs. The scheduler package implements it; keeping it an interface here
// avoids an import cycle with the scheduler's engine re-entry.
type TaskScheduler interface {
	Schedule(ctx context.Context, spec domain.TaskSpec) (string, error)
}

// Engine is the step dispatcher and state machine.
type Engine struct {
	loader   ports.ScenarioLoader
	registry *registry.Registry
	sessions *session.Manager

	scheduler TaskScheduler
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	maxSteps         int
	maxDepth         int
	dispatchTimeout  time.Duration
	defaultErrorStep string
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithScheduler wires the scheduler used by schedule_run steps.
func WithScheduler(s TaskScheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithMaxSteps bounds one traversal (cycle detection backstop).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithMaxDepth bounds sub-scenario nesting.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithDispatchTimeout bounds a single handler dispatch.
func WithDispatchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dispatchTimeout = d
		}
	}
}

// WithDefaultErrorStep sets a fallback error-routing step id, used when a
// failing step declares no on_error target and the active scenario contains
// a step with this id.
func WithDefaultErrorStep(stepID string) Option {
	return func(e *Engine) {
		e.defaultErrorStep = stepID
	}
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(loader ports.ScenarioLoader, reg *registry.Registry, sessions *session.Manager, opts ...Option) *Engine {
	e := &Engine{
		loader:          loader,
		registry:        reg,
		sessions:        sessions,
		logger:          logging.NewNop(),
		maxSteps:        1000,
		maxDepth:        8,
		dispatchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetScheduler wires the scheduler after construction. The scheduler
// needs the engine as its event sink, so the two are tied together in a
// second step.
func (e *Engine) SetScheduler(s TaskScheduler) {
	e.scheduler = s
}

// Sessions exposes the session manager (admin surfaces, tests).
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Handle processes one intake event for a session and returns the session
// after the traversal settles.
//
// The returned error covers intake-level failures only: unknown session,
// unknown scenario, or a session already in the error status
// (domain.ErrFlowUnavailable). Failures inside the traversal are recorded
// on the session itself (status error plus the _error context keys) so the
// record is retained for inspection rather than lost in a response.
func (e *Engine) Handle(ctx context.Context, ev domain.Event) (*domain.Session, error) {
	if ev.SessionKey == "" {
		return nil, fmt.Errorf("event without session key")
	}

	var out *domain.Session
	err := e.sessions.WithLock(ctx, ev.SessionKey, func(ctx context.Context) error {
		sess, err := e.loadOrCreate(ctx, ev)
		if err != nil {
			return err
		}

		proceed, err := e.applyEvent(ctx, sess, ev)
		if err != nil {
			return err
		}
		if proceed {
			if err := e.run(ctx, sess); err != nil {
				e.failSession(sess, err)
			}
		}

		sess.UpdatedAt = time.Now().UTC()
		if err := e.sessions.Store().Save(ctx, sess); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
		out = sess
		return nil
	})
	return out, err
}

// loadOrCreate implements transition 1: an event for an unseen session key
// creates the session from the requested scenario's declared initial
// context, positioned at its start step.
func (e *Engine) loadOrCreate(ctx context.Context, ev domain.Event) (*domain.Session, error) {
	sess, err := e.sessions.Store().Load(ctx, ev.SessionKey)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}
	if ev.ScenarioID == "" {
		return nil, fmt.Errorf("session %q: %w", ev.SessionKey, domain.ErrSessionNotFound)
	}
	return e.newSession(ev.SessionKey, ev.ScenarioID)
}

func (e *Engine) newSession(key, scenarioID string) (*domain.Session, error) {
	sc, err := e.loader.Get(scenarioID)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenarioID, err)
	}
	start := sc.StartStep()
	if start == nil {
		return nil, fmt.Errorf("scenario %q has no start step", scenarioID)
	}

	sess := domain.NewSession(key, sc.ID, start.ID)
	sess.Context = domain.CopyContext(sc.InitialContext)
	return sess, nil
}

// applyEvent merges the event into the session and reports whether the run
// loop should be entered.
func (e *Engine) applyEvent(ctx context.Context, sess *domain.Session, ev domain.Event) (bool, error) {
	if sess.Status == domain.StatusError {
		return false, fmt.Errorf("session %q: %w", sess.Key, domain.ErrFlowUnavailable)
	}

	switch ev.Kind {
	case domain.EventStart:
		return e.applyStart(sess, ev)
	case domain.EventInput:
		return e.applyInput(ctx, sess, ev)
	case domain.EventTimer:
		return e.applyTimer(sess, ev)
	default:
		return false, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// applyStart (re)positions the session at the scenario's start step. An
// explicit start on an existing session restarts the flow: the call stack
// is cleared and the scenario's initial context overlays the current one.
func (e *Engine) applyStart(sess *domain.Session, ev domain.Event) (bool, error) {
	scenarioID := ev.ScenarioID
	if scenarioID == "" {
		scenarioID = sess.ScenarioID
	}
	sc, err := e.loader.Get(scenarioID)
	if err != nil {
		return false, fmt.Errorf("scenario %q: %w", scenarioID, err)
	}
	start := sc.StartStep()
	if start == nil {
		return false, fmt.Errorf("scenario %q has no start step", scenarioID)
	}

	sess.ScenarioID = sc.ID
	sess.StepID = start.ID
	sess.Status = domain.StatusActive
	sess.Stack = nil
	sess.Merge(sc.InitialContext)
	sess.Merge(ev.Payload)
	return true, nil
}

// applyInput implements transition 2: resume a suspended session when the
// incoming event matches the waiting step's expected shape, re-prompt
// otherwise. Input for a session that is not waiting is dropped (duplicate
// deliveries race scheduler firings; ignoring the straggler is the safe
// side of the single-writer model).
func (e *Engine) applyInput(ctx context.Context, sess *domain.Session, ev domain.Event) (bool, error) {
	if sess.Status == domain.StatusTerminated {
		return false, fmt.Errorf("session %q: %w", sess.Key, domain.ErrFlowUnavailable)
	}
	if sess.Status != domain.StatusWaitingInput {
		e.logger.Debug("dropping input for session not awaiting input",
			"session_key", sess.Key, "status", string(sess.Status))
		return false, nil
	}

	sc, err := e.loader.Get(sess.ScenarioID)
	if err != nil {
		return false, fmt.Errorf("scenario %q: %w", sess.ScenarioID, err)
	}
	step := sc.Step(sess.StepID)
	if step == nil {
		return false, fmt.Errorf("waiting step %q not found in scenario %q", sess.StepID, sess.ScenarioID)
	}

	var params inputParams
	if err := decodeParams(template.ResolveMap(step.Params, sess.Context), &params); err != nil {
		return false, fmt.Errorf("step %q: invalid input params: %w", step.ID, err)
	}

	if !params.accepts(ev.Input) {
		// Mismatch: stay suspended, count the re-prompt.
		sess.Context[domain.KeyReprompt] = repromptCount(sess.Context[domain.KeyReprompt]) + 1
		e.emitSuspend(ctx, sess, step)
		return false, nil
	}

	delete(sess.Context, domain.KeyReprompt)
	if params.SaveTo != "" {
		sess.Context[params.SaveTo] = ev.Input
	}
	sess.Merge(ev.Payload)

	sess.Status = domain.StatusActive
	if step.Next == "" {
		return false, fmt.Errorf("input step %q has no next step", step.ID)
	}
	sess.StepID = step.Next
	return true, nil
}

// applyTimer implements scheduler re-entry: merge the payload, optionally
// reposition, and run. A terminated session is reactivated only when the
// firing names an explicit target step.
func (e *Engine) applyTimer(sess *domain.Session, ev domain.Event) (bool, error) {
	if sess.Status == domain.StatusTerminated && ev.StepID == "" {
		return false, fmt.Errorf("session %q is terminated: %w", sess.Key, domain.ErrFlowUnavailable)
	}

	sess.Merge(ev.Payload)

	if ev.StepID != "" {
		if ev.ScenarioID != "" {
			sess.ScenarioID = ev.ScenarioID
		}
		sess.StepID = ev.StepID
		sess.Status = domain.StatusActive
		return true, nil
	}

	// Resume current: a waiting session re-renders its input step and
	// suspends again with the merged payload visible to templates.
	if sess.Status == domain.StatusWaitingInput {
		return false, nil
	}
	return true, nil
}

// failSession records an unrecoverable traversal failure. The session is
// retained in the error status for operator inspection.
func (e *Engine) failSession(sess *domain.Session, err error) {
	sess.Status = domain.StatusError
	if sess.Context == nil {
		sess.Context = make(map[string]any)
	}
	sess.Context[domain.KeyError] = err.Error()
	sess.Context[domain.KeyErrorStep] = sess.StepID
	e.logger.Error("session moved to error state",
		"session_key", sess.Key,
		"scenario", sess.ScenarioID,
		"step", sess.StepID,
		"err", err,
	)
}

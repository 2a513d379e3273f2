// Package scheduler turns durable task records into timer events. Tasks
// survive process restarts in the task store; firing is at-least-once with
// a best-effort claim in the store's Due operation, and the engine's
// single-writer session lock makes duplicate firings safe to absorb.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/videlboga/scenarium/internal/logging"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
)

// EventSink receives timer events. The engine core implements it; keeping
// it an interface here avoids an import cycle through schedule_run steps.
type EventSink interface {
	Handle(ctx context.Context, ev domain.Event) (*domain.Session, error)
}

// Scheduler persists fire policies and re-enters sessions when they come due.
type Scheduler struct {
	store ports.TaskStore
	sink  EventSink

	interval time.Duration
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithPollInterval sets how often the due-set is checked.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Scheduler) {
		s.hooks = hooks
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler over the given store and sink.
func New(store ports.TaskStore, sink EventSink, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		sink:     sink,
		interval: time.Second,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule persists a task and returns its handle. The task is durable
// from this point: a restart between Schedule and the fire time loses
// nothing.
func (s *Scheduler) Schedule(ctx context.Context, spec domain.TaskSpec) (string, error) {
	if spec.SessionKey == "" {
		return "", fmt.Errorf("task spec without session key")
	}
	if err := validatePolicy(spec.Policy); err != nil {
		return "", err
	}

	now := s.now().UTC()
	task := &domain.Task{
		Handle:     uuid.NewString(),
		SessionKey: spec.SessionKey,
		ScenarioID: spec.ScenarioID,
		StepID:     spec.StepID,
		Policy:     spec.Policy,
		Payload:    spec.Payload,
		NextFire:   spec.Policy.FirstFire(now),
		Remaining:  initialRemaining(spec.Policy),
		CreatedAt:  now,
	}
	if err := s.store.Put(ctx, task); err != nil {
		return "", fmt.Errorf("failed to persist task: %w", err)
	}

	s.logger.Debug("task scheduled",
		"handle", task.Handle,
		"session_key", task.SessionKey,
		"kind", string(task.Policy.Kind),
		"next_fire", task.NextFire,
	)
	return task.Handle, nil
}

// Cancel removes a task. Cancelling an unknown or already-fired handle is
// a no-op.
func (s *Scheduler) Cancel(ctx context.Context, handle string) error {
	return s.store.Delete(ctx, handle)
}

// List returns all pending tasks.
func (s *Scheduler) List(ctx context.Context) ([]*domain.Task, error) {
	return s.store.List(ctx)
}

// Get returns a pending task by handle.
func (s *Scheduler) Get(ctx context.Context, handle string) (*domain.Task, error) {
	return s.store.Get(ctx, handle)
}

// Run polls the due-set until the context is cancelled. Tasks persisted
// before a restart fire on the first poll after it.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick fires every currently due task once. Exposed for deterministic tests
// and manual drains.
func (s *Scheduler) Tick(ctx context.Context) {
	due, err := s.store.Due(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to fetch due tasks", "err", err)
		return
	}
	for _, task := range due {
		s.fire(ctx, task)
	}
}

func (s *Scheduler) fire(ctx context.Context, task *domain.Task) {
	_, err := s.sink.Handle(ctx, domain.Event{
		Kind:       domain.EventTimer,
		SessionKey: task.SessionKey,
		ScenarioID: task.ScenarioID,
		StepID:     task.StepID,
		Payload:    task.Payload,
	})

	if s.hooks.OnTaskFired != nil {
		s.hooks.OnTaskFired(ctx, &domain.TaskEvent{
			Timestamp:  s.now().UTC(),
			Handle:     task.Handle,
			SessionKey: task.SessionKey,
			ScenarioID: task.ScenarioID,
			IsError:    err != nil,
		})
	}
	if err != nil {
		if targetGone(err) {
			// A vanished target is terminal for the task.
			s.logger.Warn("task firing rejected, discarding task",
				"handle", task.Handle,
				"session_key", task.SessionKey,
				"err", err,
			)
			if derr := s.store.Delete(ctx, task.Handle); derr != nil {
				s.logger.Error("failed to discard task", "handle", task.Handle, "err", derr)
			}
			return
		}

		// Anything else (a store hiccup, a timeout) is transient: put the
		// claimed task back unchanged so the next tick retries it.
		s.logger.Warn("task firing failed, will retry",
			"handle", task.Handle,
			"session_key", task.SessionKey,
			"err", err,
		)
		if perr := s.store.Put(ctx, task); perr != nil {
			s.logger.Error("failed to requeue task", "handle", task.Handle, "err", perr)
		}
		return
	}

	s.advance(ctx, task)
}

// targetGone reports whether a firing failed because the task's session or
// scenario no longer exists or stopped accepting events. Only those
// failures retire the task.
func targetGone(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrScenarioNotFound) ||
		errors.Is(err, domain.ErrFlowUnavailable)
}

// advance reschedules a periodic task or retires a finished one.
func (s *Scheduler) advance(ctx context.Context, task *domain.Task) {
	if task.Policy.Kind != domain.FireEvery {
		if err := s.store.Delete(ctx, task.Handle); err != nil {
			s.logger.Error("failed to retire task", "handle", task.Handle, "err", err)
		}
		return
	}

	if task.Remaining > 0 {
		task.Remaining--
	}
	if task.Remaining == 0 {
		if err := s.store.Delete(ctx, task.Handle); err != nil {
			s.logger.Error("failed to retire task", "handle", task.Handle, "err", err)
		}
		return
	}

	task.NextFire = s.now().UTC().Add(task.Policy.Interval)
	if err := s.store.Put(ctx, task); err != nil {
		s.logger.Error("failed to reschedule task", "handle", task.Handle, "err", err)
	}
}

func validatePolicy(p domain.FirePolicy) error {
	switch p.Kind {
	case domain.FireAt:
		if p.At.IsZero() {
			return fmt.Errorf("fire policy %q without a time", p.Kind)
		}
	case domain.FireAfter:
		if p.Delay <= 0 {
			return fmt.Errorf("fire policy %q without a positive delay", p.Kind)
		}
	case domain.FireEvery:
		if p.Interval <= 0 {
			return fmt.Errorf("fire policy %q without a positive interval", p.Kind)
		}
	default:
		return fmt.Errorf("unknown fire policy kind %q", p.Kind)
	}
	return nil
}

func initialRemaining(p domain.FirePolicy) int {
	if p.Kind != domain.FireEvery {
		return 1
	}
	if p.MaxRuns > 0 {
		return p.MaxRuns
	}
	return -1
}

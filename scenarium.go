package scenarium

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/videlboga/scenarium/internal/logging"
	"github.com/videlboga/scenarium/internal/runtime"
	"github.com/videlboga/scenarium/pkg/adapters/file"
	"github.com/videlboga/scenarium/pkg/adapters/memory"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
	"github.com/videlboga/scenarium/pkg/registry"
	"github.com/videlboga/scenarium/pkg/scheduler"
	"github.com/videlboga/scenarium/pkg/session"
)

// Engine is the high-level entry point for the library. It wires the
// engine core, session manager, registry and scheduler behind a small
// API; embedders needing finer control assemble the pieces directly.
type Engine struct {
	runtime   *runtime.Engine
	registry  *registry.Registry
	sessions  *session.Manager
	scheduler *scheduler.Scheduler

	loader       ports.ScenarioLoader
	sessionStore ports.SessionStore
	taskStore    ports.TaskStore
	locker       ports.Locker

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	runtimeOpts []runtime.Option

	pollInterval time.Duration
}

// Option configures the Engine.
type Option func(*Engine)

// WithLoader injects a scenario loader, bypassing the default YAML
// directory loader.
func WithLoader(l ports.ScenarioLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithSessionStore sets the session persistence backend (default: memory).
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessionStore = store
	}
}

// WithTaskStore sets the scheduler's persistence backend (default: memory).
func WithTaskStore(store ports.TaskStore) Option {
	return func(e *Engine) {
		e.taskStore = store
	}
}

// WithLocker adds a distributed lock held around each session traversal.
func WithLocker(locker ports.Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDefaultErrorStep sets a global fallback step for handler errors.
func WithDefaultErrorStep(stepID string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDefaultErrorStep(stepID))
	}
}

// WithMaxDepth bounds sub-scenario nesting (default 8).
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxDepth(n))
	}
}

// WithDispatchTimeout bounds one handler dispatch (default 30s).
func WithDispatchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDispatchTimeout(d))
	}
}

// WithPollInterval sets the scheduler poll interval (default 1s).
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// New initializes an Engine. By default scenarios load from YAML files
// under scenarioDir; with WithLoader the path may be empty.
func New(scenarioDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		logger:       logging.NewNop(),
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if scenarioDir == "" {
			return nil, fmt.Errorf("scenario directory is required when no custom loader is provided")
		}
		loader, err := file.NewLoader(scenarioDir)
		if err != nil {
			return nil, err
		}
		eng.loader = loader
	}
	if eng.sessionStore == nil {
		eng.sessionStore = memory.NewSessionStore()
	}
	if eng.taskStore == nil {
		eng.taskStore = memory.NewTaskStore()
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.sessionStore, sessionOpts...)

	eng.registry = registry.New()
	RegisterBuiltins(eng.registry, eng.logger)

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithHooks(eng.hooks),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.loader, eng.registry, eng.sessions, runtimeOpts...)

	eng.scheduler = scheduler.New(eng.taskStore, eng.runtime,
		scheduler.WithLogger(eng.logger),
		scheduler.WithHooks(eng.hooks),
		scheduler.WithPollInterval(eng.pollInterval),
	)
	eng.runtime.SetScheduler(eng.scheduler)

	return eng, nil
}

// RegisterHandler adds a step handler for a custom step type.
func (e *Engine) RegisterHandler(stepType string, h ports.Handler) {
	e.registry.Register(stepType, h)
}

// RegisterHandlerFunc adds a function handler for a custom step type.
func (e *Engine) RegisterHandlerFunc(stepType string, fn ports.HandlerFunc) {
	e.registry.RegisterFunc(stepType, fn)
}

// Start begins (or restarts) a scenario for the session key.
func (e *Engine) Start(ctx context.Context, sessionKey, scenarioID string, payload map[string]any) (*domain.Session, error) {
	return e.runtime.Handle(ctx, domain.Event{
		Kind:       domain.EventStart,
		SessionKey: sessionKey,
		ScenarioID: scenarioID,
		Payload:    payload,
	})
}

// Input delivers external input to a suspended session.
func (e *Engine) Input(ctx context.Context, sessionKey string, input any) (*domain.Session, error) {
	return e.runtime.Handle(ctx, domain.Event{
		Kind:       domain.EventInput,
		SessionKey: sessionKey,
		Input:      input,
	})
}

// Handle processes a raw event. Start and Input cover the common cases.
func (e *Engine) Handle(ctx context.Context, ev domain.Event) (*domain.Session, error) {
	return e.runtime.Handle(ctx, ev)
}

// Session returns the current session snapshot.
func (e *Engine) Session(ctx context.Context, key string) (*domain.Session, error) {
	return e.sessions.Load(ctx, key)
}

// Scheduler exposes the task scheduler for administrative use.
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Loader returns the underlying scenario loader.
func (e *Engine) Loader() ports.ScenarioLoader {
	return e.loader
}

// RunScheduler polls for due tasks until ctx is cancelled.
func (e *Engine) RunScheduler(ctx context.Context) error {
	return e.scheduler.Run(ctx)
}

package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/adapters/memory"
	redisadapter "github.com/videlboga/scenarium/pkg/adapters/redis"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
	"github.com/videlboga/scenarium/pkg/registry"
	"github.com/videlboga/scenarium/pkg/session"
)

func newTestEngine(t *testing.T, reg *registry.Registry, opts []Option, scenarios ...*domain.Scenario) *Engine {
	t.Helper()
	if reg == nil {
		reg = registry.New()
	}
	mgr := session.NewManager(memory.NewSessionStore())
	return NewEngine(memory.NewLoader(scenarios...), reg, mgr, opts...)
}

func linearScenario() *domain.Scenario {
	return &domain.Scenario{
		ID:             "greet",
		InitialContext: map[string]any{"user_name": "Ann"},
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "hello"},
			{ID: "hello", Type: "log", Params: map[string]any{"message": "Hi {user_name}"}, Next: "done"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
}

func TestEngine_StartRunsToEnd(t *testing.T) {
	var seen string
	reg := registry.New()
	reg.RegisterFunc("log", func(ctx context.Context, params map[string]any, _ *domain.Session) (ports.HandlerResult, error) {
		seen, _ = params["message"].(string)
		return ports.HandlerResult{Updates: map[string]any{"greeted": true}}, nil
	})
	eng := newTestEngine(t, reg, nil, linearScenario())

	sess, err := eng.Handle(context.Background(), domain.Event{
		Kind:       domain.EventStart,
		SessionKey: "u1",
		ScenarioID: "greet",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTerminated, sess.Status)
	assert.Equal(t, "done", sess.StepID)
	assert.Equal(t, "Hi Ann", seen)
	assert.Equal(t, true, sess.Context["greeted"])
}

func TestEngine_StartUnknownScenario(t *testing.T) {
	eng := newTestEngine(t, nil, nil)

	_, err := eng.Handle(context.Background(), domain.Event{
		Kind:       domain.EventStart,
		SessionKey: "u1",
		ScenarioID: "ghost",
	})
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}

func TestEngine_InputUnknownSession(t *testing.T) {
	eng := newTestEngine(t, nil, nil, linearScenario())

	_, err := eng.Handle(context.Background(), domain.Event{
		Kind:       domain.EventInput,
		SessionKey: "nobody",
		Input:      "hello",
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func inputScenario() *domain.Scenario {
	return &domain.Scenario{
		ID: "survey",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "ask"},
			{ID: "ask", Type: domain.StepInput, Params: map[string]any{
				"prompt":  "Proceed?",
				"save_to": "answer",
				"expect":  []any{"yes", "no"},
			}, Next: "done"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
}

func TestEngine_InputSuspendAndResume(t *testing.T) {
	eng := newTestEngine(t, nil, nil, inputScenario())
	ctx := context.Background()

	sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingInput, sess.Status)
	assert.Equal(t, "ask", sess.StepID)

	sess, err = eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "YES"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, sess.Status)
	assert.Equal(t, "YES", sess.Context["answer"])
}

func TestEngine_InputMismatchReprompts(t *testing.T) {
	eng := newTestEngine(t, nil, nil, inputScenario())
	ctx := context.Background()

	_, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)

	sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "maybe"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingInput, sess.Status)
	assert.Equal(t, "ask", sess.StepID)
	assert.Equal(t, 1, sess.Context[domain.KeyReprompt])

	sess, err = eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "no"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, sess.Status)
	assert.NotContains(t, sess.Context, domain.KeyReprompt)
}

func TestEngine_RepromptCounterSurvivesDurableStore(t *testing.T) {
	// Sessions persisted as JSON come back with float64 numbers in the
	// context; the counter must keep climbing across mismatches anyway so
	// conditions like `_reprompt > 2` can fire.
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mgr := session.NewManager(redisadapter.NewSessionStore(client))
	eng := NewEngine(memory.NewLoader(inputScenario()), registry.New(), mgr)
	ctx := context.Background()

	_, err = eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "maybe"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingInput, sess.Status)
		assert.EqualValues(t, i, sess.Context[domain.KeyReprompt])
	}

	sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "yes"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, sess.Status)
	assert.NotContains(t, sess.Context, domain.KeyReprompt)
}

func TestEngine_InputAfterTerminationRejected(t *testing.T) {
	eng := newTestEngine(t, nil, nil, inputScenario())
	ctx := context.Background()

	_, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)
	sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "yes"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusTerminated, sess.Status)

	_, err = eng.Handle(ctx, domain.Event{Kind: domain.EventInput, SessionKey: "u1", Input: "again"})
	assert.ErrorIs(t, err, domain.ErrFlowUnavailable)
}

func TestEngine_BranchSelectsFirstMatch(t *testing.T) {
	sc := &domain.Scenario{
		ID:             "age-gate",
		InitialContext: map[string]any{"age": 20},
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "check"},
			{ID: "check", Type: domain.StepBranch, Branches: []domain.Branch{
				{When: "age >= 18", To: "adult"},
				{When: "age >= 0", To: "minor"},
			}, Default: "invalid"},
			{ID: "adult", Type: domain.StepEnd},
			{ID: "minor", Type: domain.StepEnd},
			{ID: "invalid", Type: domain.StepEnd},
		},
	}
	eng := newTestEngine(t, nil, nil, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "age-gate"})
	require.NoError(t, err)
	assert.Equal(t, "adult", sess.StepID)
	assert.Equal(t, domain.StatusTerminated, sess.Status)
}

func TestEngine_HandlerFailureRoutesToOnError(t *testing.T) {
	sc := &domain.Scenario{
		ID: "fragile",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "boom"},
			{ID: "boom", Type: "explode", OnError: "recover", Next: "done"},
			{ID: "recover", Type: domain.StepEnd},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	reg := registry.New()
	reg.RegisterFunc("explode", func(context.Context, map[string]any, *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{}, fmt.Errorf("downstream unavailable")
	})
	eng := newTestEngine(t, reg, nil, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "fragile"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTerminated, sess.Status)
	assert.Equal(t, "recover", sess.StepID)
	assert.Equal(t, "downstream unavailable", sess.Context[domain.KeyError])
	assert.Equal(t, "boom", sess.Context[domain.KeyErrorStep])
}

func TestEngine_HandlerFailureWithoutRoutingFailsSession(t *testing.T) {
	sc := &domain.Scenario{
		ID: "fragile",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "boom"},
			{ID: "boom", Type: "explode", Next: "done"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	reg := registry.New()
	reg.RegisterFunc("explode", func(context.Context, map[string]any, *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{}, errors.New("boom")
	})
	eng := newTestEngine(t, reg, nil, sc)
	ctx := context.Background()

	sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "fragile"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, sess.Status)
	assert.Contains(t, sess.Context[domain.KeyError], "boom")

	// Any further event answers flow-unavailable; the record is retained.
	_, err = eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "fragile"})
	assert.ErrorIs(t, err, domain.ErrFlowUnavailable)
}

func TestEngine_DefaultErrorStep(t *testing.T) {
	sc := &domain.Scenario{
		ID: "fragile",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "boom"},
			{ID: "boom", Type: "explode", Next: "done"},
			{ID: "fallback", Type: domain.StepEnd},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	reg := registry.New()
	reg.RegisterFunc("explode", func(context.Context, map[string]any, *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{}, errors.New("boom")
	})
	eng := newTestEngine(t, reg, []Option{WithDefaultErrorStep("fallback")}, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "fragile"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", sess.StepID)
	assert.Equal(t, domain.StatusTerminated, sess.Status)
}

func TestEngine_UnknownStepTypeFailsSession(t *testing.T) {
	sc := &domain.Scenario{
		ID: "typo",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "odd"},
			{ID: "odd", Type: "no_such_handler", OnError: "done", Next: "done"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	eng := newTestEngine(t, nil, nil, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "typo"})
	require.NoError(t, err)

	// Configuration defects bypass on_error routing.
	assert.Equal(t, domain.StatusError, sess.Status)
	assert.Contains(t, sess.Context[domain.KeyError], "no_such_handler")
}

func TestEngine_SelfTransitionFailsFast(t *testing.T) {
	sc := &domain.Scenario{
		ID: "loop",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "spin"},
			{ID: "spin", Type: "noop", Next: "spin"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	reg := registry.New()
	reg.RegisterFunc("noop", func(context.Context, map[string]any, *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{}, nil
	})
	eng := newTestEngine(t, reg, nil, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "loop"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, sess.Status)
	assert.Contains(t, sess.Context[domain.KeyError], "transitions to itself")
}

func TestEngine_StepBudgetBoundsCycles(t *testing.T) {
	sc := &domain.Scenario{
		ID: "pingpong",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "a"},
			{ID: "a", Type: "noop", Next: "b"},
			{ID: "b", Type: "noop", Next: "a"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	reg := registry.New()
	reg.RegisterFunc("noop", func(context.Context, map[string]any, *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{}, nil
	})
	eng := newTestEngine(t, reg, []Option{WithMaxSteps(20)}, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "pingpong"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, sess.Status)
	assert.Contains(t, sess.Context[domain.KeyError], "exceeded")
}

func TestEngine_HandlerNextOverride(t *testing.T) {
	sc := &domain.Scenario{
		ID: "jump",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "pick"},
			{ID: "pick", Type: "router", Next: "left"},
			{ID: "left", Type: domain.StepEnd},
			{ID: "right", Type: domain.StepEnd},
		},
	}
	reg := registry.New()
	reg.RegisterFunc("router", func(context.Context, map[string]any, *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{Next: "right"}, nil
	})
	eng := newTestEngine(t, reg, nil, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "jump"})
	require.NoError(t, err)
	assert.Equal(t, "right", sess.StepID)
}

func TestEngine_RestartClearsStackAndReseeds(t *testing.T) {
	eng := newTestEngine(t, nil, nil, inputScenario())
	ctx := context.Background()

	sess, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusWaitingInput, sess.Status)

	sess, err = eng.Handle(ctx, domain.Event{
		Kind:       domain.EventStart,
		SessionKey: "u1",
		ScenarioID: "survey",
		Payload:    map[string]any{"channel": "sms"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingInput, sess.Status)
	assert.Equal(t, "ask", sess.StepID)
	assert.Equal(t, "sms", sess.Context["channel"])
	assert.Empty(t, sess.Stack)
}

func TestEngine_TimerRepositionsAndRuns(t *testing.T) {
	sc := &domain.Scenario{
		ID: "reminder",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "wait"},
			{ID: "wait", Type: domain.StepInput, Next: "done"},
			{ID: "nudge", Type: "log", Params: map[string]any{"message": "{reminder}"}, Next: "done"},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	var seen string
	reg := registry.New()
	reg.RegisterFunc("log", func(_ context.Context, params map[string]any, _ *domain.Session) (ports.HandlerResult, error) {
		seen, _ = params["message"].(string)
		return ports.HandlerResult{}, nil
	})
	eng := newTestEngine(t, reg, nil, sc)
	ctx := context.Background()

	_, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "reminder"})
	require.NoError(t, err)

	sess, err := eng.Handle(ctx, domain.Event{
		Kind:       domain.EventTimer,
		SessionKey: "u1",
		StepID:     "nudge",
		Payload:    map[string]any{"reminder": "still there?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "still there?", seen)
	assert.Equal(t, domain.StatusTerminated, sess.Status)
}

func TestEngine_TimerWithoutTargetKeepsWaiting(t *testing.T) {
	eng := newTestEngine(t, nil, nil, inputScenario())
	ctx := context.Background()

	_, err := eng.Handle(ctx, domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)

	sess, err := eng.Handle(ctx, domain.Event{
		Kind:       domain.EventTimer,
		SessionKey: "u1",
		Payload:    map[string]any{"nudged": true},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingInput, sess.Status)
	assert.Equal(t, true, sess.Context["nudged"])
}

type fakeScheduler struct {
	specs []domain.TaskSpec
	err   error
}

func (f *fakeScheduler) Schedule(_ context.Context, spec domain.TaskSpec) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.specs = append(f.specs, spec)
	return fmt.Sprintf("task-%d", len(f.specs)), nil
}

func TestEngine_ScheduleRunStoresHandle(t *testing.T) {
	sc := &domain.Scenario{
		ID: "followup",
		Steps: []domain.Step{
			{ID: "start", Type: domain.StepStart, Next: "later"},
			{ID: "later", Type: domain.StepScheduleRun, Params: map[string]any{
				"delay":   "5s",
				"step":    "nudge",
				"payload": map[string]any{"reminder": "x"},
			}, Next: "done"},
			{ID: "nudge", Type: domain.StepEnd},
			{ID: "done", Type: domain.StepEnd},
		},
	}
	sched := &fakeScheduler{}
	eng := newTestEngine(t, nil, []Option{WithScheduler(sched)}, sc)

	sess, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "followup"})
	require.NoError(t, err)

	require.Len(t, sched.specs, 1)
	spec := sched.specs[0]
	assert.Equal(t, "u1", spec.SessionKey)
	assert.Equal(t, "followup", spec.ScenarioID)
	assert.Equal(t, "nudge", spec.StepID)
	assert.Equal(t, domain.FireAfter, spec.Policy.Kind)
	assert.Equal(t, "x", spec.Payload["reminder"])
	assert.Equal(t, "task-1", sess.Context["_task_handle"])
	assert.Equal(t, domain.StatusTerminated, sess.Status)
}

func TestEngine_HooksFire(t *testing.T) {
	var entered, left, suspended []string
	hooks := domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, ev *domain.StepEvent) { entered = append(entered, ev.StepID) },
		OnStepLeave: func(_ context.Context, ev *domain.StepEvent) { left = append(left, ev.StepID) },
		OnSuspend:   func(_ context.Context, ev *domain.StepEvent) { suspended = append(suspended, ev.StepID) },
	}
	eng := newTestEngine(t, nil, []Option{WithHooks(hooks)}, inputScenario())

	_, err := eng.Handle(context.Background(), domain.Event{Kind: domain.EventStart, SessionKey: "u1", ScenarioID: "survey"})
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "ask"}, entered)
	assert.Equal(t, []string{"start", "ask"}, left)
	assert.Equal(t, []string{"ask"}, suspended)
}

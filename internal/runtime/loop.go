package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/videlboga/scenarium/pkg/condition"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/template"
)

// run implements transition 3: execute steps synchronously until a
// suspension point or terminal step. The caller holds the session lock.
func (e *Engine) run(ctx context.Context, sess *domain.Session) error {
	for steps := 0; ; steps++ {
		if steps >= e.maxSteps {
			return fmt.Errorf("%w: traversal exceeded %d steps", domain.ErrNonTerminating, e.maxSteps)
		}

		sc, err := e.loader.Get(sess.ScenarioID)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", sess.ScenarioID, err)
		}
		step := sc.Step(sess.StepID)
		if step == nil {
			return fmt.Errorf("step %q not found in scenario %q", sess.StepID, sess.ScenarioID)
		}

		e.emitStepEnter(ctx, sess, step)

		next, done, err := e.executeStep(ctx, sess, sc, step)
		if err != nil {
			return err
		}
		e.emitStepLeave(ctx, sess, step)
		if done {
			return nil
		}

		if next == "" {
			return fmt.Errorf("step %q in scenario %q has no transition target", step.ID, sess.ScenarioID)
		}
		// Fail fast on a step that transitions to itself with no
		// intervening suspension.
		if next == step.ID && sess.ScenarioID == sc.ID {
			return fmt.Errorf("%w: step %q transitions to itself", domain.ErrNonTerminating, step.ID)
		}
		sess.StepID = next
	}
}

// executeStep handles one step and reports the next step id, or done=true
// when the traversal settled (suspension or terminal state).
func (e *Engine) executeStep(ctx context.Context, sess *domain.Session, sc *domain.Scenario, step *domain.Step) (next string, done bool, err error) {
	switch step.Type {
	case domain.StepStart:
		return step.Next, false, nil

	case domain.StepEnd:
		if len(sess.Stack) > 0 {
			return e.returnFromSubScenario(sess)
		}
		sess.Status = domain.StatusTerminated
		return "", true, nil

	case domain.StepInput:
		sess.Status = domain.StatusWaitingInput
		e.emitSuspend(ctx, sess, step)
		return "", true, nil

	case domain.StepBranch:
		target := condition.ChooseBranch(step.Branches, step.Default, sess.Context)
		if target == "" {
			return "", false, fmt.Errorf("branch step %q matched nothing and has no default", step.ID)
		}
		return target, false, nil

	case domain.StepSubScenario:
		return e.enterSubScenario(sess, step)

	case domain.StepSwitchScenario:
		return e.switchScenario(sess, step)

	case domain.StepScheduleRun:
		return e.scheduleRun(ctx, sess, step)

	default:
		return e.dispatch(ctx, sess, sc, step)
	}
}

// dispatch resolves the step's parameters, hands them to the registered
// handler under the per-dispatch timeout, and applies the result.
func (e *Engine) dispatch(ctx context.Context, sess *domain.Session, sc *domain.Scenario, step *domain.Step) (string, bool, error) {
	resolved := template.ResolveMap(step.Params, sess.Context)

	dctx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	started := time.Now()
	res, err := e.registry.Dispatch(dctx, step, resolved, sess)
	cancel()

	e.emitDispatch(ctx, sess, step, time.Since(started), err != nil)

	if err != nil {
		// A registry miss is a configuration defect: error routing would
		// be meaningless, the session always moves to the error status.
		if errors.Is(err, domain.ErrUnknownStepType) {
			return "", false, err
		}
		return e.routeHandlerFailure(sess, sc, step, err)
	}

	sess.Merge(res.Updates)

	next := res.Next
	if next == "" {
		next = step.Next
	}
	return next, false, nil
}

// routeHandlerFailure implements transition 5: a failing dispatch surfaces
// as an error marker in context and execution continues at the declared
// error step, if any; otherwise the traversal fails.
func (e *Engine) routeHandlerFailure(sess *domain.Session, sc *domain.Scenario, step *domain.Step, cause error) (string, bool, error) {
	herr := &domain.HandlerError{StepID: step.ID, StepType: step.Type, Err: cause}

	target := step.OnError
	if target == "" && e.defaultErrorStep != "" && sc != nil && sc.Step(e.defaultErrorStep) != nil {
		target = e.defaultErrorStep
	}
	if target == "" {
		return "", false, herr
	}

	e.logger.Warn("handler failed, routing to error step",
		"session_key", sess.Key,
		"step", step.ID,
		"error_step", target,
		"err", cause,
	)
	sess.Context[domain.KeyError] = cause.Error()
	sess.Context[domain.KeyErrorStep] = step.ID
	return target, false, nil
}

// scheduleRun registers a deferred or periodic re-entry for this session
// and stores the task handle in context.
func (e *Engine) scheduleRun(ctx context.Context, sess *domain.Session, step *domain.Step) (string, bool, error) {
	if e.scheduler == nil {
		return e.routeHandlerFailure(sess, nil, step, fmt.Errorf("no scheduler configured"))
	}

	resolved := template.ResolveMap(step.Params, sess.Context)
	var params scheduleParams
	if err := decodeParams(resolved, &params); err != nil {
		return "", false, fmt.Errorf("step %q: invalid schedule params: %w", step.ID, err)
	}
	policy, err := params.policy()
	if err != nil {
		return "", false, fmt.Errorf("step %q: %w", step.ID, err)
	}

	scenarioID := params.Scenario
	if scenarioID == "" {
		scenarioID = sess.ScenarioID
	}

	handle, err := e.scheduler.Schedule(ctx, domain.TaskSpec{
		SessionKey: sess.Key,
		ScenarioID: scenarioID,
		StepID:     params.Step,
		Policy:     policy,
		Payload:    params.Payload,
	})
	if err != nil {
		return e.routeHandlerFailure(sess, nil, step, err)
	}

	saveTo := params.SaveTo
	if saveTo == "" {
		saveTo = "_task_handle"
	}
	sess.Context[saveTo] = handle
	return step.Next, false, nil
}

func (e *Engine) emitStepEnter(ctx context.Context, sess *domain.Session, step *domain.Step) {
	if e.hooks.OnStepEnter != nil {
		e.hooks.OnStepEnter(ctx, stepEvent(sess, step))
	}
}

func (e *Engine) emitStepLeave(ctx context.Context, sess *domain.Session, step *domain.Step) {
	if e.hooks.OnStepLeave != nil {
		e.hooks.OnStepLeave(ctx, stepEvent(sess, step))
	}
}

func (e *Engine) emitSuspend(ctx context.Context, sess *domain.Session, step *domain.Step) {
	if e.hooks.OnSuspend != nil {
		e.hooks.OnSuspend(ctx, stepEvent(sess, step))
	}
}

func (e *Engine) emitDispatch(ctx context.Context, sess *domain.Session, step *domain.Step, d time.Duration, isErr bool) {
	if e.hooks.OnDispatch != nil {
		e.hooks.OnDispatch(ctx, &domain.DispatchEvent{
			Timestamp:  time.Now(),
			SessionKey: sess.Key,
			StepID:     step.ID,
			StepType:   step.Type,
			Duration:   d,
			IsError:    isErr,
		})
	}
}

func stepEvent(sess *domain.Session, step *domain.Step) *domain.StepEvent {
	return &domain.StepEvent{
		Timestamp:  time.Now(),
		SessionKey: sess.Key,
		ScenarioID: sess.ScenarioID,
		StepID:     step.ID,
		StepType:   step.Type,
	}
}

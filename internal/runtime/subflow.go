package runtime

import (
	"fmt"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/template"
)

// enterSubScenario pushes a call frame and repositions the session at the
// callee's start step. The parent context is snapshotted in the frame; the
// callee starts from its own declared initial context plus the resolved
// input mapping, unless preserve_context hands it the full parent copy.
func (e *Engine) enterSubScenario(sess *domain.Session, step *domain.Step) (string, bool, error) {
	if len(sess.Stack) >= e.maxDepth {
		return "", false, fmt.Errorf("step %q: %w (max %d)", step.ID, domain.ErrDepthExceeded, e.maxDepth)
	}

	var params subScenarioParams
	if err := decodeParams(step.Params, &params); err != nil {
		return "", false, fmt.Errorf("step %q: invalid sub-scenario params: %w", step.ID, err)
	}
	if params.Scenario == "" {
		return "", false, fmt.Errorf("step %q: sub-scenario params name no scenario", step.ID)
	}

	callee, err := e.loader.Get(params.Scenario)
	if err != nil {
		return "", false, fmt.Errorf("sub-scenario %q: %w", params.Scenario, err)
	}
	start := callee.StartStep()
	if start == nil {
		return "", false, fmt.Errorf("sub-scenario %q has no start step", params.Scenario)
	}

	sess.Stack = append(sess.Stack, domain.Frame{
		ScenarioID: sess.ScenarioID,
		StepID:     step.ID,
		Output:     params.Output,
		Context:    sess.Context,
	})

	var calleeCtx map[string]any
	if params.PreserveContext {
		calleeCtx = domain.CopyContext(sess.Context)
		for k, v := range callee.InitialContext {
			if _, taken := calleeCtx[k]; !taken {
				calleeCtx[k] = v
			}
		}
	} else {
		calleeCtx = domain.CopyContext(callee.InitialContext)
	}
	for key, expr := range params.Input {
		calleeCtx[key] = template.Resolve(expr, sess.Context)
	}

	sess.ScenarioID = callee.ID
	sess.Context = calleeCtx
	return start.ID, false, nil
}

// returnFromSubScenario pops the innermost frame when a callee reaches its
// end step: the declared outputs are read from the callee context, the
// parent context is restored with those outputs applied, and execution
// resumes after the call step.
func (e *Engine) returnFromSubScenario(sess *domain.Session) (string, bool, error) {
	frame := sess.Stack[len(sess.Stack)-1]
	sess.Stack = sess.Stack[:len(sess.Stack)-1]

	calleeCtx := sess.Context
	sess.ScenarioID = frame.ScenarioID
	sess.Context = frame.Context
	if sess.Context == nil {
		sess.Context = make(map[string]any)
	}

	for parentKey, calleePath := range frame.Output {
		if v, ok := template.Lookup(calleePath, calleeCtx); ok {
			sess.Context[parentKey] = v
		}
	}

	parent, err := e.loader.Get(frame.ScenarioID)
	if err != nil {
		return "", false, fmt.Errorf("parent scenario %q: %w", frame.ScenarioID, err)
	}
	call := parent.Step(frame.StepID)
	if call == nil {
		return "", false, fmt.Errorf("call step %q not found in scenario %q", frame.StepID, frame.ScenarioID)
	}
	if call.Next == "" {
		return "", false, fmt.Errorf("call step %q has no next step", frame.StepID)
	}
	return call.Next, false, nil
}

// switchScenario replaces the active scenario in place. No frame is
// pushed and the switched-from flow never resumes; context carries over
// by default. Frames of enclosing sub-scenario calls stay live, so a
// switch inside a callee still returns to the caller when the new flow
// reaches its end.
func (e *Engine) switchScenario(sess *domain.Session, step *domain.Step) (string, bool, error) {
	var params switchParams
	if err := decodeParams(step.Params, &params); err != nil {
		return "", false, fmt.Errorf("step %q: invalid switch params: %w", step.ID, err)
	}
	if params.Scenario == "" {
		return "", false, fmt.Errorf("step %q: switch params name no scenario", step.ID)
	}

	target, err := e.loader.Get(params.Scenario)
	if err != nil {
		return "", false, fmt.Errorf("switch target %q: %w", params.Scenario, err)
	}

	entry := params.Step
	if entry == "" {
		start := target.StartStep()
		if start == nil {
			return "", false, fmt.Errorf("switch target %q has no start step", params.Scenario)
		}
		entry = start.ID
	} else if target.Step(entry) == nil {
		return "", false, fmt.Errorf("switch target %q has no step %q", params.Scenario, entry)
	}

	if !params.preserveContext() {
		sess.Context = domain.CopyContext(target.InitialContext)
	} else {
		for k, v := range target.InitialContext {
			if _, taken := sess.Context[k]; !taken {
				sess.Context[k] = v
			}
		}
	}

	sess.ScenarioID = target.ID
	return entry, false, nil
}

// Package validator checks scenario graphs for configuration defects at
// load time: duplicate or missing step ids, dangling transition targets,
// and graphs with no reachable suspension or terminal step. Catching these
// before execution keeps the engine's own defect handling (non-terminating
// flow detection) a last line of defense rather than the first.
package validator

import (
	"fmt"
	"strings"

	"github.com/videlboga/scenarium/pkg/domain"
)

// Error aggregates every defect found in one scenario.
type Error struct {
	ScenarioID string
	Problems   []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("scenario %q is invalid: %s", e.ScenarioID, strings.Join(e.Problems, "; "))
}

// Validate checks a scenario graph. A nil return means the graph is safe
// to execute.
func Validate(sc *domain.Scenario) error {
	var problems []string

	if sc.ID == "" {
		problems = append(problems, "missing scenario_id")
	}
	if len(sc.Steps) == 0 {
		problems = append(problems, "no steps")
		return &Error{ScenarioID: sc.ID, Problems: problems}
	}

	seen := make(map[string]bool, len(sc.Steps))
	starts := 0
	for _, step := range sc.Steps {
		if step.ID == "" {
			problems = append(problems, "step with empty id")
			continue
		}
		if seen[step.ID] {
			problems = append(problems, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true
		if step.Type == domain.StepStart {
			starts++
		}
		if step.Type == domain.StepBranch {
			if len(step.Branches) == 0 {
				problems = append(problems, fmt.Sprintf("branch step %q has no branches", step.ID))
			}
			// Without a default an all-falsy condition list has nowhere to
			// go at runtime.
			if step.Default == "" {
				problems = append(problems, fmt.Sprintf("branch step %q has no default", step.ID))
			}
		}
	}

	if starts == 0 {
		problems = append(problems, "no start step")
	} else if starts > 1 {
		problems = append(problems, "multiple start steps")
	}

	for _, step := range sc.Steps {
		for _, target := range step.Targets() {
			if !seen[target] {
				problems = append(problems, fmt.Sprintf("step %q references unknown step %q", step.ID, target))
			}
		}
	}

	// Only run the reachability check on structurally sound graphs.
	if len(problems) == 0 && starts == 1 {
		if !terminalReachable(sc) {
			problems = append(problems, "no end or input step is reachable from start")
		}
	}

	if len(problems) > 0 {
		return &Error{ScenarioID: sc.ID, Problems: problems}
	}
	return nil
}

// terminalReachable walks the graph from start. Branch targets, defaults
// and error routes all count as possible transitions; sub-scenario and
// switch targets are other graphs and are not followed.
func terminalReachable(sc *domain.Scenario) bool {
	start := sc.StartStep()
	if start == nil {
		return false
	}

	visited := make(map[string]bool)
	queue := []string{start.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		step := sc.Step(id)
		if step == nil {
			continue
		}
		if step.Type == domain.StepEnd || step.Type == domain.StepInput {
			return true
		}
		queue = append(queue, step.Targets()...)
	}
	return false
}

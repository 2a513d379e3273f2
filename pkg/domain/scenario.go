package domain

import "sync"

// Built-in step types. Any other type tag is dispatched to the handler
// registry; these control types are interpreted by the engine itself.
const (
	// StepStart marks the entry point of a scenario.
	StepStart = "start"
	// StepEnd terminates the traversal (sink state).
	StepEnd = "end"
	// StepInput suspends the session until an external event arrives.
	StepInput = "input"
	// StepBranch picks the next step from an ordered condition list.
	StepBranch = "branch"
	// StepSwitchScenario replaces the active scenario in place (goto, no return).
	StepSwitchScenario = "switch_scenario"
	// StepSubScenario invokes another scenario as a call with its own frame.
	StepSubScenario = "execute_sub_scenario"
	// StepScheduleRun registers a deferred or periodic re-entry for this session.
	StepScheduleRun = "schedule_run"
)

// Scenario is an immutable, named step graph. It is loaded read-only by the
// engine and never mutated at runtime.
type Scenario struct {
	ID string `json:"scenario_id" yaml:"scenario_id"`

	// InitialContext seeds the session context when a session is created
	// by a start event for this scenario.
	InitialContext map[string]any `json:"initial_context,omitempty" yaml:"initial_context,omitempty"`

	// Steps in authoring order. Order matters only for readability; lookup
	// is by ID via Step().
	Steps []Step `json:"steps" yaml:"steps"`

	index     map[string]*Step
	indexOnce sync.Once
}

// Step is one node in a scenario graph.
type Step struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`

	// Params is the author-supplied parameter bag. String leaves may be
	// templated; shape is validated per step type at dispatch time.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Next is the explicit transition target. Branch steps use Branches
	// and Default instead.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	// Branches is the ordered condition list of a branch step.
	// First truthy expression wins.
	Branches []Branch `json:"branches,omitempty" yaml:"branches,omitempty"`

	// Default is the branch target when no condition matches.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`

	// OnError routes handler failures to a recovery step instead of
	// moving the session to the error status.
	OnError string `json:"on_error,omitempty" yaml:"on_error,omitempty"`
}

// Branch is one (condition, target) pair of a branch step.
type Branch struct {
	When string `json:"when" yaml:"when"`
	To   string `json:"to" yaml:"to"`
}

// Step returns the step with the given id, or nil.
func (s *Scenario) Step(id string) *Step {
	s.indexOnce.Do(s.buildIndex)
	return s.index[id]
}

// StartStep returns the step of type start, or nil if the graph has none.
func (s *Scenario) StartStep() *Step {
	for i := range s.Steps {
		if s.Steps[i].Type == StepStart {
			return &s.Steps[i]
		}
	}
	return nil
}

func (s *Scenario) buildIndex() {
	s.index = make(map[string]*Step, len(s.Steps))
	for i := range s.Steps {
		s.index[s.Steps[i].ID] = &s.Steps[i]
	}
}

// Targets returns every transition target declared by the step.
func (st *Step) Targets() []string {
	var out []string
	if st.Next != "" {
		out = append(out, st.Next)
	}
	for _, b := range st.Branches {
		if b.To != "" {
			out = append(out, b.To)
		}
	}
	if st.Default != "" {
		out = append(out, st.Default)
	}
	if st.OnError != "" {
		out = append(out, st.OnError)
	}
	return out
}

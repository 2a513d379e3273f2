package dsl

import "github.com/videlboga/scenarium/pkg/domain"

// StepBuilder configures one step. It embeds the scenario builder, so a
// chain can move straight to the next step definition.
type StepBuilder struct {
	*Builder
	step *domain.Step
}

// Param sets one step parameter.
func (s *StepBuilder) Param(key string, value any) *StepBuilder {
	if s.step.Params == nil {
		s.step.Params = make(map[string]any)
	}
	s.step.Params[key] = value
	return s
}

// Params merges a parameter map into the step.
func (s *StepBuilder) Params(params map[string]any) *StepBuilder {
	for k, v := range params {
		s.Param(k, v)
	}
	return s
}

// Next sets the unconditional transition target.
func (s *StepBuilder) Next(target string) *StepBuilder {
	s.step.Next = target
	return s
}

// OnError sets the step to continue at when the handler fails.
func (s *StepBuilder) OnError(target string) *StepBuilder {
	s.step.OnError = target
	return s
}

// Prompt sets the prompt shown for an input step.
func (s *StepBuilder) Prompt(text string) *StepBuilder {
	return s.Param("prompt", text)
}

// SaveTo names the context key the input payload is stored under.
func (s *StepBuilder) SaveTo(key string) *StepBuilder {
	return s.Param("save_to", key)
}

// Expect restricts an input step to the given answers; anything else
// re-prompts.
func (s *StepBuilder) Expect(answers ...string) *StepBuilder {
	return s.Param("expect", answers)
}

// When adds a conditional branch, evaluated in declaration order.
func (s *StepBuilder) When(condition, target string) *StepBuilder {
	s.step.Branches = append(s.step.Branches, domain.Branch{
		When: condition,
		To:   target,
	})
	return s
}

// Default sets the branch taken when no condition matches.
func (s *StepBuilder) Default(target string) *StepBuilder {
	s.step.Default = target
	return s
}

package dsl

import (
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/validator"
)

// Builder accumulates steps for one scenario.
type Builder struct {
	id             string
	initialContext map[string]any
	steps          []*domain.Step
}

// New creates a builder for the scenario id.
func New(id string) *Builder {
	return &Builder{id: id}
}

// Context adds an initial context value.
func (b *Builder) Context(key string, value any) *Builder {
	if b.initialContext == nil {
		b.initialContext = make(map[string]any)
	}
	b.initialContext[key] = value
	return b
}

// Start adds the start step, transitioning to next.
func (b *Builder) Start(next string) *Builder {
	b.steps = append(b.steps, &domain.Step{
		ID:   "start",
		Type: domain.StepStart,
		Next: next,
	})
	return b
}

// Step adds a step of an arbitrary handler type.
func (b *Builder) Step(id, stepType string) *StepBuilder {
	step := &domain.Step{ID: id, Type: stepType}
	b.steps = append(b.steps, step)
	return &StepBuilder{Builder: b, step: step}
}

// Input adds an input step: the session suspends here until external
// input arrives.
func (b *Builder) Input(id string) *StepBuilder {
	return b.Step(id, domain.StepInput)
}

// Branch adds a branch step; configure it with When and Default.
func (b *Builder) Branch(id string) *StepBuilder {
	return b.Step(id, domain.StepBranch)
}

// SubScenario adds a sub-scenario call step.
func (b *Builder) SubScenario(id, scenarioID string) *StepBuilder {
	return b.Step(id, domain.StepSubScenario).Param("scenario", scenarioID)
}

// End adds a terminal step.
func (b *Builder) End(id string) *Builder {
	b.steps = append(b.steps, &domain.Step{ID: id, Type: domain.StepEnd})
	return b
}

// Build compiles and validates the scenario.
func (b *Builder) Build() (*domain.Scenario, error) {
	sc := &domain.Scenario{
		ID:             b.id,
		InitialContext: b.initialContext,
		Steps:          make([]domain.Step, len(b.steps)),
	}
	for i, step := range b.steps {
		sc.Steps[i] = *step
	}
	if err := validator.Validate(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// MustBuild is Build for static flows whose shape cannot fail.
func (b *Builder) MustBuild() *domain.Scenario {
	sc, err := b.Build()
	if err != nil {
		panic(err)
	}
	return sc
}

// Package registry maps step-type identifiers to the handlers that execute
// them. The registry is populated once at process start and read-only from
// the engine's perspective; it is passed by reference into the engine core,
// never reached through ambient state.
package registry

import (
	"context"
	"sync"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
)

// Registry holds the available step handlers. Safe for concurrent reads.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ports.Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]ports.Handler),
	}
}

// Register adds a handler for a step type. Registering the same type twice
// overwrites the previous handler.
func (r *Registry) Register(stepType string, h ports.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stepType] = h
}

// RegisterFunc is a convenience wrapper over Register.
func (r *Registry) RegisterFunc(stepType string, fn ports.HandlerFunc) {
	r.Register(stepType, fn)
}

// Has reports whether a handler is registered for the step type.
func (r *Registry) Has(stepType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[stepType]
	return ok
}

// Types returns the registered step types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch executes the handler for the step type. An unregistered type
// yields a structured UnknownStepError rather than a panic; the engine
// routes it to a terminal error transition.
func (r *Registry) Dispatch(ctx context.Context, step *domain.Step, params map[string]any, session *domain.Session) (ports.HandlerResult, error) {
	r.mu.RLock()
	h, ok := r.handlers[step.Type]
	r.mu.RUnlock()

	if !ok {
		return ports.HandlerResult{}, &domain.UnknownStepError{StepID: step.ID, StepType: step.Type}
	}
	return h.Execute(ctx, params, session)
}

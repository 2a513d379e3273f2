package ports

import (
	"context"

	"github.com/videlboga/scenarium/pkg/domain"
)

// HandlerResult is what a step handler returns to the engine.
type HandlerResult struct {
	// Updates are merged into the session context atomically before the
	// next step's parameters are resolved.
	Updates map[string]any

	// Next optionally overrides the step's declared transition target.
	Next string
}

// Handler executes one step type. Handlers are the sole place external
// systems are touched; params arrive fully template-resolved and the
// session is read-only from the handler's perspective (mutations go
// through Updates).
type Handler interface {
	Execute(ctx context.Context, params map[string]any, session *domain.Session) (HandlerResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]any, session *domain.Session) (HandlerResult, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, params map[string]any, session *domain.Session) (HandlerResult, error) {
	return f(ctx, params, session)
}

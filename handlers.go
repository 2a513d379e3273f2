package scenarium

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
	"github.com/videlboga/scenarium/pkg/registry"
)

// RegisterBuiltins installs the step handlers every deployment gets:
//
//	log          write a message to the structured log
//	set_context  merge literal values into the session context
//
// Domain-specific step types (messaging, HTTP calls, payments) are
// registered by the embedding application.
func RegisterBuiltins(reg *registry.Registry, logger *slog.Logger) {
	reg.RegisterFunc("log", logHandler(logger))
	reg.RegisterFunc("set_context", setContextHandler)
}

func logHandler(logger *slog.Logger) ports.HandlerFunc {
	return func(ctx context.Context, params map[string]any, sess *domain.Session) (ports.HandlerResult, error) {
		msg, _ := params["message"].(string)
		level := slog.LevelInfo
		if l, ok := params["level"].(string); ok && l == "warn" {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, msg,
			"session_key", sess.Key,
			"scenario", sess.ScenarioID,
			"step", sess.StepID,
		)
		return ports.HandlerResult{}, nil
	}
}

func setContextHandler(_ context.Context, params map[string]any, _ *domain.Session) (ports.HandlerResult, error) {
	values, ok := params["values"].(map[string]any)
	if !ok {
		return ports.HandlerResult{}, fmt.Errorf("set_context requires a values map")
	}
	return ports.HandlerResult{Updates: values}, nil
}

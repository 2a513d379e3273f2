package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
)

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	reg := New()
	reg.RegisterFunc("greet", func(ctx context.Context, params map[string]any, s *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{Updates: map[string]any{"greeted": params["who"]}}, nil
	})

	step := &domain.Step{ID: "s1", Type: "greet"}
	res, err := reg.Dispatch(context.Background(), step, map[string]any{"who": "Ann"}, domain.NewSession("k", "sc", "s1"))
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.Updates["greeted"])
}

func TestRegistry_UnknownStepType(t *testing.T) {
	reg := New()

	step := &domain.Step{ID: "s1", Type: "nope"}
	_, err := reg.Dispatch(context.Background(), step, nil, domain.NewSession("k", "sc", "s1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownStepType)

	var unknown *domain.UnknownStepError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nope", unknown.StepType)
	assert.Equal(t, "s1", unknown.StepID)
}

func TestRegistry_NextOverride(t *testing.T) {
	reg := New()
	reg.RegisterFunc("router", func(ctx context.Context, params map[string]any, s *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{Next: "special"}, nil
	})

	step := &domain.Step{ID: "r", Type: "router", Next: "default"}
	res, err := reg.Dispatch(context.Background(), step, nil, domain.NewSession("k", "sc", "r"))
	require.NoError(t, err)
	assert.Equal(t, "special", res.Next)
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	reg := New()
	reg.RegisterFunc("noop", func(ctx context.Context, params map[string]any, s *domain.Session) (ports.HandlerResult, error) {
		return ports.HandlerResult{}, nil
	})

	step := &domain.Step{ID: "n", Type: "noop"}
	sess := domain.NewSession("k", "sc", "n")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Dispatch(context.Background(), step, nil, sess)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, reg.Has("noop"))
	assert.Contains(t, reg.Types(), "noop")
}

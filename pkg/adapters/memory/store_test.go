package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/adapters/memory"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
)

func TestMemorySessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessionStore())
}

func TestMemoryTaskStore_Contract(t *testing.T) {
	ports.RunTaskStoreContract(t, memory.NewTaskStore())
}

func TestMemorySessionStore_Isolation(t *testing.T) {
	store := memory.NewSessionStore()
	ctx := context.Background()

	sess := domain.NewSession("u1", "s", "start")
	sess.Context["n"] = 1
	require.NoError(t, store.Save(ctx, sess))

	// Mutating the saved pointer must not affect the stored copy.
	sess.Context["n"] = 99

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Context["n"])

	// Mutating a loaded copy must not affect the store either.
	loaded.Context["n"] = 42
	again, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Context["n"])
}

func TestMemoryLoader(t *testing.T) {
	loader := memory.NewLoader(
		&domain.Scenario{ID: "b"},
		&domain.Scenario{ID: "a"},
	)

	sc, err := loader.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", sc.ID)

	_, err = loader.Get("zzz")
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)

	ids, err := loader.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/domain"
)

// RunSessionStoreContract verifies that a SessionStore implementation
// adheres to the interface contract. Adapter tests call it against their
// concrete store.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	key := "contract-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		sess := domain.NewSession(key, "onboarding", "start")
		sess.Context["foo"] = "bar"
		sess.Stack = append(sess.Stack, domain.Frame{
			ScenarioID: "parent",
			StepID:     "call",
			Output:     map[string]string{"result": "answer"},
			Context:    map[string]any{"kept": true},
		})

		require.NoError(t, store.Save(ctx, sess))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, sess.ScenarioID, loaded.ScenarioID)
		assert.Equal(t, sess.StepID, loaded.StepID)
		assert.Equal(t, "bar", loaded.Context["foo"])
		require.Len(t, loaded.Stack, 1)
		assert.Equal(t, "parent", loaded.Stack[0].ScenarioID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(key, "s", "start")))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		// Idempotent
		assert.NoError(t, store.Delete(ctx, key))
	})

	t.Run("List", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		_ = store.Save(ctx, domain.NewSession(k1, "s", "start"))
		_ = store.Save(ctx, domain.NewSession(k2, "s", "start"))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}

// RunTaskStoreContract verifies a TaskStore implementation, in particular
// the atomic claim semantics of Due.
func RunTaskStoreContract(t *testing.T, store TaskStore) {
	ctx := context.Background()
	now := time.Now().UTC()

	mkTask := func(handle string, fire time.Time) *domain.Task {
		return &domain.Task{
			Handle:     handle,
			SessionKey: "s1",
			ScenarioID: "reminders",
			Policy:     domain.FirePolicy{Kind: domain.FireAfter, Delay: time.Second},
			Payload:    map[string]any{"reminder": "x"},
			NextFire:   fire,
			Remaining:  1,
			CreatedAt:  now,
		}
	}

	t.Run("Put and Get", func(t *testing.T) {
		task := mkTask("t-get", now.Add(time.Hour))
		require.NoError(t, store.Put(ctx, task))
		defer func() { _ = store.Delete(ctx, task.Handle) }()

		got, err := store.Get(ctx, task.Handle)
		require.NoError(t, err)
		assert.Equal(t, "s1", got.SessionKey)
		assert.Equal(t, "x", got.Payload["reminder"])
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-handle")
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("Due claims atomically", func(t *testing.T) {
		past := mkTask("t-past", now.Add(-time.Minute))
		future := mkTask("t-future", now.Add(time.Hour))
		require.NoError(t, store.Put(ctx, past))
		require.NoError(t, store.Put(ctx, future))
		defer func() {
			_ = store.Delete(ctx, past.Handle)
			_ = store.Delete(ctx, future.Handle)
		}()

		due, err := store.Due(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "t-past", due[0].Handle)

		// Claimed: a second poll must not see it again.
		due, err = store.Due(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("Delete idempotent", func(t *testing.T) {
		task := mkTask("t-del", now.Add(time.Hour))
		require.NoError(t, store.Put(ctx, task))
		require.NoError(t, store.Delete(ctx, task.Handle))
		assert.NoError(t, store.Delete(ctx, task.Handle))
	})
}

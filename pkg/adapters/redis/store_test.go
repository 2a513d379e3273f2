package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/adapters/redis"
	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSessionStore_Contract(t *testing.T) {
	_, client := newTestClient(t)
	ports.RunSessionStoreContract(t, redis.NewSessionStore(client))
}

func TestRedisSessionStore_TTLExpiration(t *testing.T) {
	mr, client := newTestClient(t)
	store := redis.NewSessionStore(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	sess := domain.NewSession("session-ttl", "s", "start")
	sess.Context["foo"] = "bar"
	require.NoError(t, store.Save(ctx, sess))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "session-ttl")

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Index pruning uses wall-clock scores, so wait out the TTL.
	time.Sleep(1200 * time.Millisecond)

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisSessionStore_Prefix(t *testing.T) {
	mr, client := newTestClient(t)
	store := redis.NewSessionStore(client, redis.WithPrefix("custom:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewSession("u1", "s", "start")))
	assert.True(t, mr.Exists("custom:u1"))
}

func TestRedisTaskStore_Contract(t *testing.T) {
	_, client := newTestClient(t)
	ports.RunTaskStoreContract(t, redis.NewTaskStore(client, ""))
}

func TestRedisTaskStore_SurvivesReconnect(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	store := redis.NewTaskStore(client, "")
	task := &domain.Task{
		Handle:     "t1",
		SessionKey: "s1",
		ScenarioID: "reminders",
		Policy:     domain.FirePolicy{Kind: domain.FireAfter, Delay: time.Second},
		Payload:    map[string]any{"reminder": "x"},
		NextFire:   time.Now().Add(-time.Minute),
		Remaining:  1,
	}
	require.NoError(t, store.Put(ctx, task))

	// A fresh store over the same backend (simulated restart) must still
	// see the past-due task exactly once.
	client2 := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client2.Close()
	store2 := redis.NewTaskStore(client2, "")

	due, err := store2.Due(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "x", due[0].Payload["reminder"])

	due, err = store2.Due(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due, "claimed task must not fire twice")
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", 5*time.Second)
	require.NoError(t, err)

	// A second holder must not acquire before release.
	shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(shortCtx, "s1", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "s1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_UnlockIsOwnerSafe(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", 50*time.Millisecond)
	require.NoError(t, err)

	// Lock expired and was re-acquired by someone else.
	mr.FastForward(time.Second)
	other, err := locker.Lock(ctx, "s1", 5*time.Second)
	require.NoError(t, err)

	// The stale unlock must not release the new holder's lock.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("scenarium:lock:s1"))

	require.NoError(t, other(ctx))
}

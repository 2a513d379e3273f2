package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/videlboga/scenarium/pkg/domain"
)

// claimScript atomically pops due handles from the ZSET and returns their
// JSON records. Removal and read happen in one script so two scheduler
// replicas never claim the same firing.
const claimScript = `
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local out = {}
for i, handle in ipairs(due) do
	redis.call("ZREM", KEYS[1], handle)
	out[i] = redis.call("GET", KEYS[2] .. handle)
end
return out
`

// TaskStore implements ports.TaskStore on Redis. One JSON record per
// handle plus a ZSET scored by unix fire time: the queue survives process
// restarts, and a task whose fire time passed while the process was down
// is claimed on the first poll after startup.
type TaskStore struct {
	client *backend.Client
	prefix string
}

// NewTaskStore creates a task store from an existing client.
func NewTaskStore(client *backend.Client, prefix string) *TaskStore {
	if prefix == "" {
		prefix = "scenarium:"
	}
	return &TaskStore{client: client, prefix: prefix}
}

func (s *TaskStore) recordKey(handle string) string {
	return s.prefix + "task:" + handle
}

func (s *TaskStore) dueKey() string {
	return s.prefix + "task-due"
}

// Put inserts or replaces a task record and (re)queues its fire time.
func (s *TaskStore) Put(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(task.Handle), data, 0)
	pipe.ZAdd(ctx, s.dueKey(), backend.Z{
		Score:  float64(task.NextFire.UnixMilli()),
		Member: task.Handle,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Get retrieves a task by handle.
func (s *TaskStore) Get(ctx context.Context, handle string) (*domain.Task, error) {
	val, err := s.client.Get(ctx, s.recordKey(handle)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(val), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Delete removes the record and its queue entry. Idempotent.
func (s *TaskStore) Delete(ctx context.Context, handle string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(handle))
	pipe.ZRem(ctx, s.dueKey(), handle)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns all queued tasks ordered by fire time.
func (s *TaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	handles, err := s.client.ZRange(ctx, s.dueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := make([]*domain.Task, 0, len(handles))
	for _, handle := range handles {
		task, err := s.Get(ctx, handle)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// Due atomically claims tasks whose fire time has passed.
func (s *TaskStore) Due(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	raw, err := s.client.Eval(ctx, claimScript,
		[]string{s.dueKey(), s.prefix + "task:"},
		strconv.FormatInt(now.UnixMilli(), 10),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim due tasks: %w", err)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected claim script result %T", raw)
	}

	out := make([]*domain.Task, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			// Record vanished between ZREM and GET (concurrent cancel).
			continue
		}
		var task domain.Task
		if err := json.Unmarshal([]byte(str), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claimed task: %w", err)
		}
		out = append(out, &task)
	}
	return out, nil
}

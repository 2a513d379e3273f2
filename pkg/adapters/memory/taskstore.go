package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/videlboga/scenarium/pkg/domain"
)

// TaskStore implements ports.TaskStore in memory. Tasks do not survive a
// process restart; the redis adapter provides durability.
type TaskStore struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	claimed map[string]bool
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:   make(map[string]*domain.Task),
		claimed: make(map[string]bool),
	}
}

// Put inserts or replaces a task and clears any claim on it.
func (s *TaskStore) Put(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *task
	s.tasks[task.Handle] = &t
	delete(s.claimed, task.Handle)
	return nil
}

// Get retrieves a task by handle.
func (s *TaskStore) Get(ctx context.Context, handle string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[handle]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	t := *task
	return &t, nil
}

// Delete removes a task. Unknown handles are a no-op.
func (s *TaskStore) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, handle)
	delete(s.claimed, handle)
	return nil
}

// List returns all unclaimed tasks ordered by fire time.
func (s *TaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Task, 0, len(s.tasks))
	for handle, task := range s.tasks {
		if s.claimed[handle] {
			continue
		}
		t := *task
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextFire.Before(out[j].NextFire) })
	return out, nil
}

// Due claims and returns tasks whose fire time has passed. A claimed task
// stays invisible until the scheduler re-Puts it (periodic) or deletes it.
func (s *TaskStore) Due(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Task
	for handle, task := range s.tasks {
		if s.claimed[handle] || task.NextFire.After(now) {
			continue
		}
		s.claimed[handle] = true
		t := *task
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextFire.Before(out[j].NextFire) })
	return out, nil
}

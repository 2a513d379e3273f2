package ports

import (
	"context"
	"time"

	"github.com/videlboga/scenarium/pkg/domain"
)

// SessionStore persists one mutable record per active conversation.
// Implementations must support atomic read-modify-write per key; callers
// serialize access through the session manager.
type SessionStore interface {
	// Save persists the session under its key.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session by key.
	// Returns domain.ErrSessionNotFound if the key is unknown.
	Load(ctx context.Context, key string) (*domain.Session, error)

	// Delete removes the session. Deleting an unknown key is a no-op.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

// TaskStore persists scheduled tasks durably. The scheduler polls Due and
// claims tasks atomically so a firing survives restarts without double
// counting.
type TaskStore interface {
	// Put inserts or replaces a task record.
	Put(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by handle.
	// Returns domain.ErrTaskNotFound if the handle is unknown.
	Get(ctx context.Context, handle string) (*domain.Task, error)

	// Delete removes a task. Unknown handles are a no-op (idempotent cancel).
	Delete(ctx context.Context, handle string) error

	// List returns all pending tasks.
	List(ctx context.Context) ([]*domain.Task, error)

	// Due atomically claims and returns tasks whose NextFire is not after
	// now. A claimed task is no longer visible to Due until re-Put by the
	// scheduler (periodic reschedule); one-shots are simply not re-Put.
	Due(ctx context.Context, now time.Time) ([]*domain.Task, error)
}

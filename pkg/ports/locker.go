package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// Locker coordinates session access across replicas. The session manager
// layers it under its in-process per-key mutex so the single-writer
// invariant holds even with multiple engine instances.
type Locker interface {
	// Lock blocks until the lock for key is acquired, the context is
	// cancelled, or the TTL expires (implementation specific). The
	// returned UnlockFunc must be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

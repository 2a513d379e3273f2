// Package memory provides in-memory implementations of the persistence
// ports. They are the default for tests and the CLI run command; production
// deployments use the redis adapters.
package memory

import (
	"context"
	"sync"

	"github.com/videlboga/scenarium/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Session
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.Session),
	}
}

// Save persists a copy of the session so later caller mutations do not
// leak into the store.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.Key] = copySession(sess)
	return nil
}

// Load retrieves a copy of the session.
func (s *SessionStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Delete removes the session. Unknown keys are a no-op.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns all session keys.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func copySession(src *domain.Session) *domain.Session {
	out := src.Clone()
	for i := range out.Stack {
		out.Stack[i].Context = domain.CopyContext(out.Stack[i].Context)
	}
	return out
}

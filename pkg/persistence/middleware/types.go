// Package middleware wraps session stores with cross-cutting persistence
// concerns: PII masking and at-rest encryption. Middlewares compose with
// any ports.SessionStore backend.
package middleware

import "github.com/videlboga/scenarium/pkg/ports"

// Middleware decorates a session store.
type Middleware func(next ports.SessionStore) ports.SessionStore

// Chain applies middlewares so the first one listed sees Save calls first.
func Chain(store ports.SessionStore, middlewares ...Middleware) ports.SessionStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}

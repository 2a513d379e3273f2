// Package domain contains the core entities of the scenario engine:
// scenarios (immutable step graphs), sessions (per-conversation mutable
// state), scheduled tasks, and the events and errors shared by every layer.
//
// The package has no dependencies besides the standard library so that
// adapters, stores and the runtime can all import it freely.
package domain

// Package ports declares the boundary interfaces of the engine: session and
// task persistence, scenario loading, step handling and distributed locking.
// Adapters implement them; the runtime consumes them. Keeping them in one
// place means there is exactly one authoritative contract per concern.
package ports

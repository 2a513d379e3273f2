/*
Package session enforces the single-writer-per-session invariant.

The Manager wraps a ports.SessionStore with a reference-counted per-key
mutex, so concurrent events for the same session key execute in some serial
order, and optionally layers a distributed lock underneath for multi-replica
deployments. All engine-side session access goes through WithLock.
*/
package session

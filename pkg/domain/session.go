package domain

import "time"

// Status describes the execution mode of a session.
type Status string

const (
	// StatusActive means a traversal may run on the next event.
	StatusActive Status = "active"
	// StatusWaitingInput means an input step suspended the session and it
	// resumes on the next matching external event.
	StatusWaitingInput Status = "waiting_input"
	// StatusTerminated means an end step was reached.
	StatusTerminated Status = "terminated"
	// StatusError means an unrecoverable transition happened; the session
	// is retained for inspection and answers ErrFlowUnavailable.
	StatusError Status = "error"
)

// Session is the single authoritative mutable record per conversation.
// At most one traversal may mutate it at any instant; callers go through
// the session manager's lock.
type Session struct {
	// Key is caller-supplied, e.g. a user+channel composite.
	Key string `json:"key"`

	ScenarioID string `json:"scenario_id"`
	StepID     string `json:"step_id"`
	Status     Status `json:"status"`

	// Context is the mutable key-value data carried across steps.
	Context map[string]any `json:"context"`

	// Stack holds suspended parent frames of sub-scenario calls,
	// innermost last.
	Stack []Frame `json:"stack,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Frame is one suspended parent of a sub-scenario call.
type Frame struct {
	ScenarioID string `json:"scenario_id"`
	StepID     string `json:"step_id"`

	// Output maps parent-key -> callee-key, applied when the callee ends.
	Output map[string]string `json:"output,omitempty"`

	// Context is the parent context snapshot restored on return.
	Context map[string]any `json:"context"`
}

// NewSession creates a session positioned at the given step.
func NewSession(key, scenarioID, stepID string) *Session {
	return &Session{
		Key:        key,
		ScenarioID: scenarioID,
		StepID:     stepID,
		Status:     StatusActive,
		Context:    make(map[string]any),
		UpdatedAt:  time.Now().UTC(),
	}
}

// Clone returns a copy with its own context map and stack slice.
// Values are shared; the engine treats context values as immutable once set.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = CopyContext(s.Context)
	next.Stack = make([]Frame, len(s.Stack))
	copy(next.Stack, s.Stack)
	return &next
}

// Merge applies updates into the session context, last write wins.
func (s *Session) Merge(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	if s.Context == nil {
		s.Context = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		s.Context[k] = v
	}
}

// CopyContext shallow-copies a context map, never returning nil.
func CopyContext(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

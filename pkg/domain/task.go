package domain

import "time"

// PolicyKind selects how a scheduled task fires.
type PolicyKind string

const (
	// FireAt fires once at an absolute time.
	FireAt PolicyKind = "at"
	// FireAfter fires once after a relative delay.
	FireAfter PolicyKind = "after"
	// FireEvery fires on a fixed interval until cancelled or the
	// occurrence ceiling is reached.
	FireEvery PolicyKind = "every"
)

// FirePolicy describes when and how often a task fires.
type FirePolicy struct {
	Kind     PolicyKind    `json:"kind"`
	At       time.Time     `json:"at,omitempty"`
	Delay    time.Duration `json:"delay,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`

	// MaxRuns bounds a periodic policy; zero means unbounded.
	MaxRuns int `json:"max_runs,omitempty"`
}

// Task is a durable scheduled re-entry for a session. It is mutated only to
// advance NextFire / decrement Remaining, and deleted after its last firing
// or upon cancellation.
type Task struct {
	Handle     string `json:"handle"`
	SessionKey string `json:"session_key"`
	ScenarioID string `json:"scenario_id"`

	// StepID is the step to resume at; empty means "resume current".
	StepID string `json:"step_id,omitempty"`

	Policy FirePolicy `json:"policy"`

	// Payload is merged into the session context on each firing.
	Payload map[string]any `json:"payload,omitempty"`

	NextFire time.Time `json:"next_fire"`

	// Remaining firings for a bounded periodic task; -1 means unbounded,
	// one-shots carry 1.
	Remaining int `json:"remaining"`

	CreatedAt time.Time `json:"created_at"`
}

// TaskSpec is a request to create a scheduled task. The scheduler assigns
// the handle and computes the first fire time.
type TaskSpec struct {
	SessionKey string
	ScenarioID string
	StepID     string
	Policy     FirePolicy
	Payload    map[string]any
}

// FirstFire computes the initial fire time for the policy.
func (p FirePolicy) FirstFire(now time.Time) time.Time {
	switch p.Kind {
	case FireAt:
		return p.At
	case FireAfter:
		return now.Add(p.Delay)
	case FireEvery:
		return now.Add(p.Interval)
	}
	return now
}

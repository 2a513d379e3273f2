package domain

// Reserved context keys written by the engine. Authors read them in branch
// conditions and templates; writing them from handlers is allowed but
// they are overwritten on the next engine-side event.
const (
	// KeyError holds the message of the last routed handler failure.
	KeyError = "_error"
	// KeyErrorStep holds the id of the step whose handler failed.
	KeyErrorStep = "_error_step"
	// KeyReprompt counts consecutive rejected inputs on the waiting step.
	KeyReprompt = "_reprompt"
)

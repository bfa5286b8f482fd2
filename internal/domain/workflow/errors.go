package workflow

import "errors"

var (
	// ErrNoDecision is returned when resolving a transition from a state
	// with no available decision. Callers should check DecisionOf first.
	ErrNoDecision = errors.New("no decision available for state")

	// ErrInvalidState is returned when a state is not part of the taxonomy
	ErrInvalidState = errors.New("invalid workflow state")
)

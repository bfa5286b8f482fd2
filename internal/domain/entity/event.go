package entity

import (
	"time"

	"github.com/fieldops/jobflow/internal/domain/workflow"
)

// EventType identifies what kind of audit record an event is
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventDecision    EventType = "decision"
	EventUpload      EventType = "upload"
	EventNote        EventType = "note"
	EventEmail       EventType = "email"
	EventValidation  EventType = "validation"
)

// IsValid checks if the event type is one of the defined constants
func (t EventType) IsValid() bool {
	switch t {
	case EventStateChange, EventDecision, EventUpload, EventNote, EventEmail, EventValidation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// JobEvent is an immutable audit record. Events are only ever appended
// and read; there is no update or delete path anywhere in the engine.
// For a state_change or decision event, ToState equals the job's status
// immediately after the mutation that produced it.
type JobEvent struct {
	ID         int64           `json:"id"`
	JobID      int64           `json:"job_id"`
	Type       EventType       `json:"type"`
	FromState  *workflow.State `json:"from_state,omitempty"`
	ToState    *workflow.State `json:"to_state,omitempty"`
	DecisionID string          `json:"decision_id,omitempty"`
	Outcome    *bool           `json:"outcome,omitempty"`
	// StepID tags step-scoped events (notes). Events without a step tag
	// are treated as global and show up in every step's filtered view.
	StepID    workflow.Step  `json:"step_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

package workflow

// State represents the fine-grained lifecycle status of a job
type State string

const (
	// job_initiation
	StateInitiated    State = "INITIATED"
	StateAwaitingInfo State = "AWAITING_INFO"

	// inspection
	StateInspectionInProgress State = "INSPECTION_IN_PROGRESS"
	StateInspectionIncomplete State = "INSPECTION_INCOMPLETE"

	// assessment
	StateAssessmentInProgress State = "ASSESSMENT_IN_PROGRESS"
	StateAssetPassed          State = "ASSET_PASSED"
	StateAssetFailed          State = "ASSET_FAILED"

	// scheduling
	StateSchedulingConfirmed State = "SCHEDULING_CONFIRMED"
	StateSchedulingAlternate State = "SCHEDULING_ALTERNATE"

	// resourcing
	StateResourcingAssigned State = "RESOURCING_ASSIGNED"
	StateResourcingAdjusted State = "RESOURCING_ADJUSTED"

	// mobilisation
	StateCrewDispatched State = "CREW_DISPATCHED"
	StateArrivalDelayed State = "ARRIVAL_DELAYED"

	// site_access
	StateAccessGranted State = "ACCESS_GRANTED"
	StateAccessIssue   State = "ACCESS_ISSUE"

	// work_execution
	StateWorkInProgress State = "WORK_IN_PROGRESS"
	StateWorkStopped    State = "WORK_STOPPED"

	// completion
	StateWorkCompleted State = "WORK_COMPLETED"
	StateDefectFlagged State = "DEFECT_FLAGGED"

	// close_out
	StateDocsSubmitted State = "DOCS_SUBMITTED"
	StateDocsReturned  State = "DOCS_RETURNED"

	// review_financials
	StateInvoiceIssued   State = "INVOICE_ISSUED"
	StateInvoiceDisputed State = "INVOICE_DISPUTED"
	StateJobClosed       State = "JOB_CLOSED"
)

// Classification buckets every state into exactly one of three groups
type Classification string

const (
	// ClassTerminal means no further decision is available
	ClassTerminal Classification = "TERMINAL"
	// ClassBlocked means the job cannot proceed without external intervention
	ClassBlocked Classification = "BLOCKED"
	// ClassInProgress covers everything else
	ClassInProgress Classification = "IN_PROGRESS"
)

var terminalStates = map[State]bool{
	StateJobClosed:     true,
	StateDefectFlagged: true,
}

var blockedStates = map[State]bool{
	StateAwaitingInfo:         true,
	StateInspectionIncomplete: true,
	StateAssetFailed:          true,
	StateSchedulingAlternate:  true,
	StateResourcingAdjusted:   true,
	StateArrivalDelayed:       true,
	StateAccessIssue:          true,
	StateWorkStopped:          true,
	StateDocsReturned:         true,
	StateInvoiceDisputed:      true,
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state belongs to the workflow taxonomy
func (s State) IsValid() bool {
	_, ok := stateSteps[s]
	return ok
}

// IsTerminal returns true if no further decision is available from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsBlocked returns true if the state needs external intervention to proceed
func (s State) IsBlocked() bool {
	return blockedStates[s]
}

// Classify returns the state's classification bucket. A state is never in
// both the terminal and blocked sets.
func (s State) Classify() Classification {
	switch {
	case terminalStates[s]:
		return ClassTerminal
	case blockedStates[s]:
		return ClassBlocked
	default:
		return ClassInProgress
	}
}

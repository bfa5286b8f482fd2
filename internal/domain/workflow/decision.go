package workflow

import "fmt"

// Decision is the single yes/no question available at a decidable state.
// Answering it deterministically selects the next state.
type Decision struct {
	ID       string
	State    State
	Question string
	YesState State
	NoState  State
	YesHint  string
	NoHint   string
}

// decisions is the fixed decision graph. Exactly one decision per
// decidable state; JOB_CLOSED and DEFECT_FLAGGED have none. The graph is
// deliberately cyclic: several "no" branches return to the same or an
// earlier state.
var decisions = []Decision{
	{
		ID:       "D1",
		State:    StateInitiated,
		Question: "Are the job details complete and ready for inspection?",
		YesState: StateInspectionInProgress,
		NoState:  StateAwaitingInfo,
		YesHint:  "Book the site inspection and notify the inspector.",
		NoHint:   "Request the missing details from the client.",
	},
	{
		ID:       "D2",
		State:    StateInspectionInProgress,
		Question: "Was the inspection completed in full?",
		YesState: StateAssessmentInProgress,
		NoState:  StateInspectionIncomplete,
		YesHint:  "Forward the inspection report for assessment.",
		NoHint:   "Record what prevented the inspection from finishing.",
	},
	{
		ID:       "D3",
		State:    StateInspectionIncomplete,
		Question: "Can the inspection be reattempted?",
		YesState: StateInspectionInProgress,
		NoState:  StateDefectFlagged,
		YesHint:  "Rebook the inspector for a second visit.",
		NoHint:   "Flag the job as a defect and close it out.",
	},
	{
		ID:       "D4",
		State:    StateAwaitingInfo,
		Question: "Has the outstanding information been received?",
		YesState: StateInspectionInProgress,
		NoState:  StateAwaitingInfo,
		YesHint:  "Proceed to the site inspection.",
		NoHint:   "Chase the client again and keep the job on hold.",
	},
	{
		ID:       "D5",
		State:    StateAssessmentInProgress,
		Question: "Did the asset pass the condition assessment?",
		YesState: StateAssetPassed,
		NoState:  StateAssetFailed,
		YesHint:  "Record the assessment outcome against the asset.",
		NoHint:   "Record the failure and the remediation options.",
	},
	{
		ID:       "D6",
		State:    StateAssetPassed,
		Question: "Proceed with scheduling the work?",
		YesState: StateSchedulingConfirmed,
		NoState:  StateDefectFlagged,
		YesHint:  "Propose a work date to the client.",
		NoHint:   "Flag the job as a defect and close it out.",
	},
	{
		ID:       "D7",
		State:    StateAssetFailed,
		Question: "Can the asset be remediated and reassessed?",
		YesState: StateAssessmentInProgress,
		NoState:  StateDefectFlagged,
		YesHint:  "Schedule the remediation and a fresh assessment.",
		NoHint:   "Flag the job as a defect and close it out.",
	},
	{
		ID:       "D8",
		State:    StateSchedulingConfirmed,
		Question: "Did the client accept the proposed date?",
		YesState: StateResourcingAssigned,
		NoState:  StateSchedulingAlternate,
		YesHint:  "Lock the date in and move to resourcing.",
		NoHint:   "Offer the client alternative dates.",
	},
	{
		ID:       "D9",
		State:    StateSchedulingAlternate,
		Question: "Has an alternate date been agreed?",
		YesState: StateResourcingAssigned,
		NoState:  StateSchedulingAlternate,
		YesHint:  "Lock the agreed date in and move to resourcing.",
		NoHint:   "Keep negotiating dates with the client.",
	},
	{
		ID:       "D10",
		State:    StateResourcingAssigned,
		Question: "Are the assigned crew and materials confirmed?",
		YesState: StateCrewDispatched,
		NoState:  StateResourcingAdjusted,
		YesHint:  "Dispatch the crew to site.",
		NoHint:   "Rework the resourcing plan.",
	},
	{
		ID:       "D11",
		State:    StateResourcingAdjusted,
		Question: "Has the revised resourcing plan been approved?",
		YesState: StateCrewDispatched,
		NoState:  StateResourcingAdjusted,
		YesHint:  "Dispatch the crew to site.",
		NoHint:   "Keep reworking the resourcing plan.",
	},
	{
		ID:       "D12",
		State:    StateCrewDispatched,
		Question: "Did the crew arrive on site as scheduled?",
		YesState: StateAccessGranted,
		NoState:  StateArrivalDelayed,
		YesHint:  "Confirm site access with the site contact.",
		NoHint:   "Record the delay and the new ETA.",
	},
	{
		ID:       "D13",
		State:    StateArrivalDelayed,
		Question: "Has the crew now arrived on site?",
		YesState: StateAccessGranted,
		NoState:  StateSchedulingAlternate,
		YesHint:  "Confirm site access with the site contact.",
		NoHint:   "Stand the crew down and rebook the visit.",
	},
	{
		ID:       "D14",
		State:    StateAccessGranted,
		Question: "Is the work area safe and clear to start?",
		YesState: StateWorkInProgress,
		NoState:  StateAccessIssue,
		YesHint:  "Begin the work and log the start time.",
		NoHint:   "Record the access or safety issue.",
	},
	{
		ID:       "D15",
		State:    StateAccessIssue,
		Question: "Has the access issue been resolved?",
		YesState: StateWorkInProgress,
		NoState:  StateSchedulingAlternate,
		YesHint:  "Begin the work and log the start time.",
		NoHint:   "Stand the crew down and rebook the visit.",
	},
	{
		ID:       "D16",
		State:    StateWorkInProgress,
		Question: "Is all work finished to specification?",
		YesState: StateWorkCompleted,
		NoState:  StateWorkInProgress,
		YesHint:  "Move to the completion checks.",
		NoHint:   "Continue working; the job stays in progress.",
	},
	{
		ID:       "D17",
		State:    StateWorkStopped,
		Question: "Can work resume?",
		YesState: StateWorkInProgress,
		NoState:  StateDefectFlagged,
		YesHint:  "Resume the work and log the restart.",
		NoHint:   "Flag the job as a defect and close it out.",
	},
	{
		ID:       "D18",
		State:    StateWorkCompleted,
		Question: "Has the client signed off the completed work?",
		YesState: StateDocsSubmitted,
		NoState:  StateWorkStopped,
		YesHint:  "Submit the close-out documents.",
		NoHint:   "Stop work pending rectification of the snags.",
	},
	{
		ID:       "D19",
		State:    StateDocsSubmitted,
		Question: "Were the close-out documents accepted?",
		YesState: StateInvoiceIssued,
		NoState:  StateDocsReturned,
		YesHint:  "Raise the invoice.",
		NoHint:   "Correct the documents and resubmit.",
	},
	{
		ID:       "D20",
		State:    StateDocsReturned,
		Question: "Have the corrected documents been resubmitted?",
		YesState: StateDocsSubmitted,
		NoState:  StateDocsReturned,
		YesHint:  "Await acceptance of the resubmission.",
		NoHint:   "Finish the corrections first.",
	},
	{
		ID:       "D21",
		State:    StateInvoiceIssued,
		Question: "Has payment been received in full?",
		YesState: StateJobClosed,
		NoState:  StateInvoiceDisputed,
		YesHint:  "Close the job.",
		NoHint:   "Record the dispute and the amount contested.",
	},
	{
		ID:       "D22",
		State:    StateInvoiceDisputed,
		Question: "Has the dispute been resolved?",
		YesState: StateJobClosed,
		NoState:  StateInvoiceDisputed,
		YesHint:  "Close the job.",
		NoHint:   "Continue working the dispute with the client.",
	},
}

// stateDecisions indexes the decision graph by state. Construction panics
// on a duplicate decision or a branch pointing outside the taxonomy.
var stateDecisions = buildStateDecisions()

func buildStateDecisions() map[State]Decision {
	m := make(map[State]Decision, len(decisions))
	for _, d := range decisions {
		if _, dup := m[d.State]; dup {
			panic(fmt.Sprintf("duplicate decision for state %s", d.State))
		}
		if _, ok := stateSteps[d.State]; !ok {
			panic(fmt.Sprintf("decision %s attached to unknown state %s", d.ID, d.State))
		}
		if _, ok := stateSteps[d.YesState]; !ok {
			panic(fmt.Sprintf("decision %s yes-branch targets unknown state %s", d.ID, d.YesState))
		}
		if _, ok := stateSteps[d.NoState]; !ok {
			panic(fmt.Sprintf("decision %s no-branch targets unknown state %s", d.ID, d.NoState))
		}
		m[d.State] = d
	}
	return m
}

// Decisions returns the full decision table in graph order.
func Decisions() []Decision {
	out := make([]Decision, len(decisions))
	copy(out, decisions)
	return out
}

// DecisionOf returns the decision available at the given state, or false
// for terminal and unknown states.
func DecisionOf(state State) (Decision, bool) {
	d, ok := stateDecisions[state]
	return d, ok
}

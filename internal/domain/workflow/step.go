package workflow

import "fmt"

// Step is a coarse-grained pipeline stage containing one or more states
type Step string

const (
	StepJobInitiation    Step = "job_initiation"
	StepInspection       Step = "inspection"
	StepAssessment       Step = "assessment"
	StepScheduling       Step = "scheduling"
	StepResourcing       Step = "resourcing"
	StepMobilisation     Step = "mobilisation"
	StepSiteAccess       Step = "site_access"
	StepWorkExecution    Step = "work_execution"
	StepCompletion       Step = "completion"
	StepCloseOut         Step = "close_out"
	StepReviewFinancials Step = "review_financials"
)

// Swimlane tags a step with the team that owns it. Informational only,
// nothing in the engine enforces it.
type Swimlane string

const (
	SwimlaneOffice Swimlane = "office"
	SwimlaneField  Swimlane = "field"
)

// StepInfo describes a step: its key, display label, swimlane and the
// states that belong to it.
type StepInfo struct {
	Step     Step
	Label    string
	Swimlane Swimlane
	States   []State
}

// stepOrder is the canonical pipeline. Index 0 is the first step; the
// position of a state's step in this slice drives progress percentages.
var stepOrder = []StepInfo{
	{StepJobInitiation, "Job Initiation", SwimlaneOffice, []State{StateInitiated, StateAwaitingInfo}},
	{StepInspection, "Site Inspection", SwimlaneField, []State{StateInspectionInProgress, StateInspectionIncomplete}},
	{StepAssessment, "Asset Assessment", SwimlaneOffice, []State{StateAssessmentInProgress, StateAssetPassed, StateAssetFailed}},
	{StepScheduling, "Scheduling", SwimlaneOffice, []State{StateSchedulingConfirmed, StateSchedulingAlternate}},
	{StepResourcing, "Resourcing", SwimlaneOffice, []State{StateResourcingAssigned, StateResourcingAdjusted}},
	{StepMobilisation, "Crew Mobilisation", SwimlaneField, []State{StateCrewDispatched, StateArrivalDelayed}},
	{StepSiteAccess, "Site Access", SwimlaneField, []State{StateAccessGranted, StateAccessIssue}},
	{StepWorkExecution, "Work Execution", SwimlaneField, []State{StateWorkInProgress, StateWorkStopped}},
	{StepCompletion, "Completion", SwimlaneField, []State{StateWorkCompleted, StateDefectFlagged}},
	{StepCloseOut, "Close-Out", SwimlaneOffice, []State{StateDocsSubmitted, StateDocsReturned}},
	{StepReviewFinancials, "Review & Financials", SwimlaneOffice, []State{StateInvoiceIssued, StateInvoiceDisputed, StateJobClosed}},
}

// stateSteps maps every state to its owning step. Built once from
// stepOrder; construction panics if a state appears in two steps.
var stateSteps = buildStateSteps()

// stepIndexes maps each step to its 0-based position in stepOrder.
var stepIndexes = buildStepIndexes()

func buildStateSteps() map[State]Step {
	m := make(map[State]Step)
	for _, info := range stepOrder {
		for _, st := range info.States {
			if owner, dup := m[st]; dup {
				panic(fmt.Sprintf("state %s mapped to both %s and %s", st, owner, info.Step))
			}
			m[st] = info.Step
		}
	}
	return m
}

func buildStepIndexes() map[Step]int {
	m := make(map[Step]int, len(stepOrder))
	for i, info := range stepOrder {
		m[info.Step] = i
	}
	return m
}

// Steps returns the ordered pipeline steps. The returned slice is a copy;
// callers cannot mutate the taxonomy.
func Steps() []StepInfo {
	out := make([]StepInfo, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// StepCount returns the number of pipeline steps.
func StepCount() int {
	return len(stepOrder)
}

// StepOf returns the step that owns the given state. The mapping is total
// over valid states; an unknown state returns false.
func StepOf(state State) (Step, bool) {
	step, ok := stateSteps[state]
	return step, ok
}

// MustStepOf is StepOf for states already known to be valid.
// It panics on an unknown state.
func MustStepOf(state State) Step {
	step, ok := stateSteps[state]
	if !ok {
		panic(fmt.Sprintf("unknown workflow state: %s", state))
	}
	return step
}

// StepIndex returns the 0-based position of the step in the pipeline,
// or -1 for an unknown step.
func StepIndex(step Step) int {
	idx, ok := stepIndexes[step]
	if !ok {
		return -1
	}
	return idx
}

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IsValid returns true if the step belongs to the pipeline
func (s Step) IsValid() bool {
	_, ok := stepIndexes[s]
	return ok
}

// Label returns the display label for the step, or the raw key if unknown.
func (s Step) Label() string {
	if idx, ok := stepIndexes[s]; ok {
		return stepOrder[idx].Label
	}
	return string(s)
}

// Lane returns the swimlane the step belongs to.
func (s Step) Lane() Swimlane {
	if idx, ok := stepIndexes[s]; ok {
		return stepOrder[idx].Swimlane
	}
	return ""
}

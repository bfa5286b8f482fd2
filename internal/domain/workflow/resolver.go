package workflow

import (
	"fmt"
	"math"
)

// Progress returns the job's completion percentage for the given state.
// Granularity is deliberately step-level: every state in a step reports
// the same percentage, computed from the step's position in the pipeline
// with round-half-up arithmetic. JOB_CLOSED always reports 100.
//
// Progress is not monotonic across transitions: a "no" answer that loops
// back to an earlier step lowers the percentage.
func Progress(state State) int {
	if state == StateJobClosed {
		return 100
	}
	step, ok := stateSteps[state]
	if !ok {
		return 0
	}
	idx := stepIndexes[step]
	return int(math.Round(100 * float64(idx+1) / float64(len(stepOrder))))
}

// ResolveTransition computes the next state from the given state and a
// yes/no outcome. Calling it on a state with no available decision is a
// caller bug and yields ErrNoDecision.
func ResolveTransition(state State, outcome bool) (State, error) {
	d, ok := stateDecisions[state]
	if !ok {
		if !state.IsValid() {
			return "", fmt.Errorf("%w: %s", ErrInvalidState, state)
		}
		return "", fmt.Errorf("%w: %s", ErrNoDecision, state)
	}
	if outcome {
		return d.YesState, nil
	}
	return d.NoState, nil
}

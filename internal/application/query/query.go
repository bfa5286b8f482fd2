// Package query holds the read-side projections: pure functions over a
// snapshot of jobs. The snapshot comes from storage; consumers refresh it
// whenever the notification bus signals a change.
package query

import (
	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
)

// Filter narrows a job snapshot. Populated filters combine with AND;
// the status and step filters match any of their values.
type Filter struct {
	Statuses   []workflow.State
	Steps      []workflow.Step
	AssignedTo string
	Priority   string
}

// Apply returns the jobs matching the filter, preserving input order.
func Apply(jobs []*entity.Job, f Filter) []*entity.Job {
	var out []*entity.Job
	for _, job := range jobs {
		if !matches(job, f) {
			continue
		}
		out = append(out, job)
	}
	return out
}

func matches(job *entity.Job, f Filter) bool {
	if len(f.Statuses) > 0 && !containsState(f.Statuses, job.Status) {
		return false
	}
	if len(f.Steps) > 0 && !containsStep(f.Steps, job.CurrentStep) {
		return false
	}
	if f.AssignedTo != "" && !containsString(job.AssignedTo, f.AssignedTo) {
		return false
	}
	if f.Priority != "" && job.Priority != f.Priority {
		return false
	}
	return true
}

// Stats are the aggregate counters a dashboard renders. The classification
// buckets come from workflow.Classify, never from ad hoc status lists, so
// they cannot drift from the resolver's definitions.
type Stats struct {
	Total      int                   `json:"total"`
	Blocked    int                   `json:"blocked"`
	Closed     int                   `json:"closed"`
	InProgress int                   `json:"in_progress"`
	PerStep    map[workflow.Step]int `json:"per_step"`
}

// Compute derives the stat counters from a job snapshot.
func Compute(jobs []*entity.Job) Stats {
	stats := Stats{
		PerStep: make(map[workflow.Step]int),
	}
	for _, job := range jobs {
		stats.Total++
		stats.PerStep[job.CurrentStep]++

		switch job.Status.Classify() {
		case workflow.ClassTerminal:
			stats.Closed++
		case workflow.ClassBlocked:
			stats.Blocked++
		default:
			stats.InProgress++
		}
	}
	return stats
}

func containsState(states []workflow.State, s workflow.State) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func containsStep(steps []workflow.Step, s workflow.Step) bool {
	for _, v := range steps {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
)

func job(id int64, status workflow.State, assignees ...string) *entity.Job {
	return &entity.Job{
		ID:          id,
		Status:      status,
		CurrentStep: workflow.MustStepOf(status),
		AssignedTo:  assignees,
	}
}

func fixture() []*entity.Job {
	return []*entity.Job{
		job(1, workflow.StateInitiated, "dana"),
		job(2, workflow.StateWorkInProgress, "lee"),
		job(3, workflow.StateAwaitingInfo, "dana"),
		job(4, workflow.StateJobClosed),
		job(5, workflow.StateAccessIssue, "lee", "dana"),
	}
}

func TestApply_NoFilterReturnsAll(t *testing.T) {
	got := Apply(fixture(), Filter{})
	assert.Len(t, got, 5)
}

func TestApply_StatusSet(t *testing.T) {
	got := Apply(fixture(), Filter{
		Statuses: []workflow.State{workflow.StateInitiated, workflow.StateJobClosed},
	})

	assert.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(4), got[1].ID)
}

func TestApply_StepSet(t *testing.T) {
	got := Apply(fixture(), Filter{
		Steps: []workflow.Step{workflow.StepWorkExecution, workflow.StepSiteAccess},
	})

	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(5), got[1].ID)
}

func TestApply_AssignedTo(t *testing.T) {
	got := Apply(fixture(), Filter{AssignedTo: "dana"})
	assert.Len(t, got, 3)
}

func TestApply_Priority(t *testing.T) {
	jobs := fixture()
	jobs[1].Priority = entity.PriorityRed
	jobs[4].Priority = entity.PriorityRed

	got := Apply(jobs, Filter{Priority: entity.PriorityRed})

	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(5), got[1].ID)
}

func TestApply_FiltersAreConjunctive(t *testing.T) {
	got := Apply(fixture(), Filter{
		Statuses:   []workflow.State{workflow.StateAwaitingInfo, workflow.StateAccessIssue},
		AssignedTo: "lee",
	})

	// Only job 5 is both in the status set and assigned to lee.
	assert.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].ID)
}

func TestCompute_BucketsViaClassify(t *testing.T) {
	stats := Compute(fixture())

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Blocked)    // AWAITING_INFO, ACCESS_ISSUE
	assert.Equal(t, 1, stats.Closed)     // JOB_CLOSED
	assert.Equal(t, 2, stats.InProgress) // INITIATED, WORK_IN_PROGRESS

	// INITIATED and AWAITING_INFO both live in job_initiation.
	assert.Equal(t, 2, stats.PerStep[workflow.StepJobInitiation])
	assert.Equal(t, 1, stats.PerStep[workflow.StepWorkExecution])
	assert.Equal(t, 1, stats.PerStep[workflow.StepSiteAccess])
	assert.Equal(t, 1, stats.PerStep[workflow.StepReviewFinancials])
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(nil)

	assert.Equal(t, 0, stats.Total)
	assert.Empty(t, stats.PerStep)
}

func TestCompute_DefectCountsAsClosed(t *testing.T) {
	stats := Compute([]*entity.Job{
		job(1, workflow.StateDefectFlagged),
		job(2, workflow.StateJobClosed),
	})

	// Both terminal states land in the closed bucket; the buckets come
	// from the classifier, not a hardcoded status list.
	assert.Equal(t, 2, stats.Closed)
	assert.Equal(t, 0, stats.Blocked)
	assert.Equal(t, 0, stats.InProgress)
}

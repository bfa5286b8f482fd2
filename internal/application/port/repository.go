// Package port defines the interfaces the application layer consumes.
// Infrastructure adapters implement them; services depend only on these.
package port

import (
	"context"
	"errors"

	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
)

// ErrJobNotFound is returned when a referenced job id does not exist
var ErrJobNotFound = errors.New("job not found")

// JobFilter narrows a job listing. All populated filters are conjunctive;
// the status and step filters accept sets (OR within the filter).
type JobFilter struct {
	TenantID   string
	Statuses   []workflow.State
	Steps      []workflow.Step
	AssignedTo string
	Priority   string
	Limit      int
	Offset     int
}

// JobRepository defines persistence operations for the Job aggregate
type JobRepository interface {
	// Create persists a new job and fills in its assigned id
	Create(ctx context.Context, job *entity.Job) error

	// GetByID retrieves a job by id, or ErrJobNotFound
	GetByID(ctx context.Context, id int64) (*entity.Job, error)

	// GetByWorkOrderRef retrieves a job by its work-order reference
	GetByWorkOrderRef(ctx context.Context, ref string) (*entity.Job, error)

	// UpdateStatus writes status, the step derived from it, and updatedAt.
	// Returns ErrJobNotFound when the id does not exist.
	UpdateStatus(ctx context.Context, id int64, status workflow.State, step workflow.Step) error

	// Touch bumps updatedAt without changing status
	Touch(ctx context.Context, id int64) error

	// List returns a snapshot of jobs matching the filter
	List(ctx context.Context, filter JobFilter) ([]*entity.Job, error)
}

// EventRepository defines persistence operations for the audit log.
// The log is append-only: no update or delete exists on purpose.
type EventRepository interface {
	// Append durably adds one event and fills in its assigned id
	Append(ctx context.Context, event *entity.JobEvent) error

	// ListByJob returns a job's events in causal order
	// (timestamp ascending, insertion order breaking ties).
	ListByJob(ctx context.Context, jobID int64) ([]*entity.JobEvent, error)

	// ListByJobStep returns a job's events scoped to one step. Events
	// without a step tag are included in every step's view.
	ListByJobStep(ctx context.Context, jobID int64, step workflow.Step) ([]*entity.JobEvent, error)
}

// TransactionManager handles database transactions. The mutation service
// uses it to make a status write and its event append atomic.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/jobflow/internal/application/bus"
	"github.com/fieldops/jobflow/internal/application/port"
	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Actor is the already-authenticated identity performing a mutation
type Actor struct {
	ID   string
	Name string
}

// DecisionOutcome records which decision was answered and how
type DecisionOutcome struct {
	ID      string
	Outcome bool
}

// CreateJobInput carries the fields accepted at job creation. ClientName
// and ClientEmail are required; an empty WorkOrderRef is synthesized.
type CreateJobInput struct {
	TenantID     string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	SiteAddress  string
	WorkOrderRef string
	Priority     string
	AssignedTo   []string
	Notes        string
	ScheduledFor *time.Time
	DueDate      *time.Time
	Geofence     *entity.Geofence
	VoiceNote    *entity.VoiceNote
}

// JobService owns every mutation of the Job aggregate. Status and
// currentStep are written nowhere else; each successful mutation commits
// the aggregate write and its audit event in one transaction and then
// publishes a change notification. Notification strictly follows the
// durable write so observers never read state older than the signal.
type JobService interface {
	// CreateJob initializes a job at INITIATED and appends the initial
	// state_change event
	CreateJob(ctx context.Context, input CreateJobInput, actor Actor) (*entity.Job, error)

	// Transition moves a job to targetState. The caller resolves the
	// target (via the workflow package) before calling; the service
	// stays agnostic of graph shape so administrative overrides use the
	// same path as decision answers.
	Transition(ctx context.Context, jobID int64, targetState workflow.State, decision *DecisionOutcome, actor Actor) error

	// AppendNote records a free-text note against the job's current step,
	// or against an explicit step for retroactive notes
	AppendNote(ctx context.Context, jobID int64, text string, step workflow.Step, actor Actor) error

	// RecordEvent appends a non-transition audit event (upload, email,
	// validation) without touching status
	RecordEvent(ctx context.Context, jobID int64, eventType entity.EventType, metadata map[string]any, actor Actor) error

	// GetJob returns the current aggregate
	GetJob(ctx context.Context, jobID int64) (*entity.Job, error)

	// ListJobs returns a snapshot of jobs matching the filter
	ListJobs(ctx context.Context, filter port.JobFilter) ([]*entity.Job, error)

	// History returns a job's audit events in causal order; a non-empty
	// step scopes the view to that step plus untagged events
	History(ctx context.Context, jobID int64, step workflow.Step) ([]*entity.JobEvent, error)
}

type jobServiceImpl struct {
	jobRepo   port.JobRepository
	eventRepo port.EventRepository
	txManager port.TransactionManager
	changes   *bus.Bus
	logger    Logger
	now       func() time.Time
}

// NewJobService creates the job mutation service
func NewJobService(
	jobRepo port.JobRepository,
	eventRepo port.EventRepository,
	txManager port.TransactionManager,
	changes *bus.Bus,
	logger Logger,
) JobService {
	return &jobServiceImpl{
		jobRepo:   jobRepo,
		eventRepo: eventRepo,
		txManager: txManager,
		changes:   changes,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateJob creates a new job aggregate with its initial audit event
func (s *jobServiceImpl) CreateJob(ctx context.Context, input CreateJobInput, actor Actor) (*entity.Job, error) {
	if strings.TrimSpace(input.ClientName) == "" {
		return nil, fmt.Errorf("client name is required")
	}
	if strings.TrimSpace(input.ClientEmail) == "" {
		return nil, fmt.Errorf("client email is required")
	}
	if !entity.ValidPriority(input.Priority) {
		return nil, fmt.Errorf("invalid priority %q", input.Priority)
	}

	ref := strings.TrimSpace(input.WorkOrderRef)
	if ref == "" {
		ref = s.newWorkOrderRef()
	}

	now := s.now()
	initial := workflow.StateInitiated
	job := &entity.Job{
		TenantID:     input.TenantID,
		ClientName:   input.ClientName,
		ClientEmail:  input.ClientEmail,
		ClientPhone:  input.ClientPhone,
		SiteAddress:  input.SiteAddress,
		WorkOrderRef: ref,
		Status:       initial,
		CurrentStep:  workflow.MustStepOf(initial),
		AssignedTo:   input.AssignedTo,
		Notes:        input.Notes,
		Priority:     input.Priority,
		ScheduledFor: input.ScheduledFor,
		DueDate:      input.DueDate,
		Geofence:     input.Geofence,
		VoiceNote:    input.VoiceNote,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.jobRepo.Create(txCtx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}

		event := &entity.JobEvent{
			JobID:     job.ID,
			Type:      entity.EventStateChange,
			ToState:   &initial,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Timestamp: now,
		}
		if err := s.eventRepo.Append(txCtx, event); err != nil {
			return fmt.Errorf("append creation event: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create job", "work_order_ref", ref, "error", err)
		return nil, err
	}

	s.changes.Publish(bus.ChangeJobCreated)

	s.logger.Info("Job created",
		"job_id", job.ID,
		"work_order_ref", job.WorkOrderRef,
		"status", job.Status.String(),
	)
	return job, nil
}

// Transition moves the job to targetState and appends the matching event
func (s *jobServiceImpl) Transition(ctx context.Context, jobID int64, targetState workflow.State, decision *DecisionOutcome, actor Actor) error {
	step, ok := workflow.StepOf(targetState)
	if !ok {
		return fmt.Errorf("%w: %s", workflow.ErrInvalidState, targetState)
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	fromState := job.Status
	toState := targetState
	now := s.now()

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.jobRepo.UpdateStatus(txCtx, jobID, toState, step); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		event := &entity.JobEvent{
			JobID:     jobID,
			Type:      entity.EventStateChange,
			FromState: &fromState,
			ToState:   &toState,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Timestamp: now,
		}
		if decision != nil {
			event.Type = entity.EventDecision
			event.DecisionID = decision.ID
			outcome := decision.Outcome
			event.Outcome = &outcome
		}
		if err := s.eventRepo.Append(txCtx, event); err != nil {
			return fmt.Errorf("append transition event: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to transition job",
			"job_id", jobID,
			"from", fromState.String(),
			"to", toState.String(),
			"error", err,
		)
		return err
	}

	s.changes.Publish(bus.ChangeJobUpdated)

	s.logger.Info("Job transitioned",
		"job_id", jobID,
		"from", fromState.String(),
		"to", toState.String(),
		"step", step.String(),
	)
	return nil
}

// AppendNote records a note event against the given or current step
func (s *jobServiceImpl) AppendNote(ctx context.Context, jobID int64, text string, step workflow.Step, actor Actor) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("note text is required")
	}
	if step != "" && !step.IsValid() {
		return fmt.Errorf("invalid step %q", step)
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if step == "" {
		step = job.CurrentStep
	}

	now := s.now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		event := &entity.JobEvent{
			JobID:     jobID,
			Type:      entity.EventNote,
			StepID:    step,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Timestamp: now,
			Metadata:  map[string]any{"text": text},
		}
		if err := s.eventRepo.Append(txCtx, event); err != nil {
			return fmt.Errorf("append note event: %w", err)
		}
		if err := s.jobRepo.Touch(txCtx, jobID); err != nil {
			return fmt.Errorf("touch job: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to append note", "job_id", jobID, "error", err)
		return err
	}

	s.changes.Publish(bus.ChangeEventAppended)
	return nil
}

// RecordEvent appends an upload/email/validation event without a status change
func (s *jobServiceImpl) RecordEvent(ctx context.Context, jobID int64, eventType entity.EventType, metadata map[string]any, actor Actor) error {
	if !eventType.IsValid() {
		return fmt.Errorf("invalid event type %q", eventType)
	}
	switch eventType {
	case entity.EventStateChange, entity.EventDecision:
		return fmt.Errorf("event type %s is reserved for transitions", eventType)
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		event := &entity.JobEvent{
			JobID:     jobID,
			Type:      eventType,
			StepID:    job.CurrentStep,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Timestamp: now,
			Metadata:  metadata,
		}
		if err := s.eventRepo.Append(txCtx, event); err != nil {
			return fmt.Errorf("append %s event: %w", eventType, err)
		}
		if err := s.jobRepo.Touch(txCtx, jobID); err != nil {
			return fmt.Errorf("touch job: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record event", "job_id", jobID, "type", eventType.String(), "error", err)
		return err
	}

	s.changes.Publish(bus.ChangeEventAppended)
	return nil
}

// GetJob returns the current job aggregate
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID int64) (*entity.Job, error) {
	return s.jobRepo.GetByID(ctx, jobID)
}

// ListJobs returns a snapshot of jobs matching the filter
func (s *jobServiceImpl) ListJobs(ctx context.Context, filter port.JobFilter) ([]*entity.Job, error) {
	return s.jobRepo.List(ctx, filter)
}

// History returns a job's events in causal order
func (s *jobServiceImpl) History(ctx context.Context, jobID int64, step workflow.Step) ([]*entity.JobEvent, error) {
	if _, err := s.jobRepo.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	if step == "" {
		return s.eventRepo.ListByJob(ctx, jobID)
	}
	if !step.IsValid() {
		return nil, fmt.Errorf("invalid step %q", step)
	}
	return s.eventRepo.ListByJobStep(ctx, jobID, step)
}

// newWorkOrderRef synthesizes a time-derived reference for callers that
// do not supply one, e.g. WO-20250830-1a2b3c.
func (s *jobServiceImpl) newWorkOrderRef() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("WO-%s-%s", s.now().Format("20060102"), suffix)
}

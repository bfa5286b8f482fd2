package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/jobflow/internal/application/port"
	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
	"github.com/fieldops/jobflow/internal/infrastructure/persistence/sqlite"
)

// JobRepository implements port.JobRepository over sqlite
type JobRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *sqlite.DB, logger *zap.Logger) port.JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	id, tenant_id, client_name, client_email, client_phone, site_address,
	work_order_ref, status, current_step, assigned_to, notes, priority,
	scheduled_for, due_date, geofence, voice_note, created_by,
	created_at, updated_at
`

// Create persists a new job and fills in its assigned id
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO jobs (
			tenant_id, client_name, client_email, client_phone, site_address,
			work_order_ref, status, current_step, assigned_to, notes, priority,
			scheduled_for, due_date, geofence, voice_note, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	assigned, err := marshalJSON(job.AssignedTo)
	if err != nil {
		return fmt.Errorf("failed to encode assignees: %w", err)
	}
	geofence, err := marshalJSON(job.Geofence)
	if err != nil {
		return fmt.Errorf("failed to encode geofence: %w", err)
	}
	voiceNote, err := marshalJSON(job.VoiceNote)
	if err != nil {
		return fmt.Errorf("failed to encode voice note: %w", err)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		job.TenantID,
		job.ClientName,
		job.ClientEmail,
		job.ClientPhone,
		job.SiteAddress,
		job.WorkOrderRef,
		job.Status.String(),
		job.CurrentStep.String(),
		assigned,
		job.Notes,
		job.Priority,
		job.ScheduledFor,
		job.DueDate,
		geofence,
		voiceNote,
		job.CreatedBy,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create job", zap.String("work_order_ref", job.WorkOrderRef), zap.Error(err))
		return fmt.Errorf("failed to create job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	job.ID = id
	return nil
}

// GetByID retrieves a job by id, or port.ErrJobNotFound
func (r *JobRepository) GetByID(ctx context.Context, id int64) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := r.scanJob(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get job by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetByWorkOrderRef retrieves a job by its work-order reference
func (r *JobRepository) GetByWorkOrderRef(ctx context.Context, ref string) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE work_order_ref = ?`

	job, err := r.scanJob(r.db.Executor(ctx).QueryRowContext(ctx, query, ref))
	if err == sql.ErrNoRows {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get job by work-order ref", zap.String("ref", ref), zap.Error(err))
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// UpdateStatus writes status, derived step and updatedAt in one statement
func (r *JobRepository) UpdateStatus(ctx context.Context, id int64, status workflow.State, step workflow.Step) error {
	query := `UPDATE jobs SET status = ?, current_step = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status.String(), step.String(), time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update job status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update job status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrJobNotFound
	}
	return nil
}

// Touch bumps updatedAt without changing status
func (r *JobRepository) Touch(ctx context.Context, id int64) error {
	query := `UPDATE jobs SET updated_at = ? WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to touch job", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to touch job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrJobNotFound
	}
	return nil
}

// List returns a snapshot of jobs matching the filter, newest first
func (r *JobRepository) List(ctx context.Context, filter port.JobFilter) ([]*entity.Job, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.TenantID != "" {
		conds = append(conds, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, s.String())
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.Steps) > 0 {
		placeholders := make([]string, len(filter.Steps))
		for i, s := range filter.Steps {
			placeholders[i] = "?"
			args = append(args, s.String())
		}
		conds = append(conds, "current_step IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.AssignedTo != "" {
		// Assignees are stored as a JSON string array.
		conds = append(conds, `assigned_to LIKE '%"' || ? || '"%'`)
		args = append(args, filter.AssignedTo)
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, filter.Priority)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list jobs", zap.Error(err))
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *JobRepository) scanJob(row rowScanner) (*entity.Job, error) {
	var (
		job          entity.Job
		status       string
		step         string
		assigned     sql.NullString
		geofence     sql.NullString
		voiceNote    sql.NullString
		scheduledFor sql.NullTime
		dueDate      sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.ClientName,
		&job.ClientEmail,
		&job.ClientPhone,
		&job.SiteAddress,
		&job.WorkOrderRef,
		&status,
		&step,
		&assigned,
		&job.Notes,
		&job.Priority,
		&scheduledFor,
		&dueDate,
		&geofence,
		&voiceNote,
		&job.CreatedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = workflow.State(status)
	job.CurrentStep = workflow.Step(step)
	if scheduledFor.Valid {
		job.ScheduledFor = &scheduledFor.Time
	}
	if dueDate.Valid {
		job.DueDate = &dueDate.Time
	}
	if err := unmarshalJSON(assigned, &job.AssignedTo); err != nil {
		return nil, fmt.Errorf("failed to decode assignees: %w", err)
	}
	if err := unmarshalJSON(geofence, &job.Geofence); err != nil {
		return nil, fmt.Errorf("failed to decode geofence: %w", err)
	}
	if err := unmarshalJSON(voiceNote, &job.VoiceNote); err != nil {
		return nil, fmt.Errorf("failed to decode voice note: %w", err)
	}

	return &job, nil
}

// marshalJSON encodes v, returning NULL for nil values
func marshalJSON(v interface{}) (sql.NullString, error) {
	switch val := v.(type) {
	case []string:
		if val == nil {
			return sql.NullString{}, nil
		}
	case *entity.Geofence:
		if val == nil {
			return sql.NullString{}, nil
		}
	case *entity.VoiceNote:
		if val == nil {
			return sql.NullString{}, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON decodes a nullable JSON column into target
func unmarshalJSON(src sql.NullString, target interface{}) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), target)
}

// Verify interface compliance
var _ port.JobRepository = (*JobRepository)(nil)

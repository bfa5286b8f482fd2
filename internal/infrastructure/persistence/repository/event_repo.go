package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldops/jobflow/internal/application/port"
	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
	"github.com/fieldops/jobflow/internal/infrastructure/persistence/sqlite"
)

// EventRepository implements port.EventRepository over sqlite. Only
// INSERT and SELECT statements exist here: the audit log's immutability
// is a safety property, not an accident of omission.
type EventRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sqlite.DB, logger *zap.Logger) port.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

const eventColumns = `
	id, job_id, type, from_state, to_state, decision_id, outcome,
	step_id, actor_id, actor_name, timestamp, metadata
`

// Append durably adds one event and fills in its assigned id
func (r *EventRepository) Append(ctx context.Context, event *entity.JobEvent) error {
	query := `
		INSERT INTO job_events (
			job_id, type, from_state, to_state, decision_id, outcome,
			step_id, actor_id, actor_name, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var metadata sql.NullString
	if event.Metadata != nil {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	var outcome sql.NullBool
	if event.Outcome != nil {
		outcome = sql.NullBool{Bool: *event.Outcome, Valid: true}
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		event.JobID,
		event.Type.String(),
		stateOrNull(event.FromState),
		stateOrNull(event.ToState),
		event.DecisionID,
		outcome,
		event.StepID.String(),
		event.ActorID,
		event.ActorName,
		event.Timestamp,
		metadata,
	)
	if err != nil {
		r.logger.Error("Failed to append event",
			zap.Int64("job_id", event.JobID),
			zap.String("type", event.Type.String()),
			zap.Error(err))
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// ListByJob returns a job's events in causal order: timestamp ascending,
// insertion order (row id) breaking ties.
func (r *EventRepository) ListByJob(ctx context.Context, jobID int64) ([]*entity.JobEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM job_events
		WHERE job_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	return r.queryEvents(ctx, query, jobID)
}

// ListByJobStep returns a job's events scoped to one step. Events with
// no step tag predate step scoping (or are transition events) and are
// included in every step's view.
func (r *EventRepository) ListByJobStep(ctx context.Context, jobID int64, step workflow.Step) ([]*entity.JobEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM job_events
		WHERE job_id = ? AND (step_id = ? OR step_id = '' OR step_id IS NULL)
		ORDER BY timestamp ASC, id ASC
	`

	return r.queryEvents(ctx, query, jobID, step.String())
}

func (r *EventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*entity.JobEvent, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query events", zap.Error(err))
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*entity.JobEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*entity.JobEvent, error) {
	var (
		event     entity.JobEvent
		eventType string
		fromState sql.NullString
		toState   sql.NullString
		outcome   sql.NullBool
		stepID    sql.NullString
		metadata  sql.NullString
	)

	err := rows.Scan(
		&event.ID,
		&event.JobID,
		&eventType,
		&fromState,
		&toState,
		&event.DecisionID,
		&outcome,
		&stepID,
		&event.ActorID,
		&event.ActorName,
		&event.Timestamp,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	event.Type = entity.EventType(eventType)
	if fromState.Valid && fromState.String != "" {
		s := workflow.State(fromState.String)
		event.FromState = &s
	}
	if toState.Valid && toState.String != "" {
		s := workflow.State(toState.String)
		event.ToState = &s
	}
	if outcome.Valid {
		b := outcome.Bool
		event.Outcome = &b
	}
	if stepID.Valid {
		event.StepID = workflow.Step(stepID.String)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode event metadata: %w", err)
		}
	}

	return &event, nil
}

func stateOrNull(s *workflow.State) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: s.String(), Valid: true}
}

// Verify interface compliance
var _ port.EventRepository = (*EventRepository)(nil)

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/jobflow/internal/application/bus"
	"github.com/fieldops/jobflow/internal/application/port"
	"github.com/fieldops/jobflow/internal/application/service"
	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// stubJobService keeps jobs in memory with just enough behaviour for
// handler tests.
type stubJobService struct {
	jobs   map[int64]*entity.Job
	events map[int64][]*entity.JobEvent
	nextID int64
}

func newStubJobService() *stubJobService {
	return &stubJobService{
		jobs:   make(map[int64]*entity.Job),
		events: make(map[int64][]*entity.JobEvent),
		nextID: 1,
	}
}

func (s *stubJobService) CreateJob(_ context.Context, input service.CreateJobInput, actor service.Actor) (*entity.Job, error) {
	if strings.TrimSpace(input.ClientName) == "" {
		return nil, fmt.Errorf("client name is required")
	}
	now := time.Now().UTC()
	job := &entity.Job{
		ID:           s.nextID,
		TenantID:     input.TenantID,
		ClientName:   input.ClientName,
		ClientEmail:  input.ClientEmail,
		WorkOrderRef: input.WorkOrderRef,
		Status:       workflow.StateInitiated,
		CurrentStep:  workflow.StepJobInitiation,
		Priority:     input.Priority,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if job.WorkOrderRef == "" {
		job.WorkOrderRef = fmt.Sprintf("WO-TEST-%06d", s.nextID)
	}
	s.nextID++
	s.jobs[job.ID] = job
	return job, nil
}

func (s *stubJobService) Transition(_ context.Context, jobID int64, targetState workflow.State, decision *service.DecisionOutcome, _ service.Actor) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return port.ErrJobNotFound
	}
	step, valid := workflow.StepOf(targetState)
	if !valid {
		return workflow.ErrInvalidState
	}
	from := job.Status
	job.Status = targetState
	job.CurrentStep = step
	job.UpdatedAt = time.Now().UTC()

	ev := &entity.JobEvent{
		JobID:     jobID,
		Type:      entity.EventStateChange,
		FromState: &from,
		ToState:   &targetState,
		StepID:    step,
		Timestamp: job.UpdatedAt,
	}
	if decision != nil {
		ev.Type = entity.EventDecision
		ev.DecisionID = decision.ID
		outcome := decision.Outcome
		ev.Outcome = &outcome
	}
	s.events[jobID] = append(s.events[jobID], ev)
	return nil
}

func (s *stubJobService) AppendNote(_ context.Context, jobID int64, text string, step workflow.Step, _ service.Actor) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return port.ErrJobNotFound
	}
	if step == "" {
		step = job.CurrentStep
	}
	s.events[jobID] = append(s.events[jobID], &entity.JobEvent{
		JobID:     jobID,
		Type:      entity.EventNote,
		StepID:    step,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{"text": text},
	})
	return nil
}

func (s *stubJobService) RecordEvent(_ context.Context, jobID int64, eventType entity.EventType, metadata map[string]any, _ service.Actor) error {
	if _, ok := s.jobs[jobID]; !ok {
		return port.ErrJobNotFound
	}
	if !eventType.IsValid() {
		return fmt.Errorf("invalid event type %q", eventType)
	}
	s.events[jobID] = append(s.events[jobID], &entity.JobEvent{
		JobID:     jobID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	return nil
}

func (s *stubJobService) GetJob(_ context.Context, jobID int64) (*entity.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	return job, nil
}

func (s *stubJobService) ListJobs(_ context.Context, _ port.JobFilter) ([]*entity.Job, error) {
	jobs := make([]*entity.Job, 0, len(s.jobs))
	for id := int64(1); id < s.nextID; id++ {
		if job, ok := s.jobs[id]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (s *stubJobService) History(_ context.Context, jobID int64, step workflow.Step) ([]*entity.JobEvent, error) {
	if _, ok := s.jobs[jobID]; !ok {
		return nil, port.ErrJobNotFound
	}
	var out []*entity.JobEvent
	for _, ev := range s.events[jobID] {
		if step == "" || ev.StepID == step || ev.StepID == "" {
			out = append(out, ev)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *stubJobService, *bus.Bus) {
	t.Helper()
	svc := newStubJobService()
	changes := bus.New()
	t.Cleanup(func() { changes.Close() })

	cfg := DefaultServerConfig()
	server := NewServer(cfg, svc, changes, nopLogger{})
	return server, svc, changes
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, "expected success, got error: %s", resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func TestHealthCheck(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	decodeData(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
}

func TestGetWorkflow(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/workflow", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Steps     []json.RawMessage `json:"steps"`
		Decisions []json.RawMessage `json:"decisions"`
	}
	decodeData(t, w, &data)
	assert.Len(t, data.Steps, workflow.StepCount())
	assert.Len(t, data.Decisions, len(workflow.Decisions()))
}

func TestCreateJob(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/jobs", body{
		"client_name":  "Acme Facilities",
		"client_email": "ops@acme.example",
		"actor_id":     "u-1",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var job JobResponse
	decodeData(t, w, &job)
	assert.Equal(t, workflow.StateInitiated.String(), job.Status)
	assert.Equal(t, workflow.StepJobInitiation.String(), job.CurrentStep)
	assert.Equal(t, 9, job.Progress)
	assert.NotEmpty(t, job.WorkOrderRef)
	require.NotNil(t, job.Decision)
	assert.Equal(t, "D1", job.Decision.ID)
}

func TestCreateJobValidation(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/jobs", body{
		"client_email": "ops@acme.example",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/jobs/42", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJobInvalidID(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/jobs/abc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnswerDecision(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/decision", created.ID), body{
		"outcome":  true,
		"actor_id": "u-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var job JobResponse
	decodeData(t, w, &job)
	assert.Equal(t, workflow.StateInspectionInProgress.String(), job.Status)
	assert.Equal(t, 18, job.Progress)
}

func TestAnswerDecisionAtTerminalState(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)
	require.NoError(t, svc.Transition(context.Background(), created.ID, workflow.StateJobClosed, nil, service.Actor{}))

	w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/decision", created.ID), body{
		"outcome": false,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOverrideTransition(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/transition", created.ID), body{
		"target_state": workflow.StateWorkInProgress.String(),
		"actor_id":     "admin",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var job JobResponse
	decodeData(t, w, &job)
	assert.Equal(t, workflow.StateWorkInProgress.String(), job.Status)
	assert.Equal(t, workflow.StepWorkExecution.String(), job.CurrentStep)
}

func TestOverrideTransitionUnknownState(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/transition", created.ID), body{
		"target_state": "TELEPORTED",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppendNoteAndListEvents(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/notes", created.ID), body{
		"text": "client prefers morning visits",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/events", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []EventResponse
	decodeData(t, w, &events)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventNote.String(), events[0].Type)
	assert.Equal(t, "client prefers morning visits", events[0].Metadata["text"])
}

func TestListEventsUnknownStep(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d/events?step=bogus", created.ID), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordEventRejectsReservedType(t *testing.T) {
	server, svc, _ := newTestServer(t)
	created, err := svc.CreateJob(context.Background(), service.CreateJobInput{
		ClientName:  "Acme Facilities",
		ClientEmail: "ops@acme.example",
	}, service.Actor{})
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/events", created.ID), body{
		"type": "bogus",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsFiltersValidated(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/jobs?status=NOT_A_STATE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, server, http.MethodGet, "/api/v1/jobs?step=not_a_step", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	server, svc, _ := newTestServer(t)
	ctx := context.Background()

	first, err := svc.CreateJob(ctx, service.CreateJobInput{ClientName: "A", ClientEmail: "a@x.example"}, service.Actor{})
	require.NoError(t, err)
	second, err := svc.CreateJob(ctx, service.CreateJobInput{ClientName: "B", ClientEmail: "b@x.example"}, service.Actor{})
	require.NoError(t, err)
	_, err = svc.CreateJob(ctx, service.CreateJobInput{ClientName: "C", ClientEmail: "c@x.example"}, service.Actor{})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(ctx, first.ID, workflow.StateJobClosed, nil, service.Actor{}))
	require.NoError(t, svc.Transition(ctx, second.ID, workflow.StateAwaitingInfo, nil, service.Actor{}))

	w := doRequest(t, server, http.MethodGet, "/api/v1/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Total      int `json:"total"`
		Blocked    int `json:"blocked"`
		Closed     int `json:"closed"`
		InProgress int `json:"in_progress"`
	}
	decodeData(t, w, &stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Blocked)
	assert.Equal(t, 1, stats.Closed)
	assert.Equal(t, 1, stats.InProgress)
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's
// Context.Stream requires, which httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamChanges(t *testing.T) {
	server, _, changes := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/changes", nil).WithContext(ctx)
	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	go func() {
		<-ctx.Done()
		w.closed <- true
	}()

	done := make(chan struct{})
	go func() {
		server.Router().ServeHTTP(w, req)
		close(done)
	}()

	// Wait for the handler to subscribe before publishing.
	deadline := time.Now().Add(time.Second)
	for changes.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("stream handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	changes.Publish(bus.ChangeJobCreated)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event:change")
	assert.Contains(t, body, bus.ChangeJobCreated.String())
}

type body = map[string]any

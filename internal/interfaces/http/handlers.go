package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/jobflow/internal/application/bus"
	"github.com/fieldops/jobflow/internal/application/port"
	"github.com/fieldops/jobflow/internal/application/query"
	"github.com/fieldops/jobflow/internal/application/service"
	"github.com/fieldops/jobflow/internal/domain/entity"
	"github.com/fieldops/jobflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	jobService service.JobService
	changes    *bus.Bus
	config     ServerConfig
	logger     Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(jobService service.JobService, changes *bus.Bus, config ServerConfig, logger Logger) *Handlers {
	return &Handlers{
		jobService: jobService,
		changes:    changes,
		config:     config,
		logger:     logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// JobResponse represents a job in API responses. Progress and the step
// label are derived from the workflow taxonomy, never stored.
type JobResponse struct {
	ID           int64             `json:"id"`
	TenantID     string            `json:"tenant_id,omitempty"`
	ClientName   string            `json:"client_name"`
	ClientEmail  string            `json:"client_email"`
	ClientPhone  string            `json:"client_phone,omitempty"`
	SiteAddress  string            `json:"site_address,omitempty"`
	WorkOrderRef string            `json:"work_order_ref"`
	Status       string            `json:"status"`
	CurrentStep  string            `json:"current_step"`
	StepLabel    string            `json:"step_label"`
	Swimlane     string            `json:"swimlane"`
	Progress     int               `json:"progress"`
	Class        string            `json:"classification"`
	AssignedTo   []string          `json:"assigned_to,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	ScheduledFor *string           `json:"scheduled_for,omitempty"`
	DueDate      *string           `json:"due_date,omitempty"`
	Geofence     *entity.Geofence  `json:"geofence,omitempty"`
	VoiceNote    *entity.VoiceNote `json:"voice_note,omitempty"`
	Decision     *DecisionView     `json:"decision,omitempty"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// DecisionView is the pending decision at the job's current state
type DecisionView struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	YesHint  string `json:"yes_hint"`
	NoHint   string `json:"no_hint"`
}

// EventResponse represents an audit event in API responses
type EventResponse struct {
	ID         int64          `json:"id"`
	JobID      int64          `json:"job_id"`
	Type       string         `json:"type"`
	FromState  *string        `json:"from_state,omitempty"`
	ToState    *string        `json:"to_state,omitempty"`
	DecisionID string         `json:"decision_id,omitempty"`
	Outcome    *bool          `json:"outcome,omitempty"`
	StepID     string         `json:"step_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	ActorName  string         `json:"actor_name,omitempty"`
	Timestamp  string         `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// CreateJobRequest is the body for POST /api/v1/jobs
type CreateJobRequest struct {
	TenantID     string            `json:"tenant_id"`
	ClientName   string            `json:"client_name" binding:"required"`
	ClientEmail  string            `json:"client_email" binding:"required"`
	ClientPhone  string            `json:"client_phone"`
	SiteAddress  string            `json:"site_address"`
	WorkOrderRef string            `json:"work_order_ref"`
	Priority     string            `json:"priority"`
	AssignedTo   []string          `json:"assigned_to"`
	Notes        string            `json:"notes"`
	ScheduledFor *time.Time        `json:"scheduled_for"`
	DueDate      *time.Time        `json:"due_date"`
	Geofence     *entity.Geofence  `json:"geofence"`
	VoiceNote    *entity.VoiceNote `json:"voice_note"`
	ActorID      string            `json:"actor_id"`
	ActorName    string            `json:"actor_name"`
}

// DecisionRequest is the body for POST /api/v1/jobs/:id/decision
type DecisionRequest struct {
	Outcome   *bool  `json:"outcome" binding:"required"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
}

// TransitionRequest is the body for the administrative override
type TransitionRequest struct {
	TargetState string `json:"target_state" binding:"required"`
	ActorID     string `json:"actor_id"`
	ActorName   string `json:"actor_name"`
}

// NoteRequest is the body for POST /api/v1/jobs/:id/notes
type NoteRequest struct {
	Text      string `json:"text" binding:"required"`
	StepID    string `json:"step_id"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
}

// EventRequest is the body for POST /api/v1/jobs/:id/events
type EventRequest struct {
	Type      string         `json:"type" binding:"required"`
	Metadata  map[string]any `json:"metadata"`
	ActorID   string         `json:"actor_id"`
	ActorName string         `json:"actor_name"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// GetWorkflow handles GET /api/v1/workflow. The taxonomy is compiled
// in, so this endpoint serves the same payload for the process lifetime.
func (h *Handlers) GetWorkflow(c *gin.Context) {
	type stepView struct {
		ID       string   `json:"id"`
		Label    string   `json:"label"`
		Swimlane string   `json:"swimlane"`
		States   []string `json:"states"`
	}
	type decisionView struct {
		ID       string `json:"id"`
		State    string `json:"state"`
		Question string `json:"question"`
		YesState string `json:"yes_state"`
		NoState  string `json:"no_state"`
		YesHint  string `json:"yes_hint"`
		NoHint   string `json:"no_hint"`
	}

	steps := workflow.Steps()
	stepViews := make([]stepView, 0, len(steps))
	for _, s := range steps {
		states := make([]string, 0, len(s.States))
		for _, st := range s.States {
			states = append(states, st.String())
		}
		stepViews = append(stepViews, stepView{
			ID:       s.Step.String(),
			Label:    s.Label,
			Swimlane: string(s.Swimlane),
			States:   states,
		})
	}

	decisions := workflow.Decisions()
	decisionViews := make([]decisionView, 0, len(decisions))
	for _, d := range decisions {
		decisionViews = append(decisionViews, decisionView{
			ID:       d.ID,
			State:    d.State.String(),
			Question: d.Question,
			YesState: d.YesState.String(),
			NoState:  d.NoState.String(),
			YesHint:  d.YesHint,
			NoHint:   d.NoHint,
		})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"steps":     stepViews,
			"decisions": decisionViews,
		},
	})
}

// CreateJob handles POST /api/v1/jobs
func (h *Handlers) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	tenant := req.TenantID
	if tenant == "" {
		tenant = h.config.DefaultTenant
	}

	job, err := h.jobService.CreateJob(c.Request.Context(), service.CreateJobInput{
		TenantID:     tenant,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ClientPhone:  req.ClientPhone,
		SiteAddress:  req.SiteAddress,
		WorkOrderRef: req.WorkOrderRef,
		Priority:     req.Priority,
		AssignedTo:   req.AssignedTo,
		Notes:        req.Notes,
		ScheduledFor: req.ScheduledFor,
		DueDate:      req.DueDate,
		Geofence:     req.Geofence,
		VoiceNote:    req.VoiceNote,
	}, service.Actor{ID: req.ActorID, Name: req.ActorName})
	if err != nil {
		h.logger.Error("Failed to create job", "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: toJobResponse(job)})
}

// ListJobs handles GET /api/v1/jobs
func (h *Handlers) ListJobs(c *gin.Context) {
	filter := port.JobFilter{
		TenantID:   c.Query("tenant_id"),
		AssignedTo: c.Query("assigned_to"),
		Limit:      h.config.ListLimit,
	}

	for _, raw := range c.QueryArray("status") {
		state := workflow.State(raw)
		if !state.IsValid() {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown status: " + raw})
			return
		}
		filter.Statuses = append(filter.Statuses, state)
	}
	for _, raw := range c.QueryArray("step") {
		step := workflow.Step(raw)
		if !step.IsValid() {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown step: " + raw})
			return
		}
		filter.Steps = append(filter.Steps, step)
	}
	if raw := c.Query("priority"); raw != "" {
		if !entity.ValidPriority(raw) {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown priority: " + raw})
			return
		}
		filter.Priority = raw
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid limit"})
			return
		}
		if limit < filter.Limit {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid offset"})
			return
		}
		filter.Offset = offset
	}

	jobs, err := h.jobService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve jobs"})
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: responses})
}

// GetJob handles GET /api/v1/jobs/:id
func (h *Handlers) GetJob(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toJobResponse(job)})
}

// AnswerDecision handles POST /api/v1/jobs/:id/decision. The decision
// at the job's current state is resolved here; the service receives the
// already-resolved target so overrides and answers share one code path.
func (h *Handlers) AnswerDecision(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	decision, found := workflow.DecisionOf(job.Status)
	if !found {
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   "no decision available at state " + job.Status.String(),
		})
		return
	}

	target, err := workflow.ResolveTransition(job.Status, *req.Outcome)
	if err != nil {
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
		return
	}

	actor := service.Actor{ID: req.ActorID, Name: req.ActorName}
	outcome := service.DecisionOutcome{ID: decision.ID, Outcome: *req.Outcome}
	if err := h.jobService.Transition(c.Request.Context(), id, target, &outcome, actor); err != nil {
		h.logger.Error("Decision transition failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "transition failed"})
		return
	}

	job, err = h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toJobResponse(job)})
}

// OverrideTransition handles POST /api/v1/jobs/:id/transition. This is
// the administrative escape hatch: any valid state is reachable, and
// the audit event records a plain state change with no decision id.
func (h *Handlers) OverrideTransition(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	target := workflow.State(req.TargetState)
	if !target.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown state: " + req.TargetState})
		return
	}

	actor := service.Actor{ID: req.ActorID, Name: req.ActorName}
	if err := h.jobService.Transition(c.Request.Context(), id, target, nil, actor); err != nil {
		if errors.Is(err, port.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "job not found"})
			return
		}
		h.logger.Error("Override transition failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "transition failed"})
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: toJobResponse(job)})
}

// AppendNote handles POST /api/v1/jobs/:id/notes
func (h *Handlers) AppendNote(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	step := workflow.Step(req.StepID)
	if req.StepID != "" && !step.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown step: " + req.StepID})
		return
	}

	actor := service.Actor{ID: req.ActorID, Name: req.ActorName}
	if err := h.jobService.AppendNote(c.Request.Context(), id, req.Text, step, actor); err != nil {
		if errors.Is(err, port.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "job not found"})
			return
		}
		h.logger.Error("Failed to append note", "job_id", id, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true})
}

// RecordEvent handles POST /api/v1/jobs/:id/events
func (h *Handlers) RecordEvent(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	actor := service.Actor{ID: req.ActorID, Name: req.ActorName}
	err := h.jobService.RecordEvent(c.Request.Context(), id, entity.EventType(req.Type), req.Metadata, actor)
	if err != nil {
		if errors.Is(err, port.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, Response{Success: false, Error: "job not found"})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true})
}

// ListEvents handles GET /api/v1/jobs/:id/events. An optional step query
// parameter scopes the history to that step plus untagged events.
func (h *Handlers) ListEvents(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	step := workflow.Step(c.Query("step"))
	if step != "" && !step.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown step: " + step.String()})
		return
	}

	events, err := h.jobService.History(c.Request.Context(), id, step)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	responses := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		responses = append(responses, toEventResponse(ev))
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: responses})
}

// GetStats handles GET /api/v1/stats
func (h *Handlers) GetStats(c *gin.Context) {
	jobs, err := h.jobService.ListJobs(c.Request.Context(), port.JobFilter{
		TenantID: c.Query("tenant_id"),
	})
	if err != nil {
		h.logger.Error("Failed to list jobs for stats", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: query.Compute(jobs)})
}

// StreamChanges handles GET /api/v1/changes as a server-sent event
// stream. Each published change becomes one SSE message; the stream
// ends when the client disconnects or the bus closes.
func (h *Handlers) StreamChanges(c *gin.Context) {
	sub := h.changes.Subscribe()
	defer sub.Unsubscribe()

	c.Writer.Header().Set("Cache-Control", "no-cache")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case change, open := <-sub.Changes():
			if !open {
				return false
			}
			c.SSEvent("change", change.String())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *Handlers) jobID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid job ID"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) respondLookupError(c *gin.Context, id int64, err error) {
	if errors.Is(err, port.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "job not found"})
		return
	}
	h.logger.Error("Failed to load job", "job_id", id, "error", err)
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load job"})
}

// toJobResponse converts the domain aggregate to an API response,
// attaching derived progress and the pending decision if any.
func toJobResponse(job *entity.Job) JobResponse {
	resp := JobResponse{
		ID:           job.ID,
		TenantID:     job.TenantID,
		ClientName:   job.ClientName,
		ClientEmail:  job.ClientEmail,
		ClientPhone:  job.ClientPhone,
		SiteAddress:  job.SiteAddress,
		WorkOrderRef: job.WorkOrderRef,
		Status:       job.Status.String(),
		CurrentStep:  job.CurrentStep.String(),
		StepLabel:    job.CurrentStep.Label(),
		Swimlane:     string(job.CurrentStep.Lane()),
		Progress:     workflow.Progress(job.Status),
		Class:        string(job.Status.Classify()),
		AssignedTo:   job.AssignedTo,
		Notes:        job.Notes,
		Priority:     job.Priority,
		Geofence:     job.Geofence,
		VoiceNote:    job.VoiceNote,
		CreatedBy:    job.CreatedBy,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}

	if job.ScheduledFor != nil {
		s := job.ScheduledFor.Format(time.RFC3339)
		resp.ScheduledFor = &s
	}
	if job.DueDate != nil {
		s := job.DueDate.Format(time.RFC3339)
		resp.DueDate = &s
	}
	if d, found := workflow.DecisionOf(job.Status); found {
		resp.Decision = &DecisionView{
			ID:       d.ID,
			Question: d.Question,
			YesHint:  d.YesHint,
			NoHint:   d.NoHint,
		}
	}

	return resp
}

func toEventResponse(ev *entity.JobEvent) EventResponse {
	resp := EventResponse{
		ID:         ev.ID,
		JobID:      ev.JobID,
		Type:       ev.Type.String(),
		DecisionID: ev.DecisionID,
		Outcome:    ev.Outcome,
		StepID:     ev.StepID.String(),
		ActorID:    ev.ActorID,
		ActorName:  ev.ActorName,
		Timestamp:  ev.Timestamp.Format(time.RFC3339),
		Metadata:   ev.Metadata,
	}

	if ev.FromState != nil {
		s := ev.FromState.String()
		resp.FromState = &s
	}
	if ev.ToState != nil {
		s := ev.ToState.String()
		resp.ToState = &s
	}

	return resp
}

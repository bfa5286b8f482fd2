package entity

import (
	"time"

	"github.com/fieldops/jobflow/internal/domain/workflow"
)

// Job is the mutable aggregate root for a field-service job. Status and
// CurrentStep are owned exclusively by the mutation service; CurrentStep
// is always derived from Status and never set independently.
type Job struct {
	ID           int64          `json:"id"`
	TenantID     string         `json:"tenant_id"`
	ClientName   string         `json:"client_name"`
	ClientEmail  string         `json:"client_email"`
	ClientPhone  string         `json:"client_phone,omitempty"`
	SiteAddress  string         `json:"site_address,omitempty"`
	WorkOrderRef string         `json:"work_order_ref"`
	Status       workflow.State `json:"status"`
	CurrentStep  workflow.Step  `json:"current_step"`
	AssignedTo   []string       `json:"assigned_to,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Priority     string         `json:"priority,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	Geofence     *Geofence      `json:"geofence,omitempty"`
	VoiceNote    *VoiceNote     `json:"voice_note,omitempty"`
	CreatedBy    string         `json:"created_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Geofence is an optional site location sub-record
type Geofence struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusM   float64 `json:"radius_m,omitempty"`
}

// VoiceNote is an optional captured-audio sub-record. The engine stores
// the reference only; capture and transcription happen elsewhere.
type VoiceNote struct {
	FileName     string `json:"file_name"`
	DurationSecs int    `json:"duration_secs,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
}

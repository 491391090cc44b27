package models

import (
	"time"

	"github.com/google/uuid"
)

// Run represents one execution of the update pipeline, from trigger to
// terminal status. Mirrors the pipeline_runs table schema.
type Run struct {
	ID              int64        `db:"id" json:"id"`
	RunID           uuid.UUID    `db:"run_id" json:"run_id"`
	Trigger         string       `db:"trigger_kind" json:"trigger"`
	Status          string       `db:"status" json:"status"`
	Steps           []StepResult `db:"steps" json:"steps"` // stored as JSON
	ArtifactChanged bool         `db:"artifact_changed" json:"artifact_changed"`
	ArtifactWarning *string      `db:"artifact_warning" json:"artifact_warning,omitempty"` // advisory only
	CommitHash      *string      `db:"commit_hash" json:"commit_hash,omitempty"`           // set when a publish happened
	Error           *string      `db:"error" json:"error,omitempty"`
	StartedAt       time.Time    `db:"started_at" json:"started_at"`
	FinishedAt      *time.Time   `db:"finished_at" json:"finished_at,omitempty"` // nil until the run ends
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// StepResult records the outcome of a single pipeline step.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Duration returns the step duration as a time.Duration.
func (s StepResult) Duration() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

package models

/*
Run, step and trigger constants for use throughout the codebase.
Centralizing these avoids magic strings and improves maintainability.
*/

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// Step status constants
const (
	StepStatusOK      = "ok"
	StepStatusFailed  = "failed"
	StepStatusSkipped = "skipped"
)

// Trigger kind constants
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerPush     = "push"
)

// ValidTrigger reports whether s is a known trigger kind.
func ValidTrigger(s string) bool {
	switch s {
	case TriggerSchedule, TriggerManual, TriggerPush:
		return true
	}
	return false
}

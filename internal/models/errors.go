package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")

	ErrRunExists = errors.New("run already queued or active")
)

// Failure class constants. Every fatal pipeline error is tagged with the
// class of the step that produced it.
const (
	FailureClassSetup      = "setup"
	FailureClassSubprocess = "subprocess"
	FailureClassPublish    = "publish"
)

// StepError wraps a step failure with the step name and its failure class.
type StepError struct {
	Step  string
	Class string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s): %v", e.Step, e.Class, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailureClass extracts the failure class from err, or returns "" when err
// carries none.
func FailureClass(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Class
	}
	return ""
}

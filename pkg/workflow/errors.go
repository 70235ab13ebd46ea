package workflow

import (
	"errors"
	"fmt"
)

// Business rule rejections. They are reported through Result.Reason, never returned as errors.
var (
	// Not found.
	ErrWorkflowNotFound    = errors.New("workflow not found")
	ErrStepNotFound        = errors.New("step not found")
	ErrParticipantNotFound = errors.New("participant not found on step")
	ErrDocumentNotFound    = errors.New("document not found")

	// Idempotency guards.
	ErrAlreadyProcessed = errors.New("step already processed")
	ErrAlreadyResponded = errors.New("participant already responded")
	ErrAlreadyTerminal  = errors.New("workflow already finished")

	// Invalid state.
	ErrInvalidState              = errors.New("invalid workflow state")
	ErrNotAwaitingCorrection     = errors.New("step is not awaiting correction")
	ErrAwaitingCorrection        = errors.New("workflow is awaiting a correction")
	ErrStepNotCurrent            = errors.New("step is not the current step")
	ErrNotParallelStep           = errors.New("step is not a parallel step")
	ErrInvalidDecision           = errors.New("invalid decision")
	ErrDocumentHasActiveWorkflow = errors.New("document already has an active workflow")
	ErrNoSteps                   = errors.New("workflow must have at least one step")
)

// ErrConcurrentModification is returned when a commit kept losing the revision race.
var ErrConcurrentModification = errors.New("workflow modified concurrently")

// IsNotFound reports whether err is one of the not found rejections.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsConflict reports whether err guards an already applied or finished change.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrAlreadyResponded) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrDocumentHasActiveWorkflow) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsInvalidState reports whether err rejects an operation the workflow cannot accept in its current state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotAwaitingCorrection) ||
		errors.Is(err, ErrAwaitingCorrection) ||
		errors.Is(err, ErrStepNotCurrent) ||
		errors.Is(err, ErrNotParallelStep) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrNoSteps)
}

// Rejection attaches the workflow and step a business rule rejection applies to.
type Rejection struct {
	Op         string
	WorkflowID string
	StepID     string
	Err        error
}

func (e *Rejection) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s workflow %s step %s: %v", e.Op, e.WorkflowID, e.StepID, e.Err)
	}

	return fmt.Sprintf("%s workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *Rejection) Unwrap() error {
	return e.Err
}

func (e *Rejection) Is(target error) bool {
	return errors.Is(e.Err, target)
}

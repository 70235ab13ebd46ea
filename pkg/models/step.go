package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidTransition is returned when a step is moved to a status its current status cannot reach.
var ErrInvalidTransition = errors.New("invalid step transition")

// StepStatus is the state of a single step in a circuit.
type StepStatus string

const (
	StepStatusPending             StepStatus = "pending"
	StepStatusSent                StepStatus = "sent"
	StepStatusCompleted           StepStatus = "completed"
	StepStatusRejected            StepStatus = "rejected"
	StepStatusCorrectionRequested StepStatus = "correction_requested"
	StepStatusSkipped             StepStatus = "skipped"
)

// stepTransitions lists the statuses reachable from each status.
// correction_requested can only be rejected through cancellation.
var stepTransitions = map[StepStatus][]StepStatus{
	StepStatusPending: {
		StepStatusSent,
		StepStatusCompleted,
		StepStatusRejected,
		StepStatusCorrectionRequested,
		StepStatusSkipped,
	},
	StepStatusSent: {
		StepStatusCompleted,
		StepStatusRejected,
		StepStatusCorrectionRequested,
	},
	StepStatusCorrectionRequested: {
		StepStatusPending,
		StepStatusRejected,
	},
}

// CanTransition reports whether a step in status s may move to status to.
func (s StepStatus) CanTransition(to StepStatus) bool {
	return slices.Contains(stepTransitions[s], to)
}

// IsTerminal reports whether no further return can be accepted for the step.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusRejected || s == StepStatusSkipped
}

// IsOpen reports whether the step is waiting for its participant.
func (s StepStatus) IsOpen() bool {
	return s == StepStatusPending || s == StepStatusSent
}

// ParallelMode is the aggregation rule of a parallel step.
type ParallelMode string

const (
	// ParallelModeAll closes the step once every participant approved, or on the first rejection.
	ParallelModeAll ParallelMode = "all"
	// ParallelModeAny closes the step on the first approval, or once every participant rejected.
	ParallelModeAny ParallelMode = "any"
)

// ParallelParticipant is the sub-state of one participant of a parallel step.
// Status is one of pending, completed or rejected.
type ParallelParticipant struct {
	Participant Participant   `json:"participant"`
	Status      StepStatus    `json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Response    *StepResponse `json:"response,omitempty"`
}

// CorrectionEntry is one round of a correction loop.
type CorrectionEntry struct {
	RequestedAt time.Time   `json:"requested_at"`
	RequestedBy Participant `json:"requested_by"`
	Reason      string      `json:"reason,omitempty"`
	CorrectedAt *time.Time  `json:"corrected_at,omitempty"`
}

// WorkflowStep is one stage of a circuit.
// Order is a creation-time display hint and is never recomputed.
type WorkflowStep struct {
	ID           string        `json:"id"`
	Order        int           `json:"order"`
	Participant  Participant   `json:"participant"`
	Role         Role          `json:"role"`
	Status       StepStatus    `json:"status"`
	Instructions string        `json:"instructions,omitempty"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Response     *StepResponse `json:"response,omitempty"`
	PackageID    string        `json:"package_id,omitempty"`

	CorrectionCount   int               `json:"correction_count"`
	CorrectionHistory []CorrectionEntry `json:"correction_history,omitempty"`

	IsParallel           bool                   `json:"is_parallel,omitempty"`
	ParallelMode         ParallelMode           `json:"parallel_mode,omitempty"`
	ParallelParticipants []*ParallelParticipant `json:"parallel_participants,omitempty"`
}

// Transition moves the step to status to, enforcing the transition table.
func (s *WorkflowStep) Transition(to StepStatus) error {
	if !s.Status.CanTransition(to) {
		return fmt.Errorf("%w: step %s from %s to %s", ErrInvalidTransition, s.ID, s.Status, to)
	}

	s.Status = to

	return nil
}

// ParallelParticipant returns the parallel participant identified by email, or nil.
func (s *WorkflowStep) ParallelParticipant(email string) *ParallelParticipant {
	for _, pp := range s.ParallelParticipants {
		if pp.Participant.Matches(email) {
			return pp
		}
	}

	return nil
}

// ParallelProgress returns how many parallel participants responded out of the total.
func (s *WorkflowStep) ParallelProgress() (int, int) {
	responded := 0

	for _, pp := range s.ParallelParticipants {
		if pp.Status != StepStatusPending {
			responded++
		}
	}

	return responded, len(s.ParallelParticipants)
}

// ParallelOutcome aggregates the parallel sub-states. It returns pending while the step
// stays open, and completed or rejected once the mode's closing condition holds.
func (s *WorkflowStep) ParallelOutcome() StepStatus {
	var completed, rejected, pending int

	for _, pp := range s.ParallelParticipants {
		switch pp.Status {
		case StepStatusCompleted:
			completed++
		case StepStatusRejected:
			rejected++
		default:
			pending++
		}
	}

	if s.ParallelMode == ParallelModeAny {
		switch {
		case completed > 0:
			return StepStatusCompleted
		case pending == 0 && rejected > 0:
			return StepStatusRejected
		default:
			return StepStatusPending
		}
	}

	switch {
	case rejected > 0:
		return StepStatusRejected
	case pending == 0 && completed > 0:
		return StepStatusCompleted
	default:
		return StepStatusPending
	}
}

// Recipients returns the participants that must receive the step package.
func (s *WorkflowStep) Recipients() []Participant {
	if !s.IsParallel {
		return []Participant{s.Participant}
	}

	recipients := make([]Participant, 0, len(s.ParallelParticipants))
	for _, pp := range s.ParallelParticipants {
		if pp.Status == StepStatusPending {
			recipients = append(recipients, pp.Participant)
		}
	}

	return recipients
}

// LastCorrection returns the most recent correction history entry, or nil.
func (s *WorkflowStep) LastCorrection() *CorrectionEntry {
	if len(s.CorrectionHistory) == 0 {
		return nil
	}

	return &s.CorrectionHistory[len(s.CorrectionHistory)-1]
}

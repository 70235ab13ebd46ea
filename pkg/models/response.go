package models

import (
	"encoding/json"
	"time"
)

// Decision is the outcome a participant reports for a step.
type Decision string

const (
	DecisionApproved              Decision = "approved"
	DecisionRejected              Decision = "rejected"
	DecisionValidated             Decision = "validated"
	DecisionReviewed              Decision = "reviewed"
	DecisionModificationRequested Decision = "modification_requested"
)

// Valid reports whether the decision is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionValidated, DecisionReviewed, DecisionModificationRequested:
		return true
	default:
		return false
	}
}

// Positive reports whether the decision lets the circuit move forward.
func (d Decision) Positive() bool {
	return d == DecisionApproved || d == DecisionValidated || d == DecisionReviewed
}

// Annotation is a participant mark on the document.
type Annotation struct {
	ID        string     `json:"id"`
	Page      int        `json:"page,omitempty"`
	Type      string     `json:"type,omitempty"`
	Content   string     `json:"content,omitempty"`
	Author    string     `json:"author,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// RejectionDetails explains a rejection or a correction request.
type RejectionDetails struct {
	Reason   string   `json:"reason,omitempty"`
	Category string   `json:"category,omitempty"`
	Items    []string `json:"items,omitempty"`
}

// StepResponse is the decision payload recorded on a step once its participant acted.
// CompletedAt is the time the engine accepted the return; SubmittedAt is the time reported by the payload.
type StepResponse struct {
	Decision         Decision          `json:"decision"`
	Annotations      []Annotation      `json:"annotations"`
	GeneralComment   string            `json:"general_comment,omitempty"`
	Signature        string            `json:"signature,omitempty"`
	Initials         string            `json:"initials,omitempty"`
	RejectionDetails *RejectionDetails `json:"rejection_details,omitempty"`
	RespondedBy      Participant       `json:"responded_by"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	CompletedAt      time.Time         `json:"completed_at"`
	ReturnFile       json.RawMessage   `json:"return_file,omitempty"`
}

// ReturnFileData is a normalized return coming from a file import or the push-sync channel.
type ReturnFileData struct {
	WorkflowID       string            `json:"workflow_id"                 validate:"required"`
	StepID           string            `json:"step_id"                     validate:"required"`
	DocumentID       string            `json:"document_id,omitempty"`
	Decision         Decision          `json:"decision"                    validate:"required,oneof=approved rejected validated reviewed modification_requested"`
	Annotations      []Annotation      `json:"annotations,omitempty"`
	GeneralComment   string            `json:"general_comment,omitempty"`
	Signature        string            `json:"signature,omitempty"`
	Initials         string            `json:"initials,omitempty"`
	RejectionDetails *RejectionDetails `json:"rejection_details,omitempty"`
	CompletedAt      time.Time         `json:"completed_at"`
	Participant      Participant       `json:"participant"`

	// Raw is the payload as received, kept for audit.
	Raw json.RawMessage `json:"-"`
}

// Response builds the step response recorded for this return at time now.
func (d ReturnFileData) Response(now time.Time) *StepResponse {
	resp := &StepResponse{
		Decision:         d.Decision,
		Annotations:      d.Annotations,
		GeneralComment:   d.GeneralComment,
		Signature:        d.Signature,
		Initials:         d.Initials,
		RejectionDetails: d.RejectionDetails,
		RespondedBy:      d.Participant,
		CompletedAt:      now,
		ReturnFile:       d.Raw,
	}

	if resp.Annotations == nil {
		resp.Annotations = []Annotation{}
	}

	if !d.CompletedAt.IsZero() {
		submitted := d.CompletedAt
		resp.SubmittedAt = &submitted
	}

	return resp
}

// Reason returns the free-text reason given with a rejection or a correction request.
func (d ReturnFileData) Reason() string {
	if d.RejectionDetails != nil && d.RejectionDetails.Reason != "" {
		return d.RejectionDetails.Reason
	}

	return d.GeneralComment
}

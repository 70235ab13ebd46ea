package models

import "time"

// DocumentStatus mirrors the outcome of the document's workflow.
type DocumentStatus string

const (
	DocumentStatusDraft      DocumentStatus = "draft"
	DocumentStatusInProgress DocumentStatus = "in_progress"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusRejected   DocumentStatus = "rejected"
	DocumentStatusArchived   DocumentStatus = "archived"
)

// Document is the file being validated. A document has at most one active workflow, WorkflowID.
type Document struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"              validate:"required"`
	MimeType        string         `json:"mime_type"`
	Status          DocumentStatus `json:"status"`
	WorkflowID      string         `json:"workflow_id,omitempty"`
	Content         []byte         `json:"content,omitempty"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ContentPurgedAt *time.Time     `json:"content_purged_at,omitempty"`
}

// RetentionStatus is the state of a retention record.
type RetentionStatus string

const (
	RetentionStatusScheduled RetentionStatus = "scheduled"
	RetentionStatusDeleted   RetentionStatus = "deleted"
	RetentionStatusCancelled RetentionStatus = "cancelled"
)

// DocumentRetention schedules the deletion of a document's content after its workflow ended.
type DocumentRetention struct {
	ID           string          `json:"id"`
	DocumentID   string          `json:"document_id"`
	DocumentName string          `json:"document_name"`
	Status       RetentionStatus `json:"status"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	DeleteAt     time.Time       `json:"delete_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

// Due reports whether the content must be deleted at time now.
func (r *DocumentRetention) Due(now time.Time) bool {
	return r.Status == RetentionStatusScheduled && !r.DeleteAt.After(now)
}

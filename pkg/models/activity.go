package models

import "time"

// ActivityType identifies an entry of the audit trail.
type ActivityType string

const (
	ActivityWorkflowCreated           ActivityType = "workflow_created"
	ActivityWorkflowStarted           ActivityType = "workflow_started"
	ActivityWorkflowResumed           ActivityType = "workflow_resumed"
	ActivityStepSent                  ActivityType = "step_sent"
	ActivityStepCompleted             ActivityType = "step_completed"
	ActivityStepSkipped               ActivityType = "step_skipped"
	ActivityStepReturnedForCorrection ActivityType = "step_returned_for_correction"
	ActivityParallelResponseRecorded  ActivityType = "parallel_response_recorded"
	ActivityWorkflowCompleted         ActivityType = "workflow_completed"
	ActivityWorkflowRejected          ActivityType = "workflow_rejected"
	ActivityWorkflowCancelled         ActivityType = "workflow_cancelled"
	ActivityPackageGenerated          ActivityType = "package_generated"
	ActivityPackageUploaded           ActivityType = "package_uploaded"
	ActivityEmailSent                 ActivityType = "email_sent"
	ActivityEmailSkipped              ActivityType = "email_skipped"
	ActivityEmailFailed               ActivityType = "email_failed"
	ActivityAutoAdvanceSkipped        ActivityType = "auto_advance_skipped"
	ActivityAutoAdvanceFailed         ActivityType = "auto_advance_failed"
	ActivityRetentionScheduled        ActivityType = "retention_scheduled"
	ActivityRetentionCancelled        ActivityType = "retention_cancelled"
	ActivityDocumentContentDeleted    ActivityType = "document_content_deleted"
	ActivityReminderScheduled         ActivityType = "reminder_scheduled"
	ActivityReminderDue               ActivityType = "reminder_due"
)

// Activity is an append-only audit trail entry.
type Activity struct {
	ID          string         `json:"id"`
	Type        ActivityType   `json:"type"`
	Description string         `json:"description"`
	DocumentID  string         `json:"document_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ReminderKind tells which deadline reminder an entry is.
type ReminderKind string

const (
	ReminderDeadlineApproaching ReminderKind = "deadline_approaching"
	ReminderDeadlineDay         ReminderKind = "deadline_day"
)

// ReminderStatus is the delivery state of a reminder.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusDismissed ReminderStatus = "dismissed"
)

// Reminder is a deadline notification scheduled for a workflow.
type Reminder struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	DocumentID string         `json:"document_id"`
	Kind       ReminderKind   `json:"kind"`
	Status     ReminderStatus `json:"status"`
	DueAt      time.Time      `json:"due_at"`
	CreatedAt  time.Time      `json:"created_at"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
}

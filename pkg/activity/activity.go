// Package activity records the append-only audit trail of document workflows.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/eventbus"
	"github.com/dukex/signflow/pkg/events"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/google/uuid"
)

// Logger persists activity entries and mirrors them on the event bus.
type Logger struct {
	repository persistence.ActivityRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewLogger creates an activity logger. publisher may be nil.
func NewLogger(repository persistence.ActivityRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Logger {
	return &Logger{
		repository: repository,
		publisher:  publisher,
		logger:     logger.With("module", "activity"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Record appends the entry. Failures are logged and never reach the caller.
func (l *Logger) Record(ctx context.Context, activity models.Activity) {
	if activity.ID == "" {
		activity.ID = uuid.Must(uuid.NewV7()).String()
	}

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = l.now()
	}

	logger := l.logger.With("activity_type", activity.Type, "workflow_id", activity.WorkflowID)

	err := l.repository.Append(ctx, &activity)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist activity", "error", err)
	}

	if l.publisher == nil {
		return
	}

	event := events.ActivityRecorded{
		BaseEvent: events.NewBaseEvent(events.ActivityRecordedEvent, activity.WorkflowID),
		Activity:  activity,
	}

	err = l.publisher.Publish(ctx, activity.WorkflowID, event)
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish activity", "error", err)
	}
}

// New builds an activity entry for a workflow.
func New(activityType models.ActivityType, description string, workflow *models.Workflow, metadata map[string]any) models.Activity {
	entry := models.Activity{
		Type:        activityType,
		Description: description,
		Metadata:    metadata,
	}

	if workflow != nil {
		entry.WorkflowID = workflow.ID
		entry.DocumentID = workflow.DocumentID
	}

	return entry
}

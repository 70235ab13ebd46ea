// Package retention schedules and performs the deletion of document content once a workflow has ended.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/google/uuid"
)

// DefaultPeriod keeps content for thirty days after the workflow ended.
const DefaultPeriod = 30 * 24 * time.Hour

// ActivityRecorder appends audit trail entries.
type ActivityRecorder interface {
	Record(ctx context.Context, activity models.Activity)
}

// Scheduler creates retention records.
type Scheduler struct {
	repository persistence.RetentionRepository
	recorder   ActivityRecorder
	period     time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type SchedulerOption func(*Scheduler)

func WithPeriod(period time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if period > 0 {
			s.period = period
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

func NewScheduler(repository persistence.RetentionRepository, recorder ActivityRecorder, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		repository: repository,
		recorder:   recorder,
		period:     DefaultPeriod,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("module", "retention_scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScheduleRetention creates the retention record of a document. It does nothing while a deletion is
// already scheduled; a cancelled or completed record is scheduled again from now.
func (s *Scheduler) ScheduleRetention(ctx context.Context, documentID, documentName string) error {
	existing, err := s.repository.GetByDocumentID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to look up retention of document %s: %w", documentID, err)
	}

	if existing != nil && existing.Status == models.RetentionStatusScheduled {
		s.logger.DebugContext(ctx, "Retention already scheduled", "document_id", documentID, "delete_at", existing.DeleteAt)

		return nil
	}

	retention := existing
	if retention == nil {
		retention = &models.DocumentRetention{
			ID:         uuid.Must(uuid.NewV7()).String(),
			DocumentID: documentID,
		}
	}

	now := s.now()
	retention.DocumentName = documentName
	retention.Status = models.RetentionStatusScheduled
	retention.ScheduledAt = now
	retention.DeleteAt = now.Add(s.period)
	retention.DeletedAt = nil

	err = s.repository.Save(ctx, retention)
	if err != nil {
		return fmt.Errorf("failed to save retention of document %s: %w", documentID, err)
	}

	s.recorder.Record(ctx, models.Activity{
		Type:        models.ActivityRetentionScheduled,
		Description: fmt.Sprintf("Content of %s scheduled for deletion on %s", documentName, retention.DeleteAt.Format(time.DateOnly)),
		DocumentID:  documentID,
		Metadata:    map[string]any{"delete_at": retention.DeleteAt},
	})

	return nil
}

// CancelRetention withdraws the scheduled deletion of a document. It does nothing when none is scheduled.
func (s *Scheduler) CancelRetention(ctx context.Context, documentID string) error {
	existing, err := s.repository.GetByDocumentID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to look up retention of document %s: %w", documentID, err)
	}

	if existing == nil || existing.Status != models.RetentionStatusScheduled {
		return nil
	}

	return cancel(ctx, s.repository, s.recorder, existing)
}

func cancel(ctx context.Context, repository persistence.RetentionRepository, recorder ActivityRecorder, retention *models.DocumentRetention) error {
	retention.Status = models.RetentionStatusCancelled

	err := repository.Save(ctx, retention)
	if err != nil {
		return fmt.Errorf("failed to cancel retention of document %s: %w", retention.DocumentID, err)
	}

	recorder.Record(ctx, models.Activity{
		Type:        models.ActivityRetentionCancelled,
		Description: fmt.Sprintf("Deletion of %s cancelled, the document is in use again", retention.DocumentName),
		DocumentID:  retention.DocumentID,
	})

	return nil
}

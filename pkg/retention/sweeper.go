package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/dukex/signflow/pkg/storage"
)

var errDocumentReattached = errors.New("document attached to another workflow")

// PackageDeleter removes hosted participant packages.
type PackageDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Sweeper deletes the content of documents whose retention is due.
type Sweeper struct {
	persistence persistence.Persistence
	packages    PackageDeleter
	recorder    ActivityRecorder
	now         func() time.Time
	logger      *slog.Logger
}

// NewSweeper creates a sweeper. packages may be nil when no hosted store is configured.
func NewSweeper(p persistence.Persistence, packages PackageDeleter, recorder ActivityRecorder, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		persistence: p,
		packages:    packages,
		recorder:    recorder,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("module", "retention_sweeper"),
	}
}

func (s *Sweeper) Name() string {
	return "retention_sweep"
}

func (s *Sweeper) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)

	return err
}

// Sweep processes every due retention record and returns how many documents were purged.
// A record whose purge fails stays scheduled and is retried on the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.persistence.RetentionRepository().FindDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due retention: %w", err)
	}

	purged := 0

	for _, retention := range due {
		logger := s.logger.With("document_id", retention.DocumentID)

		attached, active, err := s.attachedWorkflow(ctx, retention.DocumentID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to check document workflow", "error", err)

			continue
		}

		deleted := 0
		if !active {
			deleted, err = s.purge(ctx, retention, attached, now)
		}

		if active || errors.Is(err, errDocumentReattached) {
			logger.InfoContext(ctx, "Document is attached to a running workflow, cancelling retention")

			if err := cancel(ctx, s.persistence.RetentionRepository(), s.recorder, retention); err != nil {
				logger.ErrorContext(ctx, "Failed to cancel retention", "error", err)
			}

			continue
		}

		if err != nil {
			logger.ErrorContext(ctx, "Failed to purge document content", "error", err)

			continue
		}

		purged++

		s.recorder.Record(ctx, models.Activity{
			Type:        models.ActivityDocumentContentDeleted,
			Description: fmt.Sprintf("Content of %s deleted after its retention period", retention.DocumentName),
			DocumentID:  retention.DocumentID,
			Metadata:    map[string]any{"packages_deleted": deleted},
		})
	}

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "Retention sweep finished", "due", len(due), "purged", purged)
	}

	return purged, nil
}

// attachedWorkflow returns the workflow the document is attached to and whether it is still running.
func (s *Sweeper) attachedWorkflow(ctx context.Context, documentID string) (string, bool, error) {
	document, err := s.persistence.DocumentRepository().GetByID(ctx, documentID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load document: %w", err)
	}

	if document == nil || document.WorkflowID == "" {
		return "", false, nil
	}

	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, document.WorkflowID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load workflow %s: %w", document.WorkflowID, err)
	}

	return document.WorkflowID, workflow != nil && !workflow.IsTerminal(), nil
}

// purge deletes the hosted packages of ended workflows and the document content. It fails with
// errDocumentReattached when the document moved to another workflow since attached was read.
func (s *Sweeper) purge(ctx context.Context, retention *models.DocumentRetention, attached string, now time.Time) (int, error) {
	deleted, err := s.deletePackages(ctx, retention.DocumentID)
	if err != nil {
		return deleted, err
	}

	reattached := false

	_, err = s.persistence.DocumentRepository().Update(ctx, retention.DocumentID, func(document *models.Document) bool {
		if document.WorkflowID != attached {
			reattached = true

			return false
		}

		if document.ContentPurgedAt != nil {
			return false
		}

		document.Content = nil
		document.ContentPurgedAt = &now

		return true
	})
	if err != nil {
		return deleted, fmt.Errorf("failed to purge document: %w", err)
	}

	if reattached {
		return deleted, errDocumentReattached
	}

	retention.Status = models.RetentionStatusDeleted
	retention.DeletedAt = &now

	if err := s.persistence.RetentionRepository().Save(ctx, retention); err != nil {
		return deleted, fmt.Errorf("failed to mark retention deleted: %w", err)
	}

	return deleted, nil
}

func (s *Sweeper) deletePackages(ctx context.Context, documentID string) (int, error) {
	if s.packages == nil {
		return 0, nil
	}

	workflows, err := s.persistence.WorkflowRepository().FindByDocumentID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load workflows: %w", err)
	}

	deleted := 0

	for _, workflow := range workflows {
		if !workflow.IsTerminal() {
			continue
		}

		for _, key := range workflow.StoragePackageIDs {
			err := s.packages.Delete(ctx, key)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return deleted, fmt.Errorf("failed to delete package %s: %w", key, err)
			}

			deleted++
		}
	}

	return deleted, nil
}

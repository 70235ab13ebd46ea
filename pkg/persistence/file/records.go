package file

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/dukex/signflow/pkg/models"
)

// ParticipantRepository stores one file per participant, named after the normalized email.
type ParticipantRepository struct {
	dir string
}

func participantFile(email string) string {
	return url.PathEscape(models.NormalizeEmail(email))
}

func (pr *ParticipantRepository) GetByEmail(_ context.Context, email string) (*models.ParticipantRecord, error) {
	path, err := recordPath(pr.dir, participantFile(email))
	if err != nil {
		return nil, err
	}

	record, err := readJSON[models.ParticipantRecord](path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch participant %s: %w", email, err)
	}

	return record, nil
}

func (pr *ParticipantRepository) GetAll(_ context.Context) ([]*models.ParticipantRecord, error) {
	records, err := readDir[models.ParticipantRecord](pr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UsageCount > records[j].UsageCount
	})

	return records, nil
}

func (pr *ParticipantRepository) Save(_ context.Context, record *models.ParticipantRecord) error {
	path, err := recordPath(pr.dir, participantFile(record.Email))
	if err != nil {
		return err
	}

	if err := writeJSON(path, record); err != nil {
		return fmt.Errorf("failed to save participant %s: %w", record.Email, err)
	}

	return nil
}

// ActivityRepository appends one file per audit entry.
type ActivityRepository struct {
	dir string
}

func (ar *ActivityRepository) Append(_ context.Context, activity *models.Activity) error {
	path, err := recordPath(ar.dir, activity.ID)
	if err != nil {
		return err
	}

	if err := writeJSON(path, activity); err != nil {
		return fmt.Errorf("failed to append activity %s: %w", activity.ID, err)
	}

	return nil
}

func (ar *ActivityRepository) FindByWorkflowID(_ context.Context, workflowID string) ([]*models.Activity, error) {
	return ar.filter(func(a *models.Activity) bool { return a.WorkflowID == workflowID })
}

func (ar *ActivityRepository) FindByDocumentID(_ context.Context, documentID string) ([]*models.Activity, error) {
	return ar.filter(func(a *models.Activity) bool { return a.DocumentID == documentID })
}

func (ar *ActivityRepository) filter(keep func(*models.Activity) bool) ([]*models.Activity, error) {
	all, err := readDir[models.Activity](ar.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	activities := make([]*models.Activity, 0)

	for _, a := range all {
		if keep(a) {
			activities = append(activities, a)
		}
	}

	// ids are time-ordered, they break ties between entries of the same instant
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].ID < activities[j].ID
		}

		return activities[i].CreatedAt.Before(activities[j].CreatedAt)
	})

	return activities, nil
}

// RetentionRepository stores one file per document.
type RetentionRepository struct {
	dir string
}

func (rr *RetentionRepository) GetByDocumentID(_ context.Context, documentID string) (*models.DocumentRetention, error) {
	path, err := recordPath(rr.dir, documentID)
	if err != nil {
		return nil, err
	}

	retention, err := readJSON[models.DocumentRetention](path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch retention for document %s: %w", documentID, err)
	}

	return retention, nil
}

func (rr *RetentionRepository) Save(_ context.Context, retention *models.DocumentRetention) error {
	path, err := recordPath(rr.dir, retention.DocumentID)
	if err != nil {
		return err
	}

	if err := writeJSON(path, retention); err != nil {
		return fmt.Errorf("failed to save retention for document %s: %w", retention.DocumentID, err)
	}

	return nil
}

func (rr *RetentionRepository) FindDue(_ context.Context, now time.Time) ([]*models.DocumentRetention, error) {
	all, err := readDir[models.DocumentRetention](rr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load retention records: %w", err)
	}

	due := make([]*models.DocumentRetention, 0)

	for _, r := range all {
		if r.Due(now) {
			due = append(due, r)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].DeleteAt.Before(due[j].DeleteAt) })

	return due, nil
}

// ReminderRepository stores one file per reminder.
type ReminderRepository struct {
	dir string
}

func (rr *ReminderRepository) Save(_ context.Context, reminder *models.Reminder) error {
	path, err := recordPath(rr.dir, reminder.ID)
	if err != nil {
		return err
	}

	if err := writeJSON(path, reminder); err != nil {
		return fmt.Errorf("failed to save reminder %s: %w", reminder.ID, err)
	}

	return nil
}

func (rr *ReminderRepository) FindByWorkflowID(_ context.Context, workflowID string) ([]*models.Reminder, error) {
	return rr.filter(func(r *models.Reminder) bool { return r.WorkflowID == workflowID })
}

func (rr *ReminderRepository) FindDue(_ context.Context, now time.Time) ([]*models.Reminder, error) {
	return rr.filter(func(r *models.Reminder) bool {
		return r.Status == models.ReminderStatusPending && !r.DueAt.After(now)
	})
}

func (rr *ReminderRepository) filter(keep func(*models.Reminder) bool) ([]*models.Reminder, error) {
	all, err := readDir[models.Reminder](rr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}

	reminders := make([]*models.Reminder, 0)

	for _, r := range all {
		if keep(r) {
			reminders = append(reminders, r)
		}
	}

	sort.Slice(reminders, func(i, j int) bool { return reminders[i].DueAt.Before(reminders[j].DueAt) })

	return reminders, nil
}

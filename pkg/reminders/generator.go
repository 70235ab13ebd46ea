// Package reminders schedules and delivers workflow deadline reminders.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/activity"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/google/uuid"
)

// DefaultLeadDays is how many days before the deadline the first reminder is due.
const DefaultLeadDays = 2

// ActivityRecorder appends audit trail entries.
type ActivityRecorder interface {
	Record(ctx context.Context, activity models.Activity)
}

// Generator creates the reminders of a workflow with a deadline.
type Generator struct {
	repository persistence.ReminderRepository
	recorder   ActivityRecorder
	leadDays   int
	now        func() time.Time
	logger     *slog.Logger
}

func NewGenerator(repository persistence.ReminderRepository, recorder ActivityRecorder, leadDays int, logger *slog.Logger) *Generator {
	if leadDays <= 0 {
		leadDays = DefaultLeadDays
	}

	return &Generator{
		repository: repository,
		recorder:   recorder,
		leadDays:   leadDays,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("module", "reminder_generator"),
	}
}

// startOfDay returns midnight of t in t's location.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// Plan returns the reminders due for deadline, in due order, dropping those already in the past.
func (g *Generator) Plan(workflow *models.Workflow) []*models.Reminder {
	if workflow.Deadline == nil {
		return nil
	}

	now := g.now()
	deadlineDay := startOfDay(*workflow.Deadline)

	candidates := []struct {
		kind  models.ReminderKind
		dueAt time.Time
	}{
		{models.ReminderDeadlineApproaching, deadlineDay.AddDate(0, 0, -g.leadDays)},
		{models.ReminderDeadlineDay, deadlineDay},
	}

	planned := make([]*models.Reminder, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.dueAt.Before(startOfDay(now)) {
			continue
		}

		planned = append(planned, &models.Reminder{
			ID:         uuid.Must(uuid.NewV7()).String(),
			WorkflowID: workflow.ID,
			DocumentID: workflow.DocumentID,
			Kind:       candidate.kind,
			Status:     models.ReminderStatusPending,
			DueAt:      candidate.dueAt,
			CreatedAt:  now,
		})
	}

	return planned
}

// GenerateWorkflowReminders stores the planned reminders of the workflow.
func (g *Generator) GenerateWorkflowReminders(ctx context.Context, workflow *models.Workflow) error {
	for _, reminder := range g.Plan(workflow) {
		if err := g.repository.Save(ctx, reminder); err != nil {
			return fmt.Errorf("failed to save %s reminder of workflow %s: %w", reminder.Kind, workflow.ID, err)
		}

		g.recorder.Record(ctx, activity.New(models.ActivityReminderScheduled,
			fmt.Sprintf("Reminder %s scheduled for %s", reminder.Kind, reminder.DueAt.Format(time.DateOnly)),
			workflow, map[string]any{"kind": reminder.Kind, "due_at": reminder.DueAt}))
	}

	return nil
}

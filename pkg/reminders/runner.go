package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/activity"
	"github.com/dukex/signflow/pkg/mailer"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
)

// Runner delivers due reminders.
type Runner struct {
	persistence persistence.Persistence
	mailer      mailer.Mailer
	recorder    ActivityRecorder
	now         func() time.Time
	logger      *slog.Logger
}

// NewRunner creates a runner. m may be nil, in which case reminders are only logged.
func NewRunner(p persistence.Persistence, m mailer.Mailer, recorder ActivityRecorder, logger *slog.Logger) *Runner {
	return &Runner{
		persistence: p,
		mailer:      m,
		recorder:    recorder,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("module", "reminder_runner"),
	}
}

func (r *Runner) Name() string {
	return "reminders"
}

func (r *Runner) Run(ctx context.Context) error {
	_, err := r.Deliver(ctx)

	return err
}

// Deliver handles every due reminder and returns how many were sent.
// Reminders of finished workflows are dismissed.
func (r *Runner) Deliver(ctx context.Context) (int, error) {
	now := r.now()

	due, err := r.persistence.ReminderRepository().FindDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due reminders: %w", err)
	}

	sent := 0

	for _, reminder := range due {
		delivered, err := r.deliver(ctx, reminder, now)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to deliver reminder", "reminder_id", reminder.ID, "error", err)

			continue
		}

		if delivered {
			sent++
		}
	}

	return sent, nil
}

func (r *Runner) deliver(ctx context.Context, reminder *models.Reminder, now time.Time) (bool, error) {
	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, reminder.WorkflowID)
	if err != nil {
		return false, fmt.Errorf("failed to load workflow: %w", err)
	}

	if workflow == nil || workflow.IsTerminal() {
		reminder.Status = models.ReminderStatusDismissed

		return false, r.persistence.ReminderRepository().Save(ctx, reminder)
	}

	step := workflow.CurrentStep()

	metadata := map[string]any{"kind": reminder.Kind, "reminder_id": reminder.ID}
	if step != nil {
		metadata["step_id"] = step.ID
	}

	r.recorder.Record(ctx, activity.New(models.ActivityReminderDue,
		fmt.Sprintf("Reminder %s for %s", reminder.Kind, workflow.Name), workflow, metadata))

	if r.mailer != nil && step != nil && !workflow.AwaitingCorrection {
		r.notify(ctx, workflow, step, reminder)
	}

	reminder.Status = models.ReminderStatusSent
	reminder.SentAt = &now

	return true, r.persistence.ReminderRepository().Save(ctx, reminder)
}

// notify emails the participants still expected on step. Delivery failures are only logged.
func (r *Runner) notify(ctx context.Context, workflow *models.Workflow, step *models.WorkflowStep, reminder *models.Reminder) {
	deadline := ""
	if workflow.Deadline != nil {
		deadline = workflow.Deadline.Format(time.DateOnly)
	}

	for _, participant := range step.Recipients() {
		err := r.mailer.Send(ctx, mailer.Message{
			ToName:  participant.Name,
			ToEmail: participant.Email,
			Subject: fmt.Sprintf("Reminder: %s is due %s", workflow.Name, deadline),
			Body:    fmt.Sprintf("Your %s decision on %s is expected by %s.", step.Role, workflow.Name, deadline),
			Params:  map[string]string{"reminder_kind": string(reminder.Kind)},
		})
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to email reminder", "workflow_id", workflow.ID, "to", participant.Email, "error", err)
		}
	}
}

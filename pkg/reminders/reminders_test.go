package reminders

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/signflow/pkg/mailer"
	"github.com/dukex/signflow/pkg/mocks"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence/file"
	"github.com/dukex/signflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func withDeadline(deadline time.Time) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Deadline = &deadline
	}
}

func TestGenerator_Plan(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(nil, nil, 3, slog.Default())
	generator.now = func() time.Time { return now }

	deadline := time.Date(2026, time.March, 10, 17, 30, 0, 0, time.UTC)
	workflow := testutil.CreateTestWorkflow("doc-1", nil, withDeadline(deadline))

	planned := generator.Plan(workflow)
	require.Len(t, planned, 2)

	assert.Equal(t, models.ReminderDeadlineApproaching, planned[0].Kind)
	assert.Equal(t, time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC), planned[0].DueAt)
	assert.Equal(t, models.ReminderDeadlineDay, planned[1].Kind)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), planned[1].DueAt)
	assert.Equal(t, models.ReminderStatusPending, planned[0].Status)
	assert.Equal(t, workflow.ID, planned[1].WorkflowID)
}

func TestGenerator_PlanDropsPastReminders(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(nil, nil, 0, slog.Default())
	generator.now = func() time.Time { return now }

	tomorrow := testutil.CreateTestWorkflow("doc-1", nil, withDeadline(now.AddDate(0, 0, 1)))
	planned := generator.Plan(tomorrow)
	require.Len(t, planned, 1)
	assert.Equal(t, models.ReminderDeadlineDay, planned[0].Kind)

	past := testutil.CreateTestWorkflow("doc-1", nil, withDeadline(now.AddDate(0, 0, -1)))
	assert.Empty(t, generator.Plan(past))

	assert.Empty(t, generator.Plan(testutil.CreateTestWorkflow("doc-1", nil)))
}

func TestGenerator_GenerateWorkflowReminders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	sink := &testutil.ActivitySink{}

	generator := NewGenerator(p.ReminderRepository(), sink, 2, slog.Default())
	generator.now = func() time.Time { return now }

	workflow := testutil.CreateTestWorkflow("doc-1", nil, withDeadline(now.AddDate(0, 0, 5)))
	require.NoError(t, generator.GenerateWorkflowReminders(ctx, workflow))

	stored, err := p.ReminderRepository().FindByWorkflowID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, []models.ActivityType{models.ActivityReminderScheduled, models.ActivityReminderScheduled}, sink.Types())

	scheduled, ok := sink.Find(models.ActivityReminderScheduled)
	require.True(t, ok)
	assert.Equal(t, workflow.ID, scheduled.WorkflowID)
	assert.Equal(t, "doc-1", scheduled.DocumentID)
}

func TestGenerator_GenerateWorkflowRemindersPropagatesErrors(t *testing.T) {
	t.Parallel()

	repository := &mocks.MockReminderRepository{}
	repository.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	generator := NewGenerator(repository, &testutil.ActivitySink{}, 2, slog.Default())
	generator.now = func() time.Time { return now }

	workflow := testutil.CreateTestWorkflow("doc-1", nil, withDeadline(now.AddDate(0, 0, 5)))
	require.Error(t, generator.GenerateWorkflowReminders(context.Background(), workflow))
}

func seedReminder(t *testing.T, p *file.Persistence, workflow *models.Workflow) *models.Reminder {
	t.Helper()

	ctx := context.Background()

	if workflow != nil {
		require.NoError(t, p.CommitWorkflow(ctx, workflow, nil))
	}

	workflowID := "missing"
	if workflow != nil {
		workflowID = workflow.ID
	}

	reminder := &models.Reminder{
		ID:         "rem-" + workflowID,
		WorkflowID: workflowID,
		DocumentID: "doc-1",
		Kind:       models.ReminderDeadlineDay,
		Status:     models.ReminderStatusPending,
		DueAt:      now.Add(-time.Hour),
		CreatedAt:  now.Add(-48 * time.Hour),
	}
	require.NoError(t, p.ReminderRepository().Save(ctx, reminder))

	return reminder
}

func TestRunner_Deliver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	sink := &testutil.ActivitySink{}
	m := &mocks.MockMailer{}

	active := testutil.CreateTestWorkflow("doc-1", []*models.WorkflowStep{
		testutil.CreateTestStep(1, testutil.WithParallel(models.ParallelModeAll, "alice", "bob")),
	}, withDeadline(now))
	active.Steps[0].ParallelParticipants[0].Status = models.StepStatusCompleted

	finished := testutil.CreateTestWorkflow("doc-2", []*models.WorkflowStep{testutil.CreateTestStep(1)})
	finished.Terminate(models.WorkflowStatusCompleted, now)

	activeReminder := seedReminder(t, p, active)
	finishedReminder := seedReminder(t, p, finished)
	orphan := seedReminder(t, p, nil)

	m.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
		return msg.ToEmail == "bob@example.com"
	})).Return(nil).Once()

	runner := NewRunner(p, m, sink, slog.Default())
	runner.now = func() time.Time { return now }

	sent, err := runner.Deliver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	m.AssertExpectations(t)

	reminders, err := p.ReminderRepository().FindByWorkflowID(ctx, active.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, models.ReminderStatusSent, reminders[0].Status)
	assert.Equal(t, activeReminder.ID, reminders[0].ID)
	require.NotNil(t, reminders[0].SentAt)

	for _, workflowID := range []string{finishedReminder.WorkflowID, orphan.WorkflowID} {
		dismissed, err := p.ReminderRepository().FindByWorkflowID(ctx, workflowID)
		require.NoError(t, err)
		require.Len(t, dismissed, 1)
		assert.Equal(t, models.ReminderStatusDismissed, dismissed[0].Status)
	}

	assert.Equal(t, []models.ActivityType{models.ActivityReminderDue}, sink.Types())

	sent, err = runner.Deliver(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestRunner_MailFailureStillMarksSent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	m := &mocks.MockMailer{}
	m.On("Send", mock.Anything, mock.Anything).Return(errors.New("quota exceeded"))

	workflow := testutil.CreateTestWorkflow("doc-1", []*models.WorkflowStep{testutil.CreateTestStep(1)})
	seedReminder(t, p, workflow)

	runner := NewRunner(p, m, &testutil.ActivitySink{}, slog.Default())
	runner.now = func() time.Time { return now }

	require.NoError(t, runner.Run(ctx))

	reminders, err := p.ReminderRepository().FindByWorkflowID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderStatusSent, reminders[0].Status)
	assert.Equal(t, "reminders", runner.Name())
}

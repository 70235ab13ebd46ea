package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/testutil"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelWorkflow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, document := h.seed(t,
		testutil.CreateTestStep(1, testutil.WithStatus(models.StepStatusCompleted)),
		testutil.CreateTestStep(2, testutil.WithStatus(models.StepStatusSkipped)),
		testutil.CreateTestStep(3, testutil.WithStatus(models.StepStatusSent)),
		testutil.CreateTestStep(4),
	)

	result, err := h.engine.CancelWorkflow(ctx, wf.ID, "owner@example.com", "contract withdrawn")
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	require.NotNil(t, result.Workflow)

	stored := h.load(t, wf.ID)
	assert.Equal(t, models.WorkflowStatusCancelled, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	require.NotNil(t, stored.CancelledAt)
	assert.Equal(t, t0, *stored.CompletedAt)
	assert.Equal(t, "owner@example.com", stored.CancelledBy)
	assert.Equal(t, "contract withdrawn", stored.CancellationReason)

	assert.Equal(t, []models.StepStatus{
		models.StepStatusCompleted,
		models.StepStatusSkipped,
		models.StepStatusRejected,
		models.StepStatusRejected,
	}, []models.StepStatus{stored.Steps[0].Status, stored.Steps[1].Status, stored.Steps[2].Status, stored.Steps[3].Status})

	assert.Equal(t, models.DocumentStatusRejected, h.document(t, document.ID).Status)
	assert.Empty(t, h.retention.scheduled())
	assert.Equal(t, []models.ActivityType{models.ActivityWorkflowCancelled}, h.sink.Types())

	h.clock.Advance(time.Hour)

	result, err = h.engine.CancelWorkflow(ctx, wf.ID, "", "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.ErrorIs(t, result.Reason, workflow.ErrAlreadyTerminal)
	assert.Equal(t, t0, *h.load(t, wf.ID).CompletedAt)
}

func TestCancelWorkflow_DuringCorrection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, _ := h.seed(t, testutil.CreateTestStep(1))

	result, err := h.engine.ProcessReturn(ctx, wf.ID, returnFor(wf, 0, models.DecisionModificationRequested))
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = h.engine.CancelWorkflow(ctx, wf.ID, "", "")
	require.NoError(t, err)
	require.True(t, result.Success)

	stored := h.load(t, wf.ID)
	assert.Equal(t, models.StepStatusRejected, stored.Steps[0].Status)
	assert.False(t, stored.AwaitingCorrection)
}

func TestMarkStepAsSent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, _ := h.seed(t, testutil.CreateTestStep(1), testutil.CreateTestStep(2))
	stepID := wf.Steps[0].ID

	result, err := h.engine.MarkStepAsSent(ctx, wf.ID, stepID, "pkg-1")
	require.NoError(t, err)
	require.True(t, result.Success)

	sent := h.load(t, wf.ID)
	require.NotNil(t, sent.Steps[0].SentAt)
	assert.Equal(t, models.StepStatusSent, sent.Steps[0].Status)
	assert.Equal(t, "pkg-1", sent.Steps[0].PackageID)
	assert.Equal(t, []string{"pkg-1"}, sent.StoragePackageIDs)

	h.clock.Advance(time.Minute)

	result, err = h.engine.MarkStepAsSent(ctx, wf.ID, stepID, "pkg-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, sent, h.load(t, wf.ID))
	assert.Equal(t, []models.ActivityType{models.ActivityStepSent}, h.sink.Types())

	result, err = h.engine.ProcessReturn(ctx, wf.ID, returnFor(wf, 0, models.DecisionApproved))
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = h.engine.MarkStepAsSent(ctx, wf.ID, stepID, "pkg-2")
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrAlreadyProcessed)
}

func TestSkipStep(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, document := h.seed(t, testutil.CreateTestStep(1), testutil.CreateTestStep(2), testutil.CreateTestStep(3))

	result, err := h.engine.SkipStep(ctx, wf.ID, wf.Steps[1].ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	h.engine.Wait()
	assert.Zero(t, h.advancer.count())

	stored := h.load(t, wf.ID)
	assert.Equal(t, models.StepStatusSkipped, stored.Steps[1].Status)
	assert.Equal(t, 0, stored.CurrentStepIndex)
	assert.Equal(t, 2, stored.Steps[1].Order)

	result, err = h.engine.SkipStep(ctx, wf.ID, wf.Steps[0].ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	h.engine.Wait()

	stored = h.load(t, wf.ID)
	assert.Equal(t, 2, stored.CurrentStepIndex)
	assert.Equal(t, 1, h.advancer.count())

	result, err = h.engine.SkipStep(ctx, wf.ID, wf.Steps[1].ID)
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrAlreadyProcessed)

	result, err = h.engine.SkipStep(ctx, wf.ID, wf.Steps[2].ID)
	require.NoError(t, err)
	require.True(t, result.Success)

	stored = h.load(t, wf.ID)
	assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
	assert.Equal(t, models.DocumentStatusCompleted, h.document(t, document.ID).Status)
}

func TestSkipStep_RejectsSentStep(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	wf, _ := h.seed(t, testutil.CreateTestStep(1, testutil.WithStatus(models.StepStatusSent)))

	result, err := h.engine.SkipStep(context.Background(), wf.ID, wf.Steps[0].ID)
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrInvalidState)
}

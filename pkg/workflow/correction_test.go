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

func TestCorrectionLoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, document := h.seed(t, testutil.CreateTestStep(1), testutil.CreateTestStep(2), testutil.CreateTestStep(3))

	result, err := h.engine.ProcessReturn(ctx, wf.ID, returnFor(wf, 0, models.DecisionApproved))
	require.NoError(t, err)
	require.True(t, result.Success)

	data := returnFor(wf, 1, models.DecisionModificationRequested)
	data.GeneralComment = "fix clause 4"

	result, err = h.engine.ProcessReturn(ctx, wf.ID, data)
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)

	paused := h.load(t, wf.ID)
	step := paused.Steps[1]
	assert.True(t, paused.AwaitingCorrection)
	assert.Equal(t, 1, paused.CurrentStepIndex)
	require.NotNil(t, paused.CorrectionStepIndex)
	assert.Equal(t, 1, *paused.CorrectionStepIndex)
	assert.Equal(t, models.StepStatusCorrectionRequested, step.Status)
	assert.Equal(t, 1, step.CorrectionCount)
	require.Len(t, step.CorrectionHistory, 1)
	assert.Equal(t, "fix clause 4", step.CorrectionHistory[0].Reason)
	assert.Equal(t, step.Participant, step.CorrectionHistory[0].RequestedBy)
	assert.False(t, paused.IsTerminal())

	result, err = h.engine.ProcessReturn(ctx, wf.ID, returnFor(wf, 1, models.DecisionApproved))
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrAwaitingCorrection)

	h.clock.Advance(time.Hour)
	h.engine.Wait()
	advances := h.advancer.count()

	result, err = h.engine.ResubmitStepAfterCorrection(ctx, wf.ID, 1, []byte("%PDF v2"))
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	h.engine.Wait()

	resumed := h.load(t, wf.ID)
	step = resumed.Steps[1]
	assert.False(t, resumed.AwaitingCorrection)
	assert.Nil(t, resumed.CorrectionStepIndex)
	assert.Nil(t, resumed.CorrectionRequestedAt)
	assert.Equal(t, 1, resumed.CurrentStepIndex)
	assert.Equal(t, models.StepStatusPending, step.Status)
	assert.Nil(t, step.Response)
	assert.Nil(t, step.CompletedAt)
	assert.Equal(t, 1, step.CorrectionCount)
	require.NotNil(t, step.CorrectionHistory[0].CorrectedAt)
	assert.Equal(t, t0.Add(time.Hour), *step.CorrectionHistory[0].CorrectedAt)
	assert.Equal(t, advances+1, h.advancer.count())

	stored := h.document(t, document.ID)
	assert.Equal(t, []byte("%PDF v2"), stored.Content)
	assert.Equal(t, document.Version+1, stored.Version)

	activity, ok := h.sink.Find(models.ActivityWorkflowResumed)
	require.True(t, ok)
	assert.Equal(t, true, activity.Metadata["content_replaced"])

	result, err = h.engine.ProcessReturn(ctx, wf.ID, returnFor(resumed, 1, models.DecisionModificationRequested))
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, h.load(t, wf.ID).Steps[1].CorrectionCount)
}

func TestResubmitStepAfterCorrection_KeepsContentWhenNil(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, document := h.seed(t, testutil.CreateTestStep(1))

	result, err := h.engine.ProcessReturn(ctx, wf.ID, returnFor(wf, 0, models.DecisionModificationRequested))
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = h.engine.ResubmitStepAfterCorrection(ctx, wf.ID, 0, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	stored := h.document(t, document.ID)
	assert.Equal(t, document.Content, stored.Content)
	assert.Equal(t, document.Version, stored.Version)
}

func TestResubmitStepAfterCorrection_Rejections(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	wf, _ := h.seed(t, testutil.CreateTestStep(1), testutil.CreateTestStep(2))

	result, err := h.engine.ResubmitStepAfterCorrection(ctx, wf.ID, 0, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.ErrorIs(t, result.Reason, workflow.ErrNotAwaitingCorrection)
	assert.True(t, workflow.IsInvalidState(result.Reason))

	result, err = h.engine.ResubmitStepAfterCorrection(ctx, wf.ID, 5, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrStepNotFound)

	result, err = h.engine.CancelWorkflow(ctx, wf.ID, "", "")
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = h.engine.ResubmitStepAfterCorrection(ctx, wf.ID, 0, nil)
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrAlreadyTerminal)
}

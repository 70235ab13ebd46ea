package workflow_test

import (
	"context"
	"testing"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/testutil"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parallelReturn(t *testing.T, h *harness, wf *models.Workflow, name string, decision models.Decision) *workflow.Result {
	t.Helper()

	data := returnFor(wf, wf.CurrentStepIndex, decision)
	data.Participant = testutil.CreateTestParticipant(name)
	data.Annotations = []models.Annotation{{ID: name, Content: "note from " + name}}

	result, err := h.engine.ProcessParallelReturn(context.Background(), wf.ID, data, data.Participant.Email)
	require.NoError(t, err)

	return result
}

func TestProcessParallelReturn_AllMode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	wf, _ := h.seed(t,
		testutil.CreateTestStep(1, testutil.WithParallel(models.ParallelModeAll, "carol", "dave", "erin")),
		testutil.CreateTestStep(2),
	)

	result := parallelReturn(t, h, wf, "carol", models.DecisionApproved)
	require.True(t, result.Success)
	assert.Contains(t, result.Message, "1/3")

	result = parallelReturn(t, h, wf, "dave", models.DecisionApproved)
	require.True(t, result.Success)
	assert.Contains(t, result.Message, "2/3")

	stored := h.load(t, wf.ID)
	assert.Equal(t, models.StepStatusPending, stored.Steps[0].Status)
	assert.Equal(t, 0, stored.CurrentStepIndex)

	result = parallelReturn(t, h, wf, "erin", models.DecisionApproved)
	require.True(t, result.Success)
	h.engine.Wait()

	stored = h.load(t, wf.ID)
	step := stored.Steps[0]
	assert.Equal(t, models.StepStatusCompleted, step.Status)
	assert.Equal(t, 1, stored.CurrentStepIndex)
	require.NotNil(t, step.Response)
	assert.Equal(t, "erin@example.com", step.Response.RespondedBy.Email)
	assert.Len(t, step.Response.Annotations, 3)
	assert.Equal(t, 1, h.advancer.count())
}

func TestProcessParallelReturn_AllModeRejectsOnFirstRejection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	wf, document := h.seed(t,
		testutil.CreateTestStep(1, testutil.WithParallel(models.ParallelModeAll, "carol", "dave", "erin")),
	)

	require.True(t, parallelReturn(t, h, wf, "carol", models.DecisionApproved).Success)
	require.True(t, parallelReturn(t, h, wf, "dave", models.DecisionRejected).Success)

	stored := h.load(t, wf.ID)
	step := stored.Steps[0]
	assert.Equal(t, models.StepStatusRejected, step.Status)
	assert.Equal(t, models.StepStatusPending, step.ParallelParticipant("erin@example.com").Status)
	assert.Equal(t, models.WorkflowStatusRejected, stored.Status)
	assert.Equal(t, models.DocumentStatusRejected, h.document(t, document.ID).Status)
	assert.Equal(t, []string{document.ID}, h.retention.scheduled())

	result := parallelReturn(t, h, wf, "erin", models.DecisionApproved)
	assert.False(t, result.Success)
	require.ErrorIs(t, result.Reason, workflow.ErrAlreadyProcessed)
}

func TestProcessParallelReturn_AnyMode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	wf, _ := h.seed(t,
		testutil.CreateTestStep(1, testutil.WithParallel(models.ParallelModeAny, "carol", "dave", "erin")),
		testutil.CreateTestStep(2),
	)

	require.True(t, parallelReturn(t, h, wf, "dave", models.DecisionApproved).Success)

	stored := h.load(t, wf.ID)
	step := stored.Steps[0]
	assert.Equal(t, models.StepStatusCompleted, step.Status)
	assert.Equal(t, "dave@example.com", step.Response.RespondedBy.Email)
	assert.Len(t, step.Response.Annotations, 1)
	assert.Equal(t, 1, stored.CurrentStepIndex)

	for _, name := range []string{"carol", "erin"} {
		result := parallelReturn(t, h, wf, name, models.DecisionRejected)
		assert.False(t, result.Success)
		require.ErrorIs(t, result.Reason, workflow.ErrAlreadyProcessed)
	}

	after := h.load(t, wf.ID)
	assert.Equal(t, stored.Revision, after.Revision)
	assert.Equal(t, models.WorkflowStatusActive, after.Status)
}

func TestProcessParallelReturn_AnyModeRejectsWhenAllReject(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	wf, _ := h.seed(t, testutil.CreateTestStep(1, testutil.WithParallel(models.ParallelModeAny, "carol", "dave")))

	require.True(t, parallelReturn(t, h, wf, "carol", models.DecisionRejected).Success)
	assert.Equal(t, models.StepStatusPending, h.load(t, wf.ID).Steps[0].Status)

	require.True(t, parallelReturn(t, h, wf, "dave", models.DecisionRejected).Success)

	stored := h.load(t, wf.ID)
	assert.Equal(t, models.StepStatusRejected, stored.Steps[0].Status)
	assert.Equal(t, models.WorkflowStatusRejected, stored.Status)
}

func TestProcessParallelReturn_Rejections(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	wf, _ := h.seed(t,
		testutil.CreateTestStep(1, testutil.WithParallel(models.ParallelModeAll, "carol", "dave")),
		testutil.CreateTestStep(2),
	)

	require.True(t, parallelReturn(t, h, wf, "carol", models.DecisionApproved).Success)

	result := parallelReturn(t, h, wf, "carol", models.DecisionApproved)
	require.ErrorIs(t, result.Reason, workflow.ErrAlreadyResponded)

	result = parallelReturn(t, h, wf, "mallory", models.DecisionApproved)
	require.ErrorIs(t, result.Reason, workflow.ErrParticipantNotFound)

	result = parallelReturn(t, h, wf, "dave", models.DecisionModificationRequested)
	require.ErrorIs(t, result.Reason, workflow.ErrInvalidDecision)

	other, _ := h.seed(t, testutil.CreateTestStep(1))
	serial := returnFor(other, 0, models.DecisionApproved)
	result, err := h.engine.ProcessParallelReturn(context.Background(), other.ID, serial, serial.Participant.Email)
	require.NoError(t, err)
	require.ErrorIs(t, result.Reason, workflow.ErrNotParallelStep)
}

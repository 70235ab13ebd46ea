package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence/file"
	"github.com/dukex/signflow/pkg/testutil"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, dir string, steps ...*models.WorkflowStep) *models.Workflow {
	t.Helper()

	document := testutil.CreateTestDocument()
	wf := testutil.CreateTestWorkflow(document.ID, steps)
	document.WorkflowID = wf.ID

	require.NoError(t, file.NewPersistence(dir).CommitWorkflow(context.Background(), wf, document))

	return wf
}

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "signflow.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("dispatch:\n  enabled: false\n"), 0o600))

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	argv := append([]string{"signflow", "--database-url", dir, "--config", configFile}, args...)
	err := app.Run(context.Background(), argv)

	return out.String(), err
}

func TestCLI_ReturnsImport(t *testing.T) {
	dir := t.TempDir()
	wf := seedStore(t, dir, testutil.CreateTestStep(1), testutil.CreateTestStep(2))

	returnFile, err := json.Marshal(map[string]any{
		"workflow_id": wf.ID,
		"step_id":     wf.Steps[0].ID,
		"decision":    models.DecisionApproved,
		"participant": map[string]any{"name": "participant1", "email": "participant1@example.com"},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "return.json")
	require.NoError(t, os.WriteFile(path, returnFile, 0o600))

	out, err := runCLI(t, dir, "returns", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "advanced to step 2")

	_, err = runCLI(t, dir, "returns", "import", path)
	require.ErrorIs(t, err, workflow.ErrAlreadyProcessed)

	_, err = runCLI(t, dir, "returns", "import")
	require.ErrorIs(t, err, errMissingArgument)
}

func TestCLI_WorkflowsShowAndCancel(t *testing.T) {
	dir := t.TempDir()
	wf := seedStore(t, dir, testutil.CreateTestStep(1), testutil.CreateTestStep(2))

	out, err := runCLI(t, dir, "workflows", "show", wf.ID)
	require.NoError(t, err)
	assert.Contains(t, out, wf.Name)
	assert.Contains(t, out, wf.Steps[1].ID)

	out, err = runCLI(t, dir, "workflows", "cancel", "--by", "owner@example.com", "--reason", "superseded", wf.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = runCLI(t, dir, "workflows", "show", "--json", wf.ID)
	require.NoError(t, err)

	var shown models.Workflow
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, models.WorkflowStatusCancelled, shown.Status)
	assert.Equal(t, "superseded", shown.CancellationReason)

	_, err = runCLI(t, dir, "workflows", "show", "missing")
	require.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}

func TestCLI_Maintenance(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "retention", "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 document(s)")

	out, err = runCLI(t, dir, "reminders", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Delivered 0 reminder(s)")
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/signflow/pkg/config"
	"github.com/dukex/signflow/pkg/locking"
	"github.com/dukex/signflow/pkg/mailer"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence/file"
	"github.com/dukex/signflow/pkg/storage"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"postgres://user@localhost/signflow":   "postgresql",
		"postgresql://user@localhost/signflow": "postgresql",
		"file:///var/lib/signflow":             "file",
		"./data":                               "file",
		"mysql://localhost":                    "file",
	}

	for url, expected := range tests {
		assert.Equal(t, expected, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p, err := NewPersistence(context.Background(), slog.Default(), "file://"+dir)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
	require.NoError(t, p.HealthCheck(context.Background()))
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	bus, err := NewEventBus("gochannel", "", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", "", slog.Default())
	require.Error(t, err)

	_, err = NewEventBus("rabbitmq", "", slog.Default())
	require.Error(t, err)
}

func TestCollaborators_Disabled(t *testing.T) {
	t.Parallel()

	packages, err := NewStorage(context.Background(), storage.Config{}, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, packages)

	m, err := NewMailer(mailer.Config{}, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, m)

	assert.Nil(t, NewRedisClient(config.RedisSettings{}))
	assert.IsType(t, &locking.Memory{}, NewLocker(nil, config.Default(), slog.Default()))
}

func TestNewRuntime(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(t.TempDir(), "signflow.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("dispatch:\n  enabled: false\n"), 0o600))

	ctx := context.Background()

	rt, err := NewRuntime(ctx, slog.Default(), RuntimeOptions{DatabaseURL: dir, ConfigFile: configFile})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, rt.Close(ctx))
	})

	assert.Nil(t, rt.Queue())

	cron, err := rt.Cron()
	require.NoError(t, err)
	assert.NotNil(t, cron)

	document, err := rt.Engine.CreateDocument(ctx, "contract.pdf", "application/pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	created, err := rt.Engine.CreateWorkflow(ctx, workflow.CreateWorkflowInput{
		DocumentID: document.ID,
		Name:       "Supplier contract",
		Steps: []workflow.StepConfig{
			{Participant: models.Participant{Name: "Ada", Email: "ada@example.com"}, Role: models.RoleApprover},
		},
	})
	require.NoError(t, err)

	activities, err := rt.Engine.Activity(ctx, created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, activities)
	assert.Equal(t, models.ActivityWorkflowCreated, activities[0].Type)
}

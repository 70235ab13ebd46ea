//go:build integration

package intake_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/signflow/pkg/intake"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(ctx))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestQueue_ConsumesReturns(t *testing.T) {
	client := setupRedis(t)
	f := newFixture(t)
	wf := f.seed(t, testutil.CreateTestStep(1), testutil.CreateTestStep(2))

	queue := intake.NewQueue(client, "test:returns", f.intake, slog.Default())

	ctx := context.Background()
	require.NoError(t, queue.Start(ctx))

	require.NoError(t, client.RPush(ctx, "test:returns", "garbage").Err())
	require.NoError(t, client.RPush(ctx, "test:returns", string(payload(wf, models.DecisionApproved, wf.Steps[0].Participant))).Err())

	assert.Eventually(t, func() bool {
		stored, err := f.engine.Workflow(ctx, wf.ID)

		return err == nil && stored.CurrentStepIndex == 1
	}, 10*time.Second, 50*time.Millisecond)

	require.NoError(t, queue.Stop(ctx))

	length, err := client.LLen(ctx, "test:returns").Result()
	require.NoError(t, err)
	assert.Zero(t, length)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/signflow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "signflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	settings, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*24*time.Hour, settings.RetentionPeriod())
	assert.Equal(t, config.DefaultSweepSchedule, settings.Retention.Schedule)
	assert.Equal(t, config.DefaultReminderDays, settings.Reminders.LeadDays)
	assert.Equal(t, 30*time.Second, settings.DispatchTimeout())
	assert.Equal(t, config.DefaultReturnQueue, settings.Redis.ReturnQueue)
	assert.True(t, settings.AutoAdvance())
	assert.False(t, settings.Storage.Enabled())
	assert.False(t, settings.Mailer.Enabled())
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
retention:
  period_days: 7
  schedule: "0 1 * * *"
reminders:
  lead_days: 3
dispatch:
  enabled: false
  timeout_seconds: 5
  subject: "{{ .Package.WorkflowName }}"
redis:
  addr: localhost:6379
storage:
  connection_string: UseDevelopmentStorage=true
mailer:
  service_id: service
  template_id: template
  public_key: public
`)

	settings, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, settings.RetentionPeriod())
	assert.Equal(t, "0 1 * * *", settings.Retention.Schedule)
	assert.Equal(t, 3, settings.Reminders.LeadDays)
	assert.Equal(t, config.DefaultReminderSchedule, settings.Reminders.Schedule)
	assert.False(t, settings.AutoAdvance())
	assert.Equal(t, 5*time.Second, settings.DispatchTimeout())
	assert.Equal(t, "localhost:6379", settings.Redis.Addr)
	assert.Equal(t, 30*time.Second, settings.LockTTL())
	assert.True(t, settings.Storage.Enabled())
	assert.True(t, settings.Mailer.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "invalid yaml",
			content:  "retention: [",
			expected: "failed to parse YAML config",
		},
		{
			name:     "invalid schedule",
			content:  "retention:\n  schedule: every night\n",
			expected: "retention.schedule",
		},
		{
			name:     "invalid template",
			content:  "dispatch:\n  body: \"{{ .Participant.Name\"\n",
			expected: "dispatch.body",
		},
		{
			name:     "negative lead days",
			content:  "reminders:\n  lead_days: -1\n",
			expected: "reminders.lead_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

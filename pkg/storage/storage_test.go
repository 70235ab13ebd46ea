package storage

import (
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, validateKey(""), ErrEmptyKey)
	assert.ErrorIs(t, validateKey("packages/../secret"), ErrInvalidKey)
	assert.NoError(t, validateKey("wf-1/step-1.json"))
}

func TestMapHTTPStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, MapHTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, MapHTTPStatus(ErrInvalidKey))
	assert.Equal(t, http.StatusInternalServerError, MapHTTPStatus(errors.New("boom")))
}

func TestConfig_Finalize(t *testing.T) {
	t.Setenv("TEST_STORAGE_CONNECTION", "UseDevelopmentStorage=true")

	cfg := &Config{}
	require.NoError(t, cfg.Finalize(&Env{ConnectionString: "TEST_STORAGE_CONNECTION"}))

	assert.Equal(t, "packages", cfg.ContainerName)
	assert.Equal(t, "UseDevelopmentStorage=true", cfg.ConnectionString)
	assert.True(t, cfg.Enabled())

	empty := &Config{}
	require.Error(t, empty.Finalize(nil))
	assert.False(t, empty.Enabled())
}

func TestNew_BuildsPackageURL(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ContainerName:    "packages",
		ConnectionString: "DefaultEndpointsProtocol=https;AccountName=signflow;AccountKey=c2lnbmZsb3c=;EndpointSuffix=core.windows.net",
	}

	system, err := New(cfg, slog.Default())
	require.NoError(t, err)

	azureSystem, ok := system.(*azure)
	require.True(t, ok)
	assert.Equal(t, "https://signflow.blob.core.windows.net/packages/wf-1_step-1.json", azureSystem.url("wf-1_step-1.json"))
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/signflow/pkg/config"
	"github.com/dukex/signflow/pkg/locking"
	"github.com/dukex/signflow/pkg/mailer"
	"github.com/dukex/signflow/pkg/storage"
	redis "github.com/redis/go-redis/v9"
)

var storageEnv = &storage.Env{
	ContainerName:    "SIGNFLOW_STORAGE_CONTAINER",
	ConnectionString: "SIGNFLOW_STORAGE_CONNECTION_STRING",
}

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(settings config.RedisSettings) redis.UniversalClient {
	if settings.Addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     settings.Addr,
		Password: settings.Password,
		DB:       settings.DB,
	})
}

// NewLocker serializes workflow mutations across processes when a Redis client is given.
func NewLocker(client redis.UniversalClient, settings *config.Settings, logger *slog.Logger) locking.Locker {
	if client == nil {
		return locking.NewMemory()
	}

	return locking.NewRedis(client, settings.LockTTL(), logger)
}

// NewStorage returns nil when hosted package storage is not configured.
func NewStorage(ctx context.Context, cfg storage.Config, logger *slog.Logger) (storage.System, error) {
	err := cfg.Finalize(storageEnv)
	if !cfg.Enabled() {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	system, err := storage.New(&cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := system.Start(ctx); err != nil {
		return nil, err
	}

	return system, nil
}

// NewMailer returns nil when EmailJS is not configured.
func NewMailer(cfg mailer.Config, logger *slog.Logger) (mailer.Mailer, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	m, err := mailer.NewEmailJS(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid mailer config: %w", err)
	}

	return m, nil
}

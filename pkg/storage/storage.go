// Package storage hosts participant packages in Azure Blob Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// System stores packages under opaque keys.
type System interface {
	// Start creates the container when it does not exist yet.
	Start(ctx context.Context) error
	// Upload streams data to the given key and returns the package URL.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	// Delete removes the package at key. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, key string) error
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// New creates a storage system from the given configuration.
// The connection string is validated here; the service is only contacted by Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger.With("module", "storage"),
	}, nil
}

func (a *azure) Start(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("initialize container %s: %w", a.container, err)
	}

	a.logger.InfoContext(ctx, "storage container ready", "container", a.container)

	return nil
}

func (a *azure) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	_, err := a.client.UploadStream(ctx, a.container, key, reader, opts)
	if err != nil {
		return "", fmt.Errorf("upload package %s: %w", key, err)
	}

	return a.url(key), nil
}

func (a *azure) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := a.client.DeleteBlob(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}

		return fmt.Errorf("delete package %s: %w", key, err)
	}

	return nil
}

func (a *azure) url(key string) string {
	return a.client.
		ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(key).
		URL()
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}

	return nil
}

package mocks

import (
	"context"
	"io"

	"github.com/dukex/signflow/pkg/mailer"
	"github.com/stretchr/testify/mock"
)

// MockMailer is a mock implementation of mailer.Mailer interface.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)

	return args.Error(0)
}

// MockStorage is a mock implementation of storage.System interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Start(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, reader, contentType)

	return args.String(0), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)

	return args.Error(0)
}

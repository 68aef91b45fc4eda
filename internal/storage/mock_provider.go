package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of the Provider interface for testing.
type MockProvider struct {
	mock.Mock
}

// Read is the mock implementation of the Read method.
func (m *MockProvider) Read(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1) //nolint:wrapcheck
}

// Write is the mock implementation of the Write method.
func (m *MockProvider) Write(ctx context.Context, data []byte) error {
	args := m.Called(ctx, data)
	return args.Error(0) //nolint:wrapcheck
}

// Package mocks provides testify-based mock implementations for testing
// without qemu-img.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Formatter is a mock for disk.Formatter.
type Formatter struct {
	mock.Mock
}

func (m *Formatter) Resize(ctx context.Context, path, size string) error {
	args := m.Called(ctx, path, size)
	return args.Error(0)
}

func (m *Formatter) CreateEmpty(ctx context.Context, path, size string) error {
	args := m.Called(ctx, path, size)
	return args.Error(0)
}

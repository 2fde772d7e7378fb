// Package mocks provides testify-based mock implementations for testing
// without network access.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Fetcher is a mock for image.Fetcher.
type Fetcher struct {
	mock.Mock
}

func (m *Fetcher) Fetch(ctx context.Context, locator, dest string) error {
	args := m.Called(ctx, locator, dest)
	return args.Error(0)
}

func (m *Fetcher) FetchDisk(ctx context.Context, locator, dest string) error {
	args := m.Called(ctx, locator, dest)
	return args.Error(0)
}

// Package mocks provides testify-based mock implementations for testing
// without ISO tooling.
package mocks

import (
	"context"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/stretchr/testify/mock"
)

// Builder is a mock for seed.Builder.
type Builder struct {
	mock.Mock
}

func (m *Builder) Build(ctx context.Context, vmName string, creds profile.Credentials, output string) error {
	args := m.Called(ctx, vmName, creds, output)
	return args.Error(0)
}

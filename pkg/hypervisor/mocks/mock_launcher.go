// Package mocks provides testify-based mock implementations for testing
// without a hypervisor.
package mocks

import (
	"context"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/hypervisor"
	"github.com/stretchr/testify/mock"
)

// Launcher is a mock for hypervisor.Launcher.
type Launcher struct {
	mock.Mock
}

func (m *Launcher) Launch(ctx context.Context, spec hypervisor.LaunchSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

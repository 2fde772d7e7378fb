// Package hypervisor launches VMs on the local KVM host.
package hypervisor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Bibi40k/kvm-vm-bootstrap/internal/utils"
)

// Launcher defines and boots a VM.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) error
}

// Disk buses.
const (
	BusVirtio = "virtio"
	BusSATA   = "sata"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LaunchSpec is everything a launcher needs to start one VM. A spec with an
// Installer boots the installer ISO against SystemDisk; otherwise SystemDisk
// is imported as a ready-made image, optionally configured from Seed.
type LaunchSpec struct {
	Name       string
	MemoryMB   int
	VCPUs      int
	VariantTag string
	Network    utils.NetworkAttachment

	SystemDisk string
	DiskFormat string
	Seed       string // cloud-init seed ISO, cloud images only
	Installer  string // installer ISO
	Drivers    string // optional driver ISO attached next to the installer
}

// Installing reports whether the VM boots from an installer ISO.
func (s LaunchSpec) Installing() bool { return s.Installer != "" }

// DiskBus picks the system disk bus. Installers without a driver ISO get
// SATA, which every installer can see.
func (s LaunchSpec) DiskBus() string {
	if s.Installing() && s.Drivers == "" {
		return BusSATA
	}
	return BusVirtio
}

// NICModel picks the network card model matching the disk bus choice.
func (s LaunchSpec) NICModel() string {
	if s.DiskBus() == BusVirtio {
		return "virtio"
	}
	return "e1000e"
}

// Validate checks the fields every launcher relies on.
func (s LaunchSpec) Validate() error {
	if !namePattern.MatchString(s.Name) {
		return fmt.Errorf("invalid VM name %q", s.Name)
	}
	if s.MemoryMB <= 0 || s.VCPUs <= 0 {
		return fmt.Errorf("memory and vcpus must be positive (got %d MB, %d vcpus)", s.MemoryMB, s.VCPUs)
	}
	if s.SystemDisk == "" {
		return fmt.Errorf("system disk is required")
	}
	if s.Installing() && s.Seed != "" {
		return fmt.Errorf("seed image is not used with an installer")
	}
	if !s.Installing() && s.Drivers != "" {
		return fmt.Errorf("driver ISO requires an installer")
	}
	if s.Network.Kind == "" || s.Network.Name == "" {
		return fmt.Errorf("network attachment is required")
	}
	return nil
}

func (s LaunchSpec) diskFormat() string {
	if s.DiskFormat == "" {
		return "qcow2"
	}
	return s.DiskFormat
}

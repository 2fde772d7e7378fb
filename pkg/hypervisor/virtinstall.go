package hypervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
)

// compile-time interface compliance check
var _ Launcher = (*VirtInstall)(nil)

// VirtInstall launches VMs with the virt-install tool.
type VirtInstall struct {
	exec   executor.Executor
	logger *slog.Logger
}

// NewVirtInstall returns a virt-install-backed launcher.
func NewVirtInstall(exec executor.Executor, logger *slog.Logger) *VirtInstall {
	if logger == nil {
		logger = slog.Default()
	}
	return &VirtInstall{exec: exec, logger: logger}
}

// RequiredTools lists the binaries VirtInstall shells out to.
func (v *VirtInstall) RequiredTools() []string { return []string{"virt-install"} }

func (v *VirtInstall) Launch(ctx context.Context, spec LaunchSpec) error {
	args, err := VirtInstallArgs(spec)
	if err != nil {
		return err
	}
	v.logger.Info("Launching VM", "name", spec.Name, "variant", spec.VariantTag, "installer", spec.Installing())
	return executor.Run(ctx, v.exec, "virt-install", args...)
}

// VirtInstallArgs builds the virt-install argument list for spec.
func VirtInstallArgs(spec LaunchSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"--name", spec.Name,
		"--memory", strconv.Itoa(spec.MemoryMB),
		"--vcpus", strconv.Itoa(spec.VCPUs),
		"--virt-type", "kvm",
		"--os-variant", spec.VariantTag,
		"--disk", fmt.Sprintf("path=%s,format=%s,bus=%s", spec.SystemDisk, spec.diskFormat(), spec.DiskBus()),
	}

	if spec.Installing() {
		args = append(args, "--cdrom", spec.Installer)
		if spec.Drivers != "" {
			args = append(args, "--disk", fmt.Sprintf("path=%s,device=cdrom", spec.Drivers))
		}
		args = append(args, "--graphics", "vnc")
	} else {
		if spec.Seed != "" {
			args = append(args, "--disk", fmt.Sprintf("path=%s,device=cdrom", spec.Seed))
		}
		args = append(args, "--import", "--graphics", "none")
	}

	args = append(args,
		"--network", fmt.Sprintf("%s,model=%s", spec.Network, spec.NICModel()),
		"--noautoconsole",
	)
	return args, nil
}

package provision

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/internal/utils"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/disk"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/hypervisor"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/hypervisor/libvirtd"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/image"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/seed"
)

// CollaboratorsFromSettings builds the production backends selected in s.
// progress receives download progress from the HTTP fetcher.
func CollaboratorsFromSettings(s *configs.Settings, progress io.Writer, logger *slog.Logger) (Collaborators, error) {
	if logger == nil {
		logger = slog.Default()
	}
	local := executor.NewLocal(logger)
	c := Collaborators{Formatter: disk.NewQemuImg(local, logger)}

	switch s.Fetcher {
	case configs.FetcherWget:
		c.Fetcher = image.NewWget(local, logger)
	case configs.FetcherHTTP:
		c.Fetcher = image.NewHTTP(progress, logger)
	default:
		return Collaborators{}, fmt.Errorf("unknown fetcher %q", s.Fetcher)
	}

	switch s.SeedBuilder {
	case configs.SeedISOTool:
		c.Seeder = seed.NewGenisoimage(local, logger)
	case configs.SeedNative:
		c.Seeder = seed.NewNative(logger)
	default:
		return Collaborators{}, fmt.Errorf("unknown seed builder %q", s.SeedBuilder)
	}

	switch s.Launcher {
	case configs.LauncherVirt:
		c.Launcher = hypervisor.NewVirtInstall(local, logger)
	case configs.LauncherAPI:
		c.Launcher = libvirtd.New(s.LibvirtURI, logger)
	default:
		return Collaborators{}, fmt.Errorf("unknown launcher %q", s.Launcher)
	}
	return c, nil
}

// SettingsFrom extracts planning settings from loaded configuration.
func SettingsFrom(s *configs.Settings) (Settings, error) {
	network, err := utils.ParseNetworkSpec(s.Network)
	if err != nil {
		return Settings{}, &ConfigurationError{Reason: "network", Err: err}
	}
	return Settings{VMDir: s.VMDir, Network: network}, nil
}

// NewFromSettings wires an orchestrator from loaded configuration. The
// step timeout from s applies unless opts override it.
func NewFromSettings(s *configs.Settings, progress io.Writer, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	c, err := CollaboratorsFromSettings(s, progress, logger)
	if err != nil {
		return nil, err
	}
	ps, err := SettingsFrom(s)
	if err != nil {
		return nil, err
	}
	base := []Option{WithLogger(logger), WithStepTimeout(s.StepTimeout)}
	return New(c, ps, append(base, opts...)...)
}

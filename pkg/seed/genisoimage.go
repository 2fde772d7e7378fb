package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
)

// Genisoimage packs the seed with the genisoimage tool.
type Genisoimage struct {
	exec   executor.Executor
	logger *slog.Logger
}

// NewGenisoimage returns a genisoimage-backed seed builder.
func NewGenisoimage(exec executor.Executor, logger *slog.Logger) *Genisoimage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Genisoimage{exec: exec, logger: logger}
}

// RequiredTools lists the binaries Genisoimage shells out to.
func (g *Genisoimage) RequiredTools() []string { return []string{"genisoimage"} }

func (g *Genisoimage) Build(ctx context.Context, vmName string, creds profile.Credentials, output string) error {
	files, err := Render(vmName, creds)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "kvmbootstrap-seed-")
	if err != nil {
		return fmt.Errorf("failed to create seed work dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	userData := filepath.Join(workDir, "user-data")
	metaData := filepath.Join(workDir, "meta-data")
	if err := os.WriteFile(userData, []byte(files.UserData), 0600); err != nil {
		return fmt.Errorf("failed to write user-data: %w", err)
	}
	if err := os.WriteFile(metaData, []byte(files.MetaData), 0600); err != nil {
		return fmt.Errorf("failed to write meta-data: %w", err)
	}

	g.logger.Info("Building seed image", "path", output)
	return executor.Run(ctx, g.exec, "genisoimage",
		"-output", output,
		"-volid", configs.Defaults.CloudInit.VolumeID,
		"-joliet", "-rock",
		userData, metaData,
	)
}

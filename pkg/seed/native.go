package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/kdomanski/iso9660"
)

// Native writes the seed with a pure Go ISO9660 writer (no Joliet).
type Native struct {
	logger *slog.Logger
}

// NewNative returns an in-process seed builder.
func NewNative(logger *slog.Logger) *Native {
	if logger == nil {
		logger = slog.Default()
	}
	return &Native{logger: logger}
}

func (n *Native) Build(ctx context.Context, vmName string, creds profile.Credentials, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := Render(vmName, creds)
	if err != nil {
		return err
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		_ = writer.Cleanup()
	}()

	for name, content := range map[string]string{
		"user-data": files.UserData,
		"meta-data": files.MetaData,
	} {
		if err := writer.AddFile(strings.NewReader(content), name); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}

	isoFile, err := os.OpenFile(output, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to create ISO file: %w", err)
	}
	defer func() {
		_ = isoFile.Close()
	}()

	n.logger.Info("Writing seed image", "path", output)
	if err := writer.WriteTo(isoFile, configs.Defaults.CloudInit.VolumeID); err != nil {
		return fmt.Errorf("failed to write ISO: %w", err)
	}
	return nil
}

// Package disk prepares VM disk images with qemu-img.
package disk

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
)

// compile-time interface compliance check
var _ Formatter = (*QemuImg)(nil)

// Formatter grows existing images and creates empty ones.
type Formatter interface {
	Resize(ctx context.Context, path, size string) error
	CreateEmpty(ctx context.Context, path, size string) error
}

var sizePattern = regexp.MustCompile(`^[0-9]+[MG]$`)

// QemuImg drives the qemu-img tool.
type QemuImg struct {
	exec   executor.Executor
	format string
	logger *slog.Logger
}

// NewQemuImg returns a qemu-img formatter creating images in the default
// disk format.
func NewQemuImg(exec executor.Executor, logger *slog.Logger) *QemuImg {
	if logger == nil {
		logger = slog.Default()
	}
	return &QemuImg{
		exec:   exec,
		format: configs.Defaults.VM.DiskFormat,
		logger: logger,
	}
}

// RequiredTools lists the binaries QemuImg shells out to.
func (q *QemuImg) RequiredTools() []string { return []string{"qemu-img"} }

// Resize sets the virtual size of the image at path.
func (q *QemuImg) Resize(ctx context.Context, path, size string) error {
	if !sizePattern.MatchString(size) {
		return fmt.Errorf("invalid disk size %q", size)
	}
	q.logger.Info("Resizing disk", "path", path, "size", size)
	if err := executor.Run(ctx, q.exec, "qemu-img", "resize", path, size); err != nil {
		return err
	}
	if info, err := q.Info(ctx, path); err == nil {
		q.logger.Debug("Disk resized", "info", info)
	}
	return nil
}

// CreateEmpty creates a new image of the given size.
func (q *QemuImg) CreateEmpty(ctx context.Context, path, size string) error {
	if !sizePattern.MatchString(size) {
		return fmt.Errorf("invalid disk size %q", size)
	}
	q.logger.Info("Creating disk", "path", path, "size", size, "format", q.format)
	return executor.Run(ctx, q.exec, "qemu-img", "create", "-f", q.format, path, size)
}

// Info returns the human-readable qemu-img info output.
func (q *QemuImg) Info(ctx context.Context, path string) (string, error) {
	result, err := executor.RunAndCapture(ctx, q.exec, "qemu-img", "info", path)
	if err != nil {
		return "", fmt.Errorf("qemu-img info failed: %w\nstderr: %s", err, result.Stderr)
	}
	return result.Stdout, nil
}

package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
)

// Wget downloads with the wget tool.
type Wget struct {
	exec   executor.Executor
	logger *slog.Logger
}

// NewWget returns a wget-backed fetcher.
func NewWget(exec executor.Executor, logger *slog.Logger) *Wget {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wget{exec: exec, logger: logger}
}

// RequiredTools lists the binaries Wget shells out to.
func (w *Wget) RequiredTools() []string { return []string{"wget"} }

func (w *Wget) Fetch(ctx context.Context, locator, dest string) error {
	return w.fetch(ctx, locator, dest, false)
}

func (w *Wget) FetchDisk(ctx context.Context, locator, dest string) error {
	return w.fetch(ctx, locator, dest, true)
}

func (w *Wget) fetch(ctx context.Context, locator, dest string, private bool) error {
	done, err := prepare(ctx, locator, dest, private, w.logger)
	if err != nil || done {
		return err
	}

	part := dest + partSuffix
	w.logger.Info("Downloading image", "url", locator, "path", dest)
	if err := executor.Run(ctx, w.exec, "wget", "-O", part, "--progress=dot:giga", locator); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("download %s: %w", locator, err)
	}
	return finish(dest)
}

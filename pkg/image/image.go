// Package image fetches base disk images, installer ISOs and driver ISOs
// into the VM storage directory.
package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// compile-time interface compliance check
var (
	_ Fetcher = (*Wget)(nil)
	_ Fetcher = (*HTTP)(nil)
)

// Fetcher places the artifact named by locator at dest. Downloads land in
// dest+".part" and are renamed on success, so dest is either absent or
// complete. A non-empty dest is reused as-is.
//
// Fetch is for read-only media: a local source is symlinked into place.
// FetchDisk is for a VM's writable system disk: a local source is copied,
// so the VM never writes through to the original.
type Fetcher interface {
	Fetch(ctx context.Context, locator, dest string) error
	FetchDisk(ctx context.Context, locator, dest string) error
}

// partSuffix marks an in-progress download.
const partSuffix = ".part"

// IsRemote reports whether locator is a URL rather than a local path.
func IsRemote(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return u.Host != ""
	}
	return false
}

// prepare handles the cases every fetcher shares. It returns true when dest
// is already in place and nothing needs downloading. With private set, a
// local source is copied instead of linked.
func prepare(ctx context.Context, locator, dest string, private bool, logger *slog.Logger) (bool, error) {
	if locator == "" {
		return false, fmt.Errorf("empty image locator")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}
	if reusable(dest, private) {
		logger.Info("Reusing existing image", "path", dest)
		return true, nil
	}
	if IsRemote(locator) {
		return false, nil
	}
	src, err := localSource(locator)
	if err != nil {
		return false, err
	}
	if src == dest {
		return true, nil
	}
	if private {
		return true, copyLocal(ctx, src, dest, logger)
	}
	return true, linkLocal(src, dest, logger)
}

// reusable reports whether dest already holds a complete artifact. A
// symlink never counts as a private disk.
func reusable(dest string, private bool) bool {
	info, err := os.Lstat(dest)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if private {
			return false
		}
		if info, err = os.Stat(dest); err != nil {
			return false
		}
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

func localSource(locator string) (string, error) {
	abs, err := filepath.Abs(locator)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", locator, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("local source not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("local source %s is a directory", abs)
	}
	return abs, nil
}

// linkLocal exposes a local source file at dest via a symlink.
func linkLocal(src, dest string, logger *slog.Logger) error {
	_ = os.Remove(dest)
	if err := os.Symlink(src, dest); err != nil {
		return fmt.Errorf("failed to link %s: %w", src, err)
	}
	logger.Info("Linked local image", "source", src, "path", dest)
	return nil
}

// copyLocal writes a private copy of src to dest through a .part file.
func copyLocal(ctx context.Context, src, dest string, logger *slog.Logger) error {
	_ = os.Remove(dest)
	part := dest + partSuffix
	if err := copyFile(ctx, src, part); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := finish(dest); err != nil {
		return err
	}
	logger.Info("Copied local image", "source", src, "path", dest)
	return nil
}

func copyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, ctxReader{ctx: ctx, r: in}); err != nil {
		return err
	}
	return out.Sync()
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// finish promotes a completed .part file to dest.
func finish(dest string) error {
	if err := os.Rename(dest+partSuffix, dest); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return nil
}

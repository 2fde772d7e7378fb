package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
)

// HTTP downloads in-process with net/http.
type HTTP struct {
	client   *http.Client
	progress io.Writer
	interval time.Duration
	logger   *slog.Logger
}

// NewHTTP returns a native fetcher. Progress lines go to progress; nil
// disables them.
func NewHTTP(progress io.Writer, logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		client:   &http.Client{Timeout: configs.Defaults.Timeouts.Download()},
		progress: progress,
		interval: configs.Defaults.Timeouts.Progress(),
		logger:   logger,
	}
}

func (h *HTTP) Fetch(ctx context.Context, locator, dest string) error {
	return h.fetch(ctx, locator, dest, false)
}

func (h *HTTP) FetchDisk(ctx context.Context, locator, dest string) error {
	return h.fetch(ctx, locator, dest, true)
}

func (h *HTTP) fetch(ctx context.Context, locator, dest string, private bool) error {
	done, err := prepare(ctx, locator, dest, private, h.logger)
	if err != nil || done {
		return err
	}

	h.logger.Info("Downloading image", "url", locator, "path", dest)
	part := dest + partSuffix
	if err := h.download(ctx, locator, part); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("download %s: %w", locator, err)
	}
	return finish(dest)
}

func (h *HTTP) download(ctx context.Context, url, part string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = out.Close()
	}()

	var body io.Reader = resp.Body
	if h.progress != nil {
		counter := &progressCounter{
			out:       h.progress,
			name:      path.Base(req.URL.Path),
			total:     resp.ContentLength,
			interval:  h.interval,
			startTime: time.Now(),
		}
		defer counter.finish()
		body = io.TeeReader(resp.Body, counter)
	}

	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return out.Sync()
}

// progressCounter prints download progress at most once per interval.
type progressCounter struct {
	out       io.Writer
	name      string
	total     int64
	current   int64
	interval  time.Duration
	startTime time.Time
	lastPrint time.Time
}

func (pc *progressCounter) Write(p []byte) (int, error) {
	n := len(p)
	pc.current += int64(n)

	now := time.Now()
	if now.Sub(pc.lastPrint) > pc.interval || pc.current == pc.total {
		pc.lastPrint = now
		pc.printProgress()
	}

	return n, nil
}

func (pc *progressCounter) printProgress() {
	elapsed := time.Since(pc.startTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	speed := float64(pc.current) / elapsed / (1024 * 1024) // MB/s

	if pc.total > 0 {
		percent := float64(pc.current) / float64(pc.total) * 100
		_, _ = fmt.Fprintf(pc.out, "\r   %s: %.1f MB / %.1f MB (%.1f%%) - %.1f MB/s",
			pc.name,
			float64(pc.current)/(1024*1024),
			float64(pc.total)/(1024*1024),
			percent,
			speed)
	} else {
		_, _ = fmt.Fprintf(pc.out, "\r   %s: %.1f MB - %.1f MB/s",
			pc.name,
			float64(pc.current)/(1024*1024),
			speed)
	}
}

func (pc *progressCounter) finish() {
	_, _ = fmt.Fprintln(pc.out)
}

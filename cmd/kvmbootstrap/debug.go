package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const debugLogPath = "tmp/kvmbootstrap-debug.log"

var debugLogger *slog.Logger
var debugCleanup func()

func initDebugLogger() func() {
	if !debugLogs {
		return nil
	}
	logger, cleanup, err := setupDebugLogger(debugLogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to enable debug log: %v\n", err)
		return nil
	}
	debugLogger = logger
	debugCleanup = cleanup
	fmt.Println("  Debug log: " + debugLogPath)
	return cleanup
}

// getLogger returns the debug tee when --debug is set, otherwise the pretty
// console logger at the configured level.
func getLogger(level slog.Level) *slog.Logger {
	if debugLogs && debugLogger != nil {
		return debugLogger
	}
	return newPrettyLogger(os.Stdout, level)
}

func setupDebugLogger(path string) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	mw := io.MultiWriter(os.Stdout, f)
	return newDebugLogger(mw), func() { _ = f.Close() }, nil
}

func newDebugLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

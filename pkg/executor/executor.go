// Package executor runs external tools on behalf of the provisioning
// collaborators.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

// Executor runs a command and streams its output.
type Executor interface {
	Execute(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (exitCode int, err error)
	Name() string
}

// Result is the captured outcome of one command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error
}

// RunAndCapture runs command and returns its buffered output.
func RunAndCapture(ctx context.Context, exec Executor, command string, args ...string) (*Result, error) {
	var outBuf, errBuf bytes.Buffer

	exitCode, err := exec.Execute(ctx, &outBuf, &errBuf, command, args...)

	return &Result{
		ExitCode: exitCode,
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Error:    err,
	}, err
}

// Run runs command and folds trimmed stderr into the returned error.
func Run(ctx context.Context, exec Executor, command string, args ...string) error {
	result, err := RunAndCapture(ctx, exec, command, args...)
	if err != nil {
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			return fmt.Errorf("%s failed: %w\nstderr: %s", command, err, stderr)
		}
		return fmt.Errorf("%s failed: %w", command, err)
	}
	return nil
}

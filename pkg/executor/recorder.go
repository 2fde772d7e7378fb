package executor

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Call is one command seen by a Recorder.
type Call struct {
	Command string
	Args    []string
}

// Recorder is an Executor that records commands instead of running them.
// Handler, when set, decides each command's outcome.
type Recorder struct {
	Handler func(call Call, stdout, stderr io.Writer) (int, error)

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Execute(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, fmt.Errorf("command interrupted: %w", err)
	}
	call := Call{Command: command, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.Handler == nil {
		return 0, nil
	}
	return r.Handler(call, stdout, stderr)
}

// Calls returns the recorded commands in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

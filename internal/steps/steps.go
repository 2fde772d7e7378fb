// Package steps runs a named sequence of actions, stopping at the first
// failure.
package steps

import (
	"context"
	"fmt"
	"time"
)

// Step defines one action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Hooks observe step transitions. Nil hooks are skipped.
type Hooks struct {
	OnStart func(index, total int, name string)
	OnDone  func(index, total int, name string, elapsed time.Duration, err error)
}

// Error reports the step that stopped the sequence.
type Error struct {
	Index int // 1-based
	Name  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CancelledError reports a sequence stopped between steps. Completed counts
// the steps that finished; Last names the final one, empty if none ran.
type CancelledError struct {
	Completed int
	Last      string
	Err       error
}

func (e *CancelledError) Error() string {
	if e.Last == "" {
		return fmt.Sprintf("cancelled before first step: %v", e.Err)
	}
	return fmt.Sprintf("cancelled after step %d (%s): %v", e.Completed, e.Last, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// RunSteps executes steps in order. The sequence stops before the next step
// once ctx is done.
func RunSteps(ctx context.Context, steps []Step, hooks Hooks) error {
	total := len(steps)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			cancelled := &CancelledError{Completed: i, Err: err}
			if i > 0 {
				cancelled.Last = steps[i-1].Name
			}
			return cancelled
		}
		if hooks.OnStart != nil {
			hooks.OnStart(i+1, total, step.Name)
		}
		start := time.Now()
		var err error
		if step.Run != nil {
			err = step.Run(ctx)
		}
		if hooks.OnDone != nil {
			hooks.OnDone(i+1, total, step.Name, time.Since(start), err)
		}
		if err != nil {
			return &Error{Index: i + 1, Name: step.Name, Err: err}
		}
	}
	return nil
}

// Progress returns hooks that print "[i/n] Name" lines through printf.
func Progress(printf func(format string, args ...any)) Hooks {
	return Hooks{
		OnStart: func(index, total int, name string) {
			printf("[%d/%d] %s\n", index, total, name)
		},
	}
}

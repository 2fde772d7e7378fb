//go:build !windows

package main

import (
	"os"
	"syscall"

	"golang.org/x/term"
)

// initialTTY is the terminal state at startup, restored on interrupt.
var initialTTY *term.State

func init() {
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		initialTTY, _ = term.GetState(fd)
	}
}

// drainStdin discards bytes already queued on a terminal stdin.
func drainStdin() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		return
	}
	defer func() { _ = syscall.SetNonblock(fd, false) }()

	buf := make([]byte, 256)
	for {
		n, err := syscall.Read(fd, buf)
		if n <= 0 || err != nil {
			break
		}
	}
	stdinReader.Reset(os.Stdin)
}

// restoreTTYOnExit puts the terminal back into its startup mode.
func restoreTTYOnExit() {
	if initialTTY != nil {
		_ = term.Restore(int(os.Stdin.Fd()), initialTTY)
	}
}

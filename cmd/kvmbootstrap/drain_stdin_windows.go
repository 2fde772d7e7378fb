//go:build windows

package main

// The Windows console does not echo survey's cursor-position replies back
// into stdin, so there is nothing to drain or restore.

func drainStdin() {}

func restoreTTYOnExit() {}

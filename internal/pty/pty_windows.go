//go:build windows
// +build windows

package pty

import "os"

// Start always fails on Windows; the bridge runs the tool over pipes there.
func Start(opts StartOptions) (*Process, error) {
	return nil, ErrUnavailable
}

func killGroup(proc *os.Process) error {
	return proc.Kill()
}

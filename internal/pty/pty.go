// Package pty starts processes attached to a pseudo-terminal.
package pty

import (
	"errors"
	"io"
	"os/exec"
)

// ErrUnavailable is returned by Start when no pseudo-terminal can be
// allocated on this host. Callers may fall back to plain pipes.
var ErrUnavailable = errors.New("pseudo-terminal unavailable")

const (
	// DefaultRows is the initial terminal height.
	DefaultRows = 24

	// DefaultCols is the initial terminal width.
	DefaultCols = 80
)

// PTY is the master side of a pseudo-terminal.
type PTY interface {
	// Read reads data from the PTY output.
	io.Reader

	// Write writes data to the PTY input.
	io.Writer

	// Close closes the PTY and releases resources.
	io.Closer

	// Resize changes the PTY window size to the specified dimensions.
	Resize(rows, cols uint16) error
}

// StartOptions contains options for starting a PTY process.
type StartOptions struct {
	// Command is the command to execute.
	Command string

	// Args are the arguments to pass to the command.
	Args []string

	// Env is the environment variables for the process.
	// If nil, the current process environment is used.
	Env []string

	// Dir is the working directory for the process.
	// If empty, the current directory is used.
	Dir string

	// InitialRows is the initial number of rows for the PTY.
	InitialRows uint16

	// InitialCols is the initial number of columns for the PTY.
	InitialCols uint16

	// Echo keeps terminal echo on. With echo off, input written to the
	// PTY is not reflected back into its output.
	Echo bool
}

// Process represents a running PTY process.
type Process struct {
	// PTY is the pseudo-terminal interface.
	PTY PTY

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// pid is the process ID.
	pid int
}

// PID returns the process ID of the running process.
func (p *Process) PID() int {
	return p.pid
}

// Wait waits for the process to exit and returns the exit code.
// Returns -1 if the process was killed by a signal.
func (p *Process) Wait() (int, error) {
	err := p.Cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// Kill terminates the process together with its session's process group.
func (p *Process) Kill() error {
	if p.Cmd.Process != nil {
		return killGroup(p.Cmd.Process)
	}
	return nil
}

// Close closes the PTY and releases all resources.
func (p *Process) Close() error {
	return p.PTY.Close()
}

func (o *StartOptions) size() (rows, cols uint16) {
	rows, cols = o.InitialRows, o.InitialCols
	if rows == 0 {
		rows = DefaultRows
	}
	if cols == 0 {
		cols = DefaultCols
	}
	return rows, cols
}

//go:build !windows
// +build !windows

package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// unixPTY implements the PTY interface for Unix-like systems (Linux, macOS).
type unixPTY struct {
	master *os.File
}

// Read reads data from the PTY output.
func (p *unixPTY) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

// Write writes data to the PTY input.
func (p *unixPTY) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

// Close closes the PTY master file descriptor.
func (p *unixPTY) Close() error {
	return p.master.Close()
}

// Resize changes the PTY window size.
func (p *unixPTY) Resize(rows, cols uint16) error {
	return pty.Setsize(p.master, &pty.Winsize{Rows: rows, Cols: cols})
}

// Start starts a new process attached to a freshly allocated PTY.
// It returns an error wrapping ErrUnavailable if no PTY could be opened.
func Start(opts StartOptions) (*Process, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rows, cols := opts.size()
	if err := pty.Setsize(master, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("failed to set window size: %w", err)
	}

	if !opts.Echo {
		if err := disableEcho(slave); err != nil {
			master.Close()
			slave.Close()
			return nil, fmt.Errorf("failed to disable echo: %w", err)
		}
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave

	// New session with the slave as controlling terminal
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	// The child holds its own copy of the slave.
	slave.Close()

	return &Process{
		PTY: &unixPTY{master: master},
		Cmd: cmd,
		pid: cmd.Process.Pid,
	}, nil
}

// disableEcho clears the ECHO flags of the terminal line discipline.
func disableEcho(tty *os.File) error {
	fd := int(tty.Fd())
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	termios.Lflag &^= unix.ECHO | unix.ECHONL
	return unix.IoctlSetTermios(fd, ioctlSetTermios, termios)
}

// killGroup sends SIGKILL to the process group led by proc. Start makes the
// child a session leader, so the group id is its pid.
func killGroup(proc *os.Process) error {
	err := unix.Kill(-proc.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

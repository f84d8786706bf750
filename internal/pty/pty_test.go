//go:build !windows

package pty

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startOrSkip(t *testing.T, opts StartOptions) *Process {
	t.Helper()
	p, err := Start(opts)
	if errors.Is(err, ErrUnavailable) {
		t.Skipf("no pseudo-terminal on this host: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Kill()
		p.Close()
	})
	return p
}

// readAll reads from the PTY until it reports an error (EIO once the child
// is gone) or the timeout expires.
func readAll(t *testing.T, p *Process, timeout time.Duration) string {
	t.Helper()
	out := make(chan string, 1)
	go func() {
		var sb strings.Builder
		io.Copy(&sb, p.PTY)
		out <- sb.String()
	}()
	select {
	case s := <-out:
		return s
	case <-time.After(timeout):
		t.Fatal("timeout reading PTY output")
		return ""
	}
}

func TestStart_RunsCommand(t *testing.T) {
	p := startOrSkip(t, StartOptions{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo hello"},
	})
	assert.Greater(t, p.PID(), 0)

	output := readAll(t, p, 5*time.Second)
	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, output, "hello")
}

func TestStart_EchoDisabled(t *testing.T) {
	p := startOrSkip(t, StartOptions{
		Command: "/bin/sh",
		Args:    []string{"-c", `read line; printf "got:%s|" "$line"`},
	})

	_, err := p.PTY.Write([]byte("ping\r"))
	require.NoError(t, err)

	output := readAll(t, p, 5*time.Second)
	p.Wait()

	assert.Contains(t, output, "got:ping|")
	assert.NotContains(t, strings.Replace(output, "got:ping|", "", 1), "ping",
		"input should not be echoed back")
}

func TestStart_ExitCode(t *testing.T) {
	p := startOrSkip(t, StartOptions{
		Command: "/bin/sh",
		Args:    []string{"-c", "exit 3"},
	})
	readAll(t, p, 5*time.Second)

	code, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(StartOptions{Command: "/nonexistent/cliver-tool"})
	require.Error(t, err)
	if errors.Is(err, ErrUnavailable) {
		t.Skip("no pseudo-terminal on this host")
	}
	assert.Contains(t, err.Error(), "failed to start process")
}

func TestStartOptions_Size(t *testing.T) {
	rows, cols := (&StartOptions{}).size()
	assert.Equal(t, uint16(DefaultRows), rows)
	assert.Equal(t, uint16(DefaultCols), cols)

	rows, cols = (&StartOptions{InitialRows: 40, InitialCols: 120}).size()
	assert.Equal(t, uint16(40), rows)
	assert.Equal(t, uint16(120), cols)
}

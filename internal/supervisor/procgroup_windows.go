//go:build windows
// +build windows

package supervisor

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills proc only; Windows has no process groups to signal.
func killProcessGroup(proc *os.Process) error {
	return proc.Kill()
}

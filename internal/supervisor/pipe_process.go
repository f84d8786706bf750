package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/demux"
	"github.com/danghica/cliver/internal/model"
)

// pipeLineTerminator ends every line written to the process stdin.
const pipeLineTerminator = "\n"

// pipeProcess is a Process attached to stdin, stdout and stderr pipes.
// Only stdout follows the tab convention; stderr lines are forwarded as written.
type pipeProcess struct {
	*process
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func startPipeProcess(opts Options, args, env []string, cb Callbacks, log *zap.SugaredLogger) (*pipeProcess, error) {
	cmd := exec.Command(opts.Bin, args...)
	cmd.Env = env
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	p := &pipeProcess{
		process: newProcess(model.TransportModePipe, pipeLineTerminator, opts.Driver, cb, log),
		cmd:     cmd,
		stdin:   stdin,
	}
	p.pid = cmd.Process.Pid

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		p.readLoop(stdout, demux.New(), p.deliver)
	}()
	go func() {
		defer readers.Done()
		p.readLoop(stderr, demux.NewStderr(), p.deliverRaw)
	}()
	go p.inputLoop(stdin)
	go p.waitLoop(&readers)

	log.Debugw("spawned process", "pid", p.pid, "mode", p.mode, "bin", opts.Bin, "args", args)
	return p, nil
}

// Terminate closes stdin and kills the process group, so children the tool
// started go down with it.
func (p *pipeProcess) Terminate() {
	if !p.markTerminated() {
		return
	}
	if err := p.stdin.Close(); err != nil {
		p.log.Debugw("closing stdin failed", "pid", p.pid, "error", err)
	}
	if err := killProcessGroup(p.cmd.Process); err != nil {
		p.log.Debugw("kill failed", "pid", p.pid, "error", err)
	}
}

// waitLoop waits for both output pipes to reach EOF before reaping the
// process, since Wait closes the pipes.
func (p *pipeProcess) waitLoop(readers *sync.WaitGroup) {
	readers.Wait()

	code := 0
	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code, err = exitErr.ExitCode(), nil
		} else {
			code = -1
		}
	}

	p.finish(code, err)
}

package supervisor

import (
	"time"

	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/demux"
	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/pty"
)

const (
	// ptyLineTerminator is the Enter key; the line discipline maps it to '\n'.
	ptyLineTerminator = "\r"

	// ptyDrainTimeout bounds how long output is drained after the process
	// exits. A grandchild still holding the terminal would keep it open.
	ptyDrainTimeout = 2 * time.Second
)

// ptyProcess is a Process attached to a pseudo-terminal. Its single output
// stream carries both halves of each record.
type ptyProcess struct {
	*process
	proc     *pty.Process
	readDone chan struct{}
}

func startPTYProcess(opts Options, args, env []string, cb Callbacks, log *zap.SugaredLogger) (*ptyProcess, error) {
	proc, err := pty.Start(pty.StartOptions{
		Command:     opts.Bin,
		Args:        args,
		Env:         env,
		Dir:         opts.Dir,
		InitialRows: pty.DefaultRows,
		InitialCols: pty.DefaultCols,
	})
	if err != nil {
		return nil, err
	}

	p := &ptyProcess{
		process:  newProcess(model.TransportModePTY, ptyLineTerminator, opts.Driver, cb, log),
		proc:     proc,
		readDone: make(chan struct{}),
	}
	p.pid = proc.PID()

	go p.inputLoop(proc.PTY)
	go func() {
		defer close(p.readDone)
		p.readLoop(proc.PTY, demux.New(), p.deliver)
	}()
	go p.waitLoop()

	log.Debugw("spawned process", "pid", p.pid, "mode", p.mode, "bin", opts.Bin, "args", args)
	return p, nil
}

// Terminate kills the process. A PTY has no separate input to close.
func (p *ptyProcess) Terminate() {
	if !p.markTerminated() {
		return
	}
	if err := p.proc.Kill(); err != nil {
		p.log.Debugw("kill failed", "pid", p.pid, "error", err)
	}
}

// waitLoop waits for the process, drains the terminal and reports the exit.
func (p *ptyProcess) waitLoop() {
	code, err := p.proc.Wait()

	select {
	case <-p.readDone:
	case <-time.After(ptyDrainTimeout):
	}

	if cerr := p.proc.Close(); cerr != nil {
		p.log.Debugw("closing pty failed", "pid", p.pid, "error", cerr)
	}
	select {
	case <-p.readDone:
	case <-time.After(ptyDrainTimeout):
		p.log.Debugw("pty reader still blocked after close", "pid", p.pid)
	}

	p.finish(code, err)
}

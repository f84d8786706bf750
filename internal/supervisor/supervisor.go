// Package supervisor runs the wrapped tool for a session.
//
// A Process is attached either to a pseudo-terminal or to plain pipes. Both
// variants expose the same capability: write a line, receive records, learn
// about exit, terminate. Callers never branch on the mode.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/demux"
	"github.com/danghica/cliver/internal/driver"
	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/pty"
)

// ProcessExitedText is the stderr of the record synthesized when a process
// exits without having delivered any output.
const ProcessExitedText = "Process exited."

// ErrInputClosed is returned by Process.Write once the input channel is gone.
var ErrInputClosed = errors.New("process input closed")

// Process is a running tool instance.
type Process interface {
	// Mode returns how the process is attached.
	Mode() model.TransportMode

	// PID returns the OS process ID.
	PID() int

	// Write queues line, followed by a line terminator, for the process input.
	// It never blocks on the process.
	Write(line string) error

	// Terminate closes the input (pipe mode only) and kills the process.
	// It does not wait for the process to exit.
	Terminate()

	// Done is closed after OnExit has returned.
	Done() <-chan struct{}
}

// ExitStatus describes how a process ended.
type ExitStatus struct {
	// Code is the exit code, -1 if the process was killed by a signal.
	Code int

	// Err is set when waiting for the process failed.
	Err error

	// Terminated is true if the exit followed a Terminate call.
	Terminated bool

	// Tail holds the last bytes of raw output.
	Tail string
}

// Callbacks receive process events. They are called from supervisor
// goroutines and must not block for long.
type Callbacks struct {
	// OnRecord is called for every record delivered to the session.
	OnRecord func(rec demux.Record)

	// OnExit is called once, after the last OnRecord.
	OnExit func(status ExitStatus)
}

// Spawner starts processes. Session code depends on this interface.
type Spawner interface {
	Spawn(ctx context.Context, cb Callbacks) (Process, error)
}

// Options configures a Supervisor.
type Options struct {
	// Bin is the tool binary.
	Bin string

	// Driver supplies the tool arguments and filters its output.
	Driver driver.Driver

	// Dir is the working directory of the tool.
	Dir string

	// Env is appended to the current process environment.
	Env []string

	// UsePTY selects PTY mode when a terminal can be allocated.
	UsePTY bool
}

// Supervisor spawns tool processes.
type Supervisor struct {
	opts Options
	log  *zap.SugaredLogger
}

// New creates a Supervisor.
func New(opts Options, log *zap.SugaredLogger) (*Supervisor, error) {
	if opts.Bin == "" {
		return nil, fmt.Errorf("tool binary is required")
	}
	if opts.Driver == nil {
		opts.Driver = driver.NewGenericDriver(nil)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Supervisor{opts: opts, log: log}, nil
}

// Spawn starts a process. PTY mode is tried first when enabled; if no PTY
// can be allocated the process is started over pipes instead.
func (s *Supervisor) Spawn(ctx context.Context, cb Callbacks) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := append(os.Environ(), s.opts.Env...)
	args := s.opts.Driver.Args()

	if s.opts.UsePTY {
		p, err := startPTYProcess(s.opts, args, env, cb, s.log)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, pty.ErrUnavailable) {
			return nil, err
		}
		s.log.Debugw("pty unavailable, using pipes", "error", err)
	}

	p, err := startPipeProcess(s.opts, args, env, cb, s.log)
	if err != nil {
		return nil, err
	}
	return p, nil
}

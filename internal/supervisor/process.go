package supervisor

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/smallnest/chanx"
	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/buffer"
	"github.com/danghica/cliver/internal/demux"
	"github.com/danghica/cliver/internal/driver"
	"github.com/danghica/cliver/internal/model"
)

// DefaultReadBufferSize is the buffer size for reading process output.
const DefaultReadBufferSize = 4096

// process holds the state shared by the PTY and pipe variants.
type process struct {
	mode       model.TransportMode
	pid        int
	terminator string

	cb     Callbacks
	driver driver.Driver
	log    *zap.SugaredLogger

	// input is drained by inputLoop; ctx bounds its lifetime.
	ctx    context.Context
	cancel context.CancelFunc
	input  *chanx.UnboundedChan[string]

	tail       *buffer.RingBuffer
	delivered  atomic.Int64
	terminated atomic.Bool
	exited     atomic.Bool

	exitOnce sync.Once
	done     chan struct{}
}

func newProcess(mode model.TransportMode, terminator string, d driver.Driver, cb Callbacks, log *zap.SugaredLogger) *process {
	ctx, cancel := context.WithCancel(context.Background())
	return &process{
		mode:       mode,
		terminator: terminator,
		cb:         cb,
		driver:     d,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		input:      chanx.NewUnboundedChan[string](ctx, 16),
		tail:       buffer.NewRingBuffer(buffer.DefaultTailSize),
		done:       make(chan struct{}),
	}
}

// Mode returns how the process is attached.
func (p *process) Mode() model.TransportMode {
	return p.mode
}

// PID returns the OS process ID.
func (p *process) PID() int {
	return p.pid
}

// Done is closed after the exit callback has returned.
func (p *process) Done() <-chan struct{} {
	return p.done
}

// Write queues line for the input loop.
func (p *process) Write(line string) error {
	if p.terminated.Load() || p.exited.Load() {
		return ErrInputClosed
	}
	select {
	case p.input.In <- line:
		return nil
	case <-p.ctx.Done():
		return ErrInputClosed
	}
}

// inputLoop writes queued lines to w until the process goes away.
func (p *process) inputLoop(w io.Writer) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case line, ok := <-p.input.Out:
			if !ok {
				return
			}
			if _, err := io.WriteString(w, line+p.terminator); err != nil {
				p.log.Debugw("write to process input failed", "pid", p.pid, "error", err)
				return
			}
		}
	}
}

// readLoop feeds everything read from r through d, which belongs to this
// loop, and passes the resulting records to deliver. The partial trailing
// line is flushed when r ends.
func (p *process) readLoop(r io.Reader, d *demux.Demuxer, deliver func(demux.Record)) {
	buf := make([]byte, DefaultReadBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.tail.Write(buf[:n])
			for _, rec := range d.Feed(buf[:n]) {
				deliver(rec)
			}
		}
		if err != nil {
			break
		}
	}
	if rec, ok := d.Flush(); ok {
		deliver(rec)
	}
}

// deliver runs rec through the driver filter and counts it as produced output.
func (p *process) deliver(rec demux.Record) {
	rec, keep := p.driver.Filter(rec)
	if !keep {
		return
	}
	p.deliverRaw(rec)
}

// deliverRaw counts rec as produced output and emits it unfiltered.
func (p *process) deliverRaw(rec demux.Record) {
	p.delivered.Add(1)
	p.emit(rec)
}

func (p *process) emit(rec demux.Record) {
	if p.cb.OnRecord != nil {
		p.cb.OnRecord(rec)
	}
}

// markTerminated flags the process as terminated. It returns false if it
// already was.
func (p *process) markTerminated() bool {
	if !p.terminated.CompareAndSwap(false, true) {
		return false
	}
	p.cancel()
	return true
}

// finish reports the exit. A process that never delivered a record gets a
// synthesized one first so the client learns about the exit.
func (p *process) finish(code int, err error) {
	p.exitOnce.Do(func() {
		p.exited.Store(true)
		p.cancel()

		if p.delivered.Load() == 0 {
			p.emit(demux.Record{Stderr: ProcessExitedText})
		}

		status := ExitStatus{
			Code:       code,
			Err:        err,
			Terminated: p.terminated.Load(),
			Tail:       p.tail.String(),
		}
		p.log.Debugw("process exited", "pid", p.pid, "mode", p.mode, "code", code, "error", err, "terminated", status.Terminated)
		if p.cb.OnExit != nil {
			p.cb.OnExit(status)
		}
		close(p.done)
	})
}

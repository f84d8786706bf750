// Package session bridges one client connection to one tool process.
//
// Each Session is an actor: a single goroutine consumes an unbounded inbox
// of events (client lines, process records, process exit, idle fire,
// disconnect, terminate) and owns all session state. Other goroutines only
// post events.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/chanx"
	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/demux"
	"github.com/danghica/cliver/internal/model"
	"github.com/danghica/cliver/internal/supervisor"
	"github.com/danghica/cliver/internal/watchdog"
	"github.com/danghica/cliver/internal/ws"
)

const (
	// ExitCommand closes the session when sent as a line.
	ExitCommand = "exit"

	// IdleMessage is sent with the close notification of an idle session.
	IdleMessage = "session idle. exiting"

	// ShutdownMessage is sent with the close notification on server shutdown.
	ShutdownMessage = "server shutting down"

	// TerminatedMessage is sent when a session is closed administratively.
	TerminatedMessage = "session terminated"

	// DefaultIdleTimeout closes sessions after five minutes without input.
	DefaultIdleTimeout = 5 * time.Minute
)

// Transport delivers messages to the client.
type Transport interface {
	Send(msg *ws.ServerMessage)
	Close()
}

// Recorder receives session events for the append-only event log.
type Recorder interface {
	Record(ev model.Event)
}

// Config holds per-session settings.
type Config struct {
	// IdleTimeout closes the session after this long without a non-empty
	// line. Zero or less disables it.
	IdleTimeout time.Duration

	// NormalizeInput rewrites line breaks and semicolons before a line is
	// forwarded, see NormalizeInput.
	NormalizeInput bool
}

type eventKind int

const (
	eventLine eventKind = iota
	eventRecord
	eventExit
	eventIdle
	eventDisconnect
	eventTerminate
)

type event struct {
	kind eventKind

	line   string
	reason string

	// gen identifies the process that produced a record or exit.
	gen    uint64
	record demux.Record
	status supervisor.ExitStatus

	token uint64
}

// Session is one client connection and the tool process it drives.
type Session struct {
	id        string
	createdAt time.Time

	transport Transport
	spawner   supervisor.Spawner
	recorder  Recorder
	cfg       Config
	log       *zap.SugaredLogger

	inbox    *chanx.UnboundedChan[event]
	cancel   context.CancelFunc
	done     chan struct{}
	watchdog *watchdog.Watchdog

	// Owned by the actor goroutine.
	state model.SessionState
	proc  supervisor.Process
	gen   uint64

	// info mirrors the actor state for Info.
	mu   sync.RWMutex
	info model.SessionInfo
}

// New creates a session. Nothing happens until Run is called.
func New(id string, transport Transport, spawner supervisor.Spawner, recorder Recorder, cfg Config, log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	s := &Session{
		id:        id,
		createdAt: now,
		transport: transport,
		spawner:   spawner,
		recorder:  recorder,
		cfg:       cfg,
		log:       log.With("session", id),
		inbox:     chanx.NewUnboundedChan[event](ctx, 16),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     model.SessionStateEmpty,
		info: model.SessionInfo{
			ID:        id,
			State:     model.SessionStateEmpty,
			Mode:      model.TransportModeNone,
			CreatedAt: now,
		},
	}
	s.watchdog = watchdog.New(cfg.IdleTimeout, func(token uint64) {
		s.post(event{kind: eventIdle, token: token})
	})
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session has closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Info returns a snapshot of the session.
func (s *Session) Info() model.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.info
	if info.PID != nil {
		pid := *info.PID
		info.PID = &pid
	}
	return info
}

// Submit queues a client line.
func (s *Session) Submit(line string) {
	s.post(event{kind: eventLine, line: line})
}

// Disconnect tells the session its connection is gone.
func (s *Session) Disconnect() {
	s.post(event{kind: eventDisconnect})
}

// Terminate closes the session and notifies the client with message.
func (s *Session) Terminate(message string) {
	s.post(event{kind: eventTerminate, reason: message})
}

// post queues ev unless the session has closed.
func (s *Session) post(ev event) {
	select {
	case <-s.done:
	case s.inbox.In <- ev:
	}
}

// Run processes events until the session closes. Canceling ctx closes the
// session with a shutdown notification.
func (s *Session) Run(ctx context.Context) {
	defer s.cancel()
	defer close(s.done)

	s.recorder.Record(model.NewEvent(s.id, model.EventOpen))
	s.log.Debugw("session opened", "idle_timeout", s.cfg.IdleTimeout)

	// A client that never sends a line is closed too.
	s.watchdog.Arm()

	for s.state != model.SessionStateClosed {
		select {
		case <-ctx.Done():
			s.close(ShutdownMessage, "shutdown", true)
		case ev := <-s.inbox.Out:
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventLine:
		s.handleLine(ctx, ev.line)
	case eventRecord:
		s.handleRecord(ev.gen, ev.record)
	case eventExit:
		s.handleExit(ev.gen, ev.status)
	case eventIdle:
		if s.watchdog.Current(ev.token) {
			s.log.Infow("closing idle session")
			s.close(IdleMessage, "idle", true)
		}
	case eventDisconnect:
		s.close("", "disconnect", false)
	case eventTerminate:
		s.close(ev.reason, "terminated", true)
	}
}

func (s *Session) handleLine(ctx context.Context, line string) {
	if s.cfg.NormalizeInput {
		line = NormalizeInput(line)
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if trimmed == ExitCommand {
		s.close("", "exit", true)
		return
	}

	ev := model.NewEvent(s.id, model.EventInput)
	ev.Line = line
	s.recorder.Record(ev)
	s.touch()

	switch s.state {
	case model.SessionStateEmpty:
		if err := s.spawn(ctx); err != nil {
			s.log.Warnw("failed to spawn tool", "error", err)
			ev := model.NewEvent(s.id, model.EventSpawnError)
			ev.Reason = err.Error()
			s.recorder.Record(ev)
			s.transport.Send(ws.ErrorMessage(err.Error()))
			return
		}
		s.write(line)
		s.watchdog.Arm()
	case model.SessionStateActive:
		s.write(line)
		s.watchdog.Arm()
	case model.SessionStateExited:
		s.transport.Send(ws.RecordMessage("", supervisor.ProcessExitedText))
	}
}

func (s *Session) spawn(ctx context.Context) error {
	gen := s.gen + 1
	proc, err := s.spawner.Spawn(ctx, supervisor.Callbacks{
		OnRecord: func(rec demux.Record) {
			s.post(event{kind: eventRecord, gen: gen, record: rec})
		},
		OnExit: func(status supervisor.ExitStatus) {
			s.post(event{kind: eventExit, gen: gen, status: status})
		},
	})
	if err != nil {
		return err
	}

	s.gen = gen
	s.proc = proc
	s.setState(model.SessionStateActive, func(info *model.SessionInfo) {
		pid := proc.PID()
		info.Mode = proc.Mode()
		info.PID = &pid
	})
	s.log.Infow("tool started", "pid", proc.PID(), "mode", proc.Mode())
	return nil
}

// write forwards line to the process. A closed input means the process died
// before its exit event was handled; the line gets the exited-state reply.
func (s *Session) write(line string) {
	err := s.proc.Write(line)
	if err == nil {
		return
	}
	s.log.Debugw("write to tool failed", "error", err)
	if errors.Is(err, supervisor.ErrInputClosed) {
		s.transport.Send(ws.RecordMessage("", supervisor.ProcessExitedText))
	}
}

func (s *Session) handleRecord(gen uint64, rec demux.Record) {
	if gen != s.gen || s.state != model.SessionStateActive {
		return
	}
	s.transport.Send(ws.RecordMessage(rec.Stdout, rec.Stderr))

	ev := model.NewEvent(s.id, model.EventOutput)
	ev.Stdout = rec.Stdout
	ev.Stderr = rec.Stderr
	s.recorder.Record(ev)
}

func (s *Session) handleExit(gen uint64, status supervisor.ExitStatus) {
	if gen != s.gen || s.state != model.SessionStateActive {
		return
	}
	s.setState(model.SessionStateExited, nil)
	s.log.Infow("tool exited", "code", status.Code, "error", status.Err)

	ev := model.NewEvent(s.id, model.EventExit)
	ev.Mode = s.proc.Mode()
	code := status.Code
	ev.Code = &code
	if status.Err != nil {
		ev.Reason = status.Err.Error()
	}
	ev.Stdout = status.Tail
	s.recorder.Record(ev)
}

// close moves the session to closed. The process is killed without waiting
// for it; its late events are dropped with the inbox.
func (s *Session) close(message, reason string, notify bool) {
	s.watchdog.Disarm()
	if s.proc != nil && s.state == model.SessionStateActive {
		s.proc.Terminate()
	}
	s.setState(model.SessionStateClosed, nil)

	if notify {
		s.transport.Send(ws.ClosedMessage(message))
	}
	s.transport.Close()

	if reason == "idle" {
		s.recorder.Record(model.NewEvent(s.id, model.EventIdle))
	}
	ev := model.NewEvent(s.id, model.EventClose)
	ev.Reason = reason
	s.recorder.Record(ev)
	s.log.Debugw("session closed", "reason", reason)
}

func (s *Session) setState(state model.SessionState, update func(info *model.SessionInfo)) {
	s.state = state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.State = state
	if update != nil {
		update(&s.info)
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.LastInput = time.Now().UTC()
}

type nopRecorder struct{}

func (nopRecorder) Record(model.Event) {}

// Package eventlog records session events to append-only sinks.
//
// Recording never fails from the caller's point of view: sink errors are
// logged at debug level and dropped.
package eventlog

import (
	"context"
	"sync"

	"github.com/smallnest/chanx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/danghica/cliver/internal/model"
)

// Sink stores events.
type Sink interface {
	Write(ev model.Event) error
	Close() error
}

// entry is a queued event, or a sync marker when synced is set.
type entry struct {
	ev     model.Event
	synced chan struct{}
}

// Logger fans events out to its sinks. Record only queues the event; one
// goroutine drains the queue to the sinks in order.
type Logger struct {
	sinks []Sink
	log   *zap.SugaredLogger

	queue   *chanx.UnboundedChan[entry]
	drained chan struct{}

	// mu guards closed and the queue's input against Close.
	mu     sync.RWMutex
	closed bool
}

// New creates a Logger. With no sinks it discards everything.
func New(log *zap.SugaredLogger, sinks ...Sink) *Logger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	l := &Logger{sinks: sinks, log: log, drained: make(chan struct{})}
	if len(sinks) == 0 {
		close(l.drained)
		return l
	}
	l.queue = chanx.NewUnboundedChan[entry](context.Background(), 64)
	go l.drain()
	return l
}

// Discard returns a Logger without sinks.
func Discard() *Logger {
	return New(nil)
}

// Record queues ev for every sink.
func (l *Logger) Record(ev model.Event) {
	l.enqueue(entry{ev: ev})
}

// Sync waits until every event recorded before the call has been written.
func (l *Logger) Sync(ctx context.Context) error {
	synced := make(chan struct{})
	if !l.enqueue(entry{synced: synced}) {
		return nil
	}
	select {
	case <-synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) enqueue(e entry) bool {
	if l.queue == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	l.queue.In <- e
	return true
}

func (l *Logger) drain() {
	defer close(l.drained)
	for e := range l.queue.Out {
		if e.synced != nil {
			close(e.synced)
			continue
		}
		for _, sink := range l.sinks {
			if err := sink.Write(e.ev); err != nil {
				l.log.Debugw("event log write failed", "session", e.ev.Session, "type", e.ev.Type, "error", err)
			}
		}
	}
}

// Close writes the queued events and closes every sink. Later events are
// dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	if l.queue != nil {
		close(l.queue.In)
	}
	l.mu.Unlock()

	<-l.drained

	var err error
	for _, sink := range l.sinks {
		err = multierr.Append(err, sink.Close())
	}
	return err
}

// Package watchdog implements a resettable single-shot inactivity timer.
package watchdog

import (
	"sync"
	"time"
)

// Watchdog fires once after a period without Arm calls.
//
// Every Arm starts a new generation. The fire callback receives the
// generation token of the timer that expired; owners that serialize events
// through a queue call Current to discard fires that were superseded while
// queued.
type Watchdog struct {
	timeout time.Duration
	onFire  func(token uint64)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	armed bool
}

// New creates a disarmed watchdog. A timeout of zero or less disables it.
func New(timeout time.Duration, onFire func(token uint64)) *Watchdog {
	return &Watchdog{timeout: timeout, onFire: onFire}
}

// Enabled reports whether the watchdog can fire at all.
func (w *Watchdog) Enabled() bool {
	return w.timeout > 0
}

// Timeout returns the configured timeout.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Arm (re)starts the timer. The previous timer, if any, is stopped.
func (w *Watchdog) Arm() {
	if !w.Enabled() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	w.armed = true
	token := w.gen
	w.timer = time.AfterFunc(w.timeout, func() {
		w.fire(token)
	})
}

// Disarm stops the timer. Fires already in flight become stale.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	w.armed = false
}

// Current reports whether token belongs to the live generation.
func (w *Watchdog) Current(token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed && token == w.gen
}

func (w *Watchdog) fire(token uint64) {
	if !w.Current(token) {
		return
	}
	if w.onFire != nil {
		w.onFire(token)
	}
}

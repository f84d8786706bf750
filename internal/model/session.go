package model

import (
	"time"
)

// SessionState represents where a session is in its lifecycle.
type SessionState string

const (
	// SessionStateEmpty means no subprocess has been spawned yet.
	SessionStateEmpty SessionState = "empty"
	// SessionStateActive means the subprocess is running.
	SessionStateActive SessionState = "active"
	// SessionStateExited means the subprocess ended while the connection stayed open.
	SessionStateExited SessionState = "exited"
	// SessionStateClosed is terminal.
	SessionStateClosed SessionState = "closed"
)

// TransportMode is how the subprocess is attached.
type TransportMode string

const (
	TransportModeNone TransportMode = "none"
	TransportModePTY  TransportMode = "pty"
	TransportModePipe TransportMode = "pipe"
)

// SessionInfo is a point-in-time snapshot of a session.
type SessionInfo struct {
	ID        string        `json:"id"`
	State     SessionState  `json:"state"`
	Mode      TransportMode `json:"mode"`
	PID       *int          `json:"pid,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	LastInput time.Time     `json:"lastInput,omitempty"`
}

// Duration returns how long the session has been open.
func (s *SessionInfo) Duration() time.Duration {
	return time.Since(s.CreatedAt)
}

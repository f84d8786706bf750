package model

import "time"

// EventType identifies an entry of the session event log.
type EventType string

const (
	EventOpen       EventType = "open"
	EventInput      EventType = "input"
	EventOutput     EventType = "output"
	EventSpawnError EventType = "spawn_error"
	EventExit       EventType = "exit"
	EventIdle       EventType = "idle"
	EventClose      EventType = "close"
)

// Event is one line of the append-only session event log.
type Event struct {
	Time    time.Time     `json:"time"`
	Session string        `json:"session"`
	Type    EventType     `json:"type"`
	Mode    TransportMode `json:"mode,omitempty"`
	Line    string        `json:"line,omitempty"`
	Stdout  string        `json:"stdout,omitempty"`
	Stderr  string        `json:"stderr,omitempty"`
	Code    *int          `json:"code,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(sessionID string, eventType EventType) Event {
	return Event{
		Time:    time.Now().UTC(),
		Session: sessionID,
		Type:    eventType,
	}
}

package ws

import (
	"bytes"
	"encoding/json"
)

// ClientMessage is a message from the client.
type ClientMessage struct {
	Line json.RawMessage `json:"line"`
}

// Text returns the line as text. A JSON string yields its value, any other
// scalar yields its literal JSON text, and a missing or null line yields "".
func (m *ClientMessage) Text() string {
	raw := bytes.TrimSpace(m.Line)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// ParseClientMessage decodes a client frame. Only JSON objects are accepted.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ServerMessage is a message to the client. Absent fields are omitted.
type ServerMessage struct {
	Stdout        *string `json:"stdout,omitempty"`
	Stderr        *string `json:"stderr,omitempty"`
	SessionClosed bool    `json:"sessionClosed,omitempty"`
}

// RecordMessage carries one output record. Both halves are always present.
func RecordMessage(stdout, stderr string) *ServerMessage {
	return &ServerMessage{Stdout: &stdout, Stderr: &stderr}
}

// ErrorMessage carries only an error text.
func ErrorMessage(stderr string) *ServerMessage {
	return &ServerMessage{Stderr: &stderr}
}

// ClosedMessage announces the end of the session, with an optional
// explanatory stdout.
func ClosedMessage(stdout string) *ServerMessage {
	msg := &ServerMessage{SessionClosed: true}
	if stdout != "" {
		msg.Stdout = &stdout
	}
	return msg
}

// Package chat implements the real-time room channel: the wire events, the
// server-side room fan-out, and the client session that renders a transcript.
package chat

import (
	"encoding/json"
	"time"
)

// EventType discriminates envelopes on the room channel.
type EventType string

const (
	// EventJoin announces a user entering a room (client to server).
	EventJoin EventType = "join"
	// EventMessage carries a plain chat message in either direction.
	EventMessage EventType = "message"
	// EventLeave announces a user leaving a room (client to server); the
	// server echoes it back as the acknowledgment for explicit logout.
	EventLeave EventType = "leave"
	// EventHistory delivers the bulk history payload on join.
	EventHistory EventType = "load_chat_history"
	// EventStreamedMessage carries one chunk of an in-flight agent reply.
	EventStreamedMessage EventType = "streamed_message"
	// EventFinalMessage carries the canonical text of a finished agent reply.
	EventFinalMessage EventType = "final_message"
)

// Envelope is the JSON frame exchanged over the room channel. History stays
// raw so a malformed payload fails only that render attempt.
type Envelope struct {
	Type      EventType       `json:"type"`
	User      string          `json:"user,omitempty"`
	Room      string          `json:"room,omitempty"`
	Message   string          `json:"message,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Persona   string          `json:"persona,omitempty"`
	StreamID  string          `json:"stream_id,omitempty"`
	History   json.RawMessage `json:"history,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

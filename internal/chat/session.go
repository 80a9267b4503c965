package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/companionlabs/companion/internal/domain"
	"github.com/companionlabs/companion/internal/persona"
)

// State tracks the session lifecycle.
type State int

const (
	// StateJoining means the join event has not been acknowledged yet.
	StateJoining State = iota
	// StateActive means the session is exchanging room events.
	StateActive
	// StateLeaving means a leave event has been emitted.
	StateLeaving
)

// Conn is the bidirectional channel the session speaks over. The production
// implementation wraps a websocket connection; tests substitute a fake.
type Conn interface {
	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (Envelope, error)
	Close(reason string) error
}

// stream is the single mutable accumulator for one in-flight agent reply.
// Owned exclusively by the session; nil whenever no stream is pending.
type stream struct {
	id      string
	element int
	partial strings.Builder
}

// Session is one user's attachment to a room. All event handling runs on the
// goroutine driving Run, so the transcript and the streaming accumulator
// need no locking.
type Session struct {
	profile    domain.Profile
	room       string
	conn       Conn
	transcript *Transcript
	state      State
	pending    *stream
	leaveAck   chan struct{}
	now        func() time.Time
}

// NewSession builds a session for the given user snapshot and room. The
// transcript localizes into the profile's timezone.
func NewSession(profile domain.Profile, room string, conn Conn) (*Session, error) {
	transcript, err := NewTranscript(profile.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return &Session{
		profile:    profile,
		room:       room,
		conn:       conn,
		transcript: transcript,
		state:      StateJoining,
		leaveAck:   make(chan struct{}),
		now:        time.Now,
	}, nil
}

// Transcript exposes the rendered chat log.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Join emits the join event with user identity and room id. The session
// becomes active as soon as the event is on the wire; history arrives as a
// regular inbound event.
func (s *Session) Join(ctx context.Context) error {
	err := s.conn.Send(ctx, Envelope{
		Type: EventJoin,
		User: s.profile.FirstName,
		Room: s.room,
	})
	if err != nil {
		return fmt.Errorf("join room %s: %w", s.room, err)
	}
	s.state = StateActive
	slog.Info("Joined chat room", "room", s.room, "user", s.profile.FirstName)
	return nil
}

// SendMessage sends a user message, appends it locally, and shows the
// typing indicator in anticipation of the agent reply. Blank input is
// ignored.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.state != StateActive {
		return fmt.Errorf("send message: session not active")
	}

	err := s.conn.Send(ctx, Envelope{
		Type:    EventMessage,
		User:    s.profile.FirstName,
		Room:    s.room,
		Message: text,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if appendErr := s.transcript.Append(domain.ChatMessage{
		Sender:     domain.SenderUser,
		SenderName: s.profile.FirstName,
		Body:       text,
		Timestamp:  s.now().UTC(),
	}); appendErr != nil {
		return fmt.Errorf("render sent message: %w", appendErr)
	}
	s.transcript.ShowTyping()
	return nil
}

// Leave emits the leave event without waiting for a response. Used on page
// unload, which must never block.
func (s *Session) Leave(ctx context.Context) {
	s.state = StateLeaving
	if err := s.conn.Send(ctx, Envelope{Type: EventLeave, User: s.profile.FirstName, Room: s.room}); err != nil {
		slog.Debug("Leave event not delivered", "room", s.room, "error", err)
	}
}

// LeaveAndWait emits the leave event and blocks until the server echoes it
// back or the context expires. Used for explicit logout, which redirects
// only after acknowledgment.
func (s *Session) LeaveAndWait(ctx context.Context) error {
	s.state = StateLeaving
	if err := s.conn.Send(ctx, Envelope{Type: EventLeave, User: s.profile.FirstName, Room: s.room}); err != nil {
		return fmt.Errorf("leave room %s: %w", s.room, err)
	}
	select {
	case <-s.leaveAck:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("leave room %s: %w", s.room, ctx.Err())
	}
}

// Run receives and dispatches inbound events until the connection closes or
// the context is canceled. Events are handled strictly in delivery order.
func (s *Session) Run(ctx context.Context) error {
	for {
		env, err := s.conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || s.state == StateLeaving {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		s.Handle(env)
	}
}

// Handle applies one inbound event to the transcript. Exported so tests and
// alternative transports can drive the session directly.
func (s *Session) Handle(env Envelope) {
	switch env.Type {
	case EventHistory:
		s.handleHistory(env)
	case EventMessage:
		s.handleServiceMessage(env)
	case EventStreamedMessage:
		s.handleStreamChunk(env)
	case EventFinalMessage:
		s.handleFinal(env)
	case EventLeave:
		select {
		case <-s.leaveAck:
		default:
			close(s.leaveAck)
		}
	default:
		slog.Debug("Ignoring unknown chat event", "type", env.Type)
	}
}

// handleHistory replays the bulk history payload in order. A payload that
// fails to parse aborts this render attempt only; messages already rendered
// stay intact.
func (s *Session) handleHistory(env Envelope) {
	var entries []domain.HistoryEntry
	if err := json.Unmarshal(env.History, &entries); err != nil {
		slog.Warn("Malformed chat history payload", "room", s.room, "error", err)
		return
	}
	for _, entry := range entries {
		for _, msg := range entry.Messages {
			if err := s.transcript.Append(msg); err != nil {
				slog.Warn("Failed to render history message", "room", s.room, "error", err)
				return
			}
		}
	}
}

// handleServiceMessage renders a single system or service message and shows
// the typing indicator, mirroring the agent picking the conversation up.
func (s *Session) handleServiceMessage(env Envelope) {
	sender := domain.Sender(env.Sender)
	if sender == "" {
		sender = domain.SenderSystem
	}
	name := env.User
	if name == "" {
		name = "System"
	}
	ts := env.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	if err := s.transcript.Append(domain.ChatMessage{
		Sender:     sender,
		SenderName: name,
		Body:       env.Message,
		Timestamp:  ts,
	}); err != nil {
		slog.Warn("Failed to render message", "room", s.room, "error", err)
		return
	}
	s.transcript.ShowTyping()
}

// handleStreamChunk appends a chunk to the in-flight agent reply, opening a
// new accumulator if none is pending. A chunk carrying a different stream id
// while one is pending force-finalizes the old stream with its accumulated
// text before the new one begins, so two streams can never share an element.
func (s *Session) handleStreamChunk(env Envelope) {
	s.transcript.HideTyping()

	if s.pending != nil && env.StreamID != "" && env.StreamID != s.pending.id {
		slog.Warn("New stream began before final message; force-finalizing",
			"room", s.room, "stream_id", s.pending.id)
		s.finalizePending(s.pending.partial.String())
	}

	if s.pending == nil {
		name := env.Persona
		if name == "" {
			name = s.profile.CurrentPersona
		}
		ts := env.Timestamp
		if ts.IsZero() {
			ts = s.now().UTC()
		}
		element, err := s.transcript.BeginStream(persona.DisplayName(persona.ID(name)), ts)
		if err != nil {
			slog.Warn("Failed to begin streamed message", "room", s.room, "error", err)
			return
		}
		s.pending = &stream{id: env.StreamID, element: element}
	}

	s.pending.partial.WriteString(env.Message)
	s.transcript.AppendChunk(s.pending.element, env.Message)
}

// handleFinal replaces the accumulated text with the server's canonical
// version and clears the accumulator, readying the session for the next
// stream. A final without a pending stream renders as a plain agent message.
func (s *Session) handleFinal(env Envelope) {
	s.transcript.HideTyping()

	if s.pending == nil {
		ts := env.Timestamp
		if ts.IsZero() {
			ts = s.now().UTC()
		}
		name := env.Persona
		if name == "" {
			name = s.profile.CurrentPersona
		}
		if err := s.transcript.Append(domain.ChatMessage{
			Sender:     domain.SenderAgent,
			SenderName: persona.DisplayName(persona.ID(name)),
			Body:       env.Message,
			Timestamp:  ts,
		}); err != nil {
			slog.Warn("Failed to render final message", "room", s.room, "error", err)
		}
		return
	}

	s.finalizePending(env.Message)
}

func (s *Session) finalizePending(body string) {
	s.transcript.Finalize(s.pending.element, body)
	s.pending = nil
}

// StreamPending reports whether an agent reply is currently accumulating.
func (s *Session) StreamPending() bool {
	return s.pending != nil
}

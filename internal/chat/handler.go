package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/companionlabs/companion/internal/agent"
	"github.com/companionlabs/companion/internal/domain"
	"github.com/companionlabs/companion/internal/identity"
	"github.com/companionlabs/companion/internal/localtime"
	"github.com/companionlabs/companion/internal/store"
)

// Handler upgrades room connections and relays envelopes between clients,
// the store, and the persona responder.
type Handler struct {
	repo          store.Repository
	rooms         *RoomManager
	responder     *agent.Responder
	allowedOrigin string
	isDev         bool
	historyLimit  int
}

// NewHandler creates a chat websocket handler.
func NewHandler(repo store.Repository, rooms *RoomManager, responder *agent.Responder, allowedOrigin string, isDev bool, historyLimit int) *Handler {
	return &Handler{
		repo:          repo,
		rooms:         rooms,
		responder:     responder,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		historyLimit:  historyLimit,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	slog.Info("Chat connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept websocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := NewWSConn(ws)

	// The first frame must be the join event.
	join, err := conn.Receive(ctx)
	if err != nil || join.Type != EventJoin || join.Room == "" {
		slog.Warn("Chat connection without join event", "user_id", userID, "error", err)
		return
	}

	connID := uuid.NewString()
	room := join.Room
	h.rooms.Register(room, connID, ws)
	defer h.rooms.Unregister(room, connID, ws)

	user, err := h.repo.GetUser(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("Chat join for unknown user", "user_id", userID, "error", err)
		return
	}

	if err := h.sendHistory(ctx, conn, room, user.TimeZone); err != nil {
		slog.Warn("Failed to send chat history", "room", room, "error", err)
	}

	h.readLoop(ctx, conn, user, room, connID)
	slog.Info("Chat session ended", "user_id", userID, "room", room)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("Chat origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// sendHistory groups the room's stored messages into dated entries in the
// user's zone and delivers them as one bulk payload.
func (h *Handler) sendHistory(ctx context.Context, conn *WSConn, room, zone string) error {
	messages, err := h.repo.RoomHistory(ctx, room, h.historyLimit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	var entries []domain.HistoryEntry
	for _, msg := range messages {
		date, err := localtime.CalendarDate(msg.Timestamp, zone)
		if err != nil {
			return err
		}
		if len(entries) == 0 || entries[len(entries)-1].Date != date {
			entries = append(entries, domain.HistoryEntry{Date: date})
		}
		last := &entries[len(entries)-1]
		last.Messages = append(last.Messages, msg)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return conn.Send(ctx, Envelope{Type: EventHistory, Room: room, History: raw})
}

func (h *Handler) readLoop(ctx context.Context, conn *WSConn, user *domain.User, room, connID string) {
	for {
		env, err := conn.Receive(ctx)
		if err != nil {
			slog.Debug("Chat read ended", "room", room, "user_id", user.UserID, "error", err)
			return
		}

		switch env.Type {
		case EventMessage:
			h.handleUserMessage(ctx, user, room, connID, env)
		case EventLeave:
			// Echo the leave back as the logout acknowledgment.
			if err := conn.Send(ctx, Envelope{Type: EventLeave, User: env.User, Room: room}); err != nil {
				slog.Debug("Failed to send leave ack", "room", room, "error", err)
			}
			return
		default:
			slog.Debug("Ignoring client event", "type", env.Type, "room", room)
		}

		// Refresh presence asynchronously with its own timeout.
		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, user.UserID, time.Now()); err != nil {
				slog.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

// handleUserMessage persists and fans out a user message, then streams the
// persona's reply to the whole room.
func (h *Handler) handleUserMessage(ctx context.Context, user *domain.User, room, connID string, env Envelope) {
	if env.Message == "" {
		return
	}

	msg := domain.ChatMessage{
		ID:         uuid.NewString(),
		Room:       room,
		Sender:     domain.SenderUser,
		SenderName: env.User,
		Body:       env.Message,
		Timestamp:  time.Now().UTC(),
	}
	if err := h.repo.SaveMessage(ctx, msg); err != nil {
		slog.Warn("Failed to persist chat message", "room", room, "error", err)
	}

	// The sender already rendered its own message locally.
	h.rooms.Broadcast(ctx, room, Envelope{
		Type:      EventMessage,
		User:      env.User,
		Sender:    string(domain.SenderUser),
		Room:      room,
		Message:   env.Message,
		Timestamp: msg.Timestamp,
	}, connID)

	if h.responder == nil {
		return
	}
	go h.streamReply(room, user, env)
}

func (h *Handler) streamReply(room string, user *domain.User, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	req := agent.Request{
		Persona: user.CurrentPersona,
		User:    env.User,
		Message: env.Message,
		Room:    room,
	}

	for chunk, err := range h.responder.Reply(ctx, req) {
		if err != nil {
			slog.Warn("Persona reply stream failed", "room", room, "error", err)
			return
		}
		if chunk.Final {
			final := domain.ChatMessage{
				ID:         uuid.NewString(),
				Room:       room,
				Sender:     domain.SenderAgent,
				SenderName: chunk.Persona,
				Body:       chunk.Text,
				Timestamp:  time.Now().UTC(),
			}
			if err := h.repo.SaveMessage(ctx, final); err != nil {
				slog.Warn("Failed to persist persona reply", "room", room, "error", err)
			}
			h.rooms.Broadcast(ctx, room, Envelope{
				Type:      EventFinalMessage,
				Room:      room,
				Persona:   chunk.Persona,
				StreamID:  chunk.StreamID,
				Message:   chunk.Text,
				Timestamp: final.Timestamp,
			}, "")
			return
		}
		h.rooms.Broadcast(ctx, room, Envelope{
			Type:     EventStreamedMessage,
			Room:     room,
			Persona:  chunk.Persona,
			StreamID: chunk.StreamID,
			Message:  chunk.Text,
		}, "")
	}
}

package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// RoomManager tracks active websocket connections per room.
type RoomManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn // room -> connID -> conn
}

// NewRoomManager creates an empty room manager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a connection to a room. Re-registering the same connID
// replaces and closes the stale connection.
func (m *RoomManager) Register(room, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[room]; !exists {
		m.active[room] = make(map[string]*websocket.Conn)
	}
	if existing, exists := m.active[room][connID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	m.active[room][connID] = conn
	slog.Info("Chat connection registered", "room", room, "conn_id", connID)
}

// Unregister removes a connection from a room if it is still current.
func (m *RoomManager) Unregister(room, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.active[room]; ok {
		if current, exists := conns[connID]; exists && current == conn {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(m.active, room)
			}
			slog.Info("Chat connection unregistered", "room", room, "conn_id", connID)
		}
	}
}

// Broadcast delivers an envelope to every connection in a room, optionally
// skipping the originator.
func (m *RoomManager) Broadcast(ctx context.Context, room string, env Envelope, skipConnID string) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal broadcast envelope", "room", room, "error", err)
		return
	}

	m.mu.RLock()
	conns := make(map[string]*websocket.Conn, len(m.active[room]))
	for id, c := range m.active[room] {
		conns[id] = c
	}
	m.mu.RUnlock()

	for id, conn := range conns {
		if id == skipConnID {
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("Broadcast write failed", "room", room, "conn_id", id, "error", err)
		}
	}
}

// CloseRoom forcefully terminates every connection in a room.
func (m *RoomManager) CloseRoom(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[room]
	if !ok {
		return
	}
	for id, conn := range conns {
		_ = conn.Close(websocket.StatusNormalClosure, "room closed")
		slog.Info("Chat connection closed", "room", room, "conn_id", id)
	}
	delete(m.active, room)
}

// CloseAll terminates every connection in every room. Called on shutdown so
// clients see a clean close instead of a dropped TCP stream.
func (m *RoomManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for room, conns := range m.active {
		for _, conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, room)
	}
}

// ActiveCount returns the number of live connections in a room.
func (m *RoomManager) ActiveCount(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[room])
}

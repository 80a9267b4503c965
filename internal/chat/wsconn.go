package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
)

// WSConn adapts a websocket connection to the session's Conn interface.
type WSConn struct {
	ws *websocket.Conn
}

// Dial opens the room channel at the given websocket URL.
func Dial(ctx context.Context, url string) (*WSConn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat channel: %w", err)
	}
	return &WSConn{ws: ws}, nil
}

// NewWSConn wraps an already-accepted websocket connection.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// Send writes one envelope as a text frame.
func (c *WSConn) Send(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// Receive reads the next envelope off the wire.
func (c *WSConn) Receive(ctx context.Context) (Envelope, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return Envelope{}, fmt.Errorf("read envelope: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// Close closes the underlying websocket with a normal status.
func (c *WSConn) Close(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}

package domain

import (
	"time"
)

// Sender identifies who produced a chat message.
type Sender string

const (
	// SenderUser marks a message typed by the human in the room.
	SenderUser Sender = "user"
	// SenderAgent marks a message produced by the companion persona.
	SenderAgent Sender = "agent"
	// SenderSystem marks service notices injected by the server.
	SenderSystem Sender = "system"
)

// ChatMessage is a single entry in a room's transcript. Created on receipt
// from the channel or on local send; immutable once finalized.
type ChatMessage struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	Sender     Sender    `json:"sender"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryEntry is one dated group inside a bulk history payload.
type HistoryEntry struct {
	Date     string        `json:"date"`
	Messages []ChatMessage `json:"messages"`
}

// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/companionlabs/companion/internal/domain"
)

// ErrEmptyPreferenceValue is returned when a sparse preference update
// carries a key with an empty value. The client strips those before
// submission, so their presence indicates a broken caller.
var ErrEmptyPreferenceValue = errors.New("preference update contains an empty value")

// ErrUnknownPreferenceKey is returned for keys outside the fixed settings
// field set.
var ErrUnknownPreferenceKey = errors.New("unknown preference key")

// Registration bundles the fields captured by the registration flow.
type Registration struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	DateOfBirth  string
	Gender       string
	ZipCode      string
	City         string
	State        string
	Country      string
}

// Repository defines the interface for persisting users, preferences, and
// chat history.
type Repository interface {
	// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or refreshes a user record. Used by the identity
	// middleware to materialize visitor rows.
	UpsertUser(ctx context.Context, user *domain.User) error

	// CompleteRegistration upgrades a visitor row with registration fields.
	CompleteRegistration(ctx context.Context, userID string, reg Registration) error

	// EmailExists reports whether a registered user already owns the email.
	EmailExists(ctx context.Context, email string) (bool, error)

	// UsernameExists reports whether a registered user already owns the username.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// UpdatePreferences applies a sparse settings update. Every key must
	// belong to the fixed field set and carry a non-empty value.
	UpdatePreferences(ctx context.Context, userID string, fields map[string]string) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// SaveMessage appends a chat message to a room's history.
	SaveMessage(ctx context.Context, msg domain.ChatMessage) error

	// RoomHistory returns a room's messages in chronological order, capped
	// at limit (0 means no cap).
	RoomHistory(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Package domain contains core domain types for the companion application.
package domain

import (
	"time"
)

// UIMode selects how much visual decoration the client renders.
type UIMode string

const (
	// UIModeFancy enables persona imagery and animated surfaces.
	UIModeFancy UIMode = "fancy"
	// UIModeSimple renders the pared-down interface with generic imagery.
	UIModeSimple UIMode = "simple"
)

// User represents a registered user together with their preferences.
type User struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DateOfBirth    string    `json:"date_of_birth,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	ZipCode        string    `json:"zip_code,omitempty"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	Country        string    `json:"country,omitempty"`
	UIMode         UIMode    `json:"ui_mode"`
	CurrentPersona string    `json:"current_persona"`
	TimeZone       string    `json:"time_zone"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Profile is the read-only snapshot handed to page components at render
// time. Components never mutate it; after a preference save they re-request
// fresh state instead.
type Profile struct {
	FirstName      string `json:"firstName"`
	AvatarURL      string `json:"avatarURL"`
	CurrentPersona string `json:"currentPersona"`
	UIMode         UIMode `json:"UImode"`
	TimeZone       string `json:"timeZone"`
}

// Snapshot builds the render-time profile for a user.
func (u *User) Snapshot(avatarURL string) Profile {
	return Profile{
		FirstName:      u.FirstName,
		AvatarURL:      avatarURL,
		CurrentPersona: u.CurrentPersona,
		UIMode:         u.UIMode,
		TimeZone:       u.TimeZone,
	}
}

// IsRegistered reports whether the user completed registration. Visitor rows
// created by the identity middleware have no email until the registration
// flow upgrades them.
func (u *User) IsRegistered() bool {
	return u.Email != ""
}

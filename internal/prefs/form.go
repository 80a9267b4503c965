// Package prefs implements account-settings serialization and submission.
package prefs

import (
	"errors"
)

// ErrPasswordMismatch is returned when the new password and its confirmation
// differ. Submission must abort before any network call in that case.
var ErrPasswordMismatch = errors.New("new password and confirmation do not match")

// SettingsForm mirrors the fixed field set of the account-settings page.
// Empty fields are dropped during serialization so the backend only ever
// sees values the user actually changed.
type SettingsForm struct {
	FirstName       string
	LastName        string
	Email           string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
	ZipCode         string
	UIMode          string
	CurrentPersona  string
}

// Validate enforces the client-side gate: a non-empty new password must
// exactly match its confirmation field.
func (f *SettingsForm) Validate() error {
	if f.NewPassword != "" && f.NewPassword != f.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// Serialize collects the form into a sparse update map. Keys with empty
// values are never present. The confirmation field is a client-side check
// only and is never sent.
func (f *SettingsForm) Serialize() map[string]string {
	fields := map[string]string{
		"firstName":       f.FirstName,
		"lastName":        f.LastName,
		"email":           f.Email,
		"currentPassword": f.CurrentPassword,
		"newPassword":     f.NewPassword,
		"zipCode":         f.ZipCode,
		"UImode":          f.UIMode,
		"CurrentPersona":  f.CurrentPersona,
	}
	for key, value := range fields {
		if value == "" {
			delete(fields, key)
		}
	}
	return fields
}

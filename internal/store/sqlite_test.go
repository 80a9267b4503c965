package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/companionlabs/companion/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "companion.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo
}

func newVisitor(id string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		UserID:         id,
		UIMode:         domain.UIModeSimple,
		CurrentPersona: "jill",
		TimeZone:       "UTC",
		LastSeenAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestUpsertAndGetUser(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	user, err := repo.GetUser(ctx, "v_missing")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user != nil {
		t.Fatal("Expected nil for missing user")
	}

	if err := repo.UpsertUser(ctx, newVisitor("v_1")); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	user, err = repo.GetUser(ctx, "v_1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user == nil {
		t.Fatal("Expected user after upsert")
	}
	if user.UIMode != domain.UIModeSimple || user.CurrentPersona != "jill" || user.TimeZone != "UTC" {
		t.Errorf("Visitor defaults wrong: %+v", user)
	}
	if user.IsRegistered() {
		t.Error("Visitor must not count as registered")
	}

	// A second upsert refreshes last_seen_at without duplicating the row.
	later := newVisitor("v_1")
	later.LastSeenAt = time.Now().Add(time.Hour).UTC()
	if err := repo.UpsertUser(ctx, later); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	user, _ = repo.GetUser(ctx, "v_1")
	if !user.LastSeenAt.After(time.Now().Add(30 * time.Minute)) {
		t.Error("Upsert did not refresh last_seen_at")
	}
}

func TestCompleteRegistration(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	reg := Registration{
		Email:        "ada@example.com",
		Username:     "ada",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DateOfBirth:  "1990-12-10",
		Gender:       "female",
		ZipCode:      "94103",
	}

	if err := repo.CompleteRegistration(ctx, "v_missing", reg); err == nil {
		t.Fatal("Registering an unknown user must fail")
	}

	if err := repo.UpsertUser(ctx, newVisitor("v_1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.CompleteRegistration(ctx, "v_1", reg); err != nil {
		t.Fatalf("CompleteRegistration failed: %v", err)
	}

	user, err := repo.GetUser(ctx, "v_1")
	if err != nil {
		t.Fatal(err)
	}
	if !user.IsRegistered() {
		t.Error("User should be registered after upgrade")
	}
	if user.Email != "ada@example.com" || user.Username != "ada" || user.ZipCode != "94103" {
		t.Errorf("Registration fields not persisted: %+v", user)
	}

	taken, err := repo.EmailExists(ctx, "ada@example.com")
	if err != nil || !taken {
		t.Errorf("EmailExists(taken) = %v, %v", taken, err)
	}
	taken, err = repo.UsernameExists(ctx, "ada")
	if err != nil || !taken {
		t.Errorf("UsernameExists(taken) = %v, %v", taken, err)
	}
	free, err := repo.EmailExists(ctx, "other@example.com")
	if err != nil || free {
		t.Errorf("EmailExists(free) = %v, %v", free, err)
	}
}

func TestUpdatePreferences(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	if err := repo.UpsertUser(ctx, newVisitor("v_1")); err != nil {
		t.Fatal(err)
	}

	err := repo.UpdatePreferences(ctx, "v_1", map[string]string{"favoriteColor": "blue"})
	if !errors.Is(err, ErrUnknownPreferenceKey) {
		t.Errorf("Unknown key: got %v", err)
	}

	err = repo.UpdatePreferences(ctx, "v_1", map[string]string{"firstName": ""})
	if !errors.Is(err, ErrEmptyPreferenceValue) {
		t.Errorf("Empty value: got %v", err)
	}

	err = repo.UpdatePreferences(ctx, "v_1", map[string]string{
		"UImode":         "fancy",
		"CurrentPersona": "olivia",
		"firstName":      "Ada",
	})
	if err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}

	user, _ := repo.GetUser(ctx, "v_1")
	if user.UIMode != domain.UIModeFancy || user.CurrentPersona != "olivia" || user.FirstName != "Ada" {
		t.Errorf("Preferences not applied: %+v", user)
	}

	if err := repo.UpdatePreferences(ctx, "v_1", nil); err != nil {
		t.Errorf("Empty update should be a no-op, got %v", err)
	}
}

func TestRoomHistoryKeepsNewestWithinLimit(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	bodies := []string{"one", "two", "three", "four", "five"}
	for i, body := range bodies {
		msg := domain.ChatMessage{
			ID:         body,
			Room:       "room-1",
			Sender:     domain.SenderUser,
			SenderName: "Ada",
			Body:       body,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	all, err := repo.RoomHistory(ctx, "room-1", 0)
	if err != nil {
		t.Fatalf("RoomHistory failed: %v", err)
	}
	if len(all) != 5 || all[0].Body != "one" || all[4].Body != "five" {
		t.Errorf("Uncapped history wrong: %v", all)
	}

	capped, err := repo.RoomHistory(ctx, "room-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 2 || capped[0].Body != "four" || capped[1].Body != "five" {
		t.Errorf("Capped history must keep the newest messages in order: %v", capped)
	}

	other, err := repo.RoomHistory(ctx, "room-2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("Unrelated room leaked messages: %v", other)
	}
}

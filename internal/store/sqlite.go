package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/companionlabs/companion/internal/domain"
	"github.com/companionlabs/companion/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes preference writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT,
		username TEXT,
		password_hash TEXT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT,
		gender TEXT,
		zip_code TEXT,
		city TEXT,
		state TEXT,
		country TEXT,
		ui_mode TEXT NOT NULL DEFAULT 'simple',
		current_persona TEXT NOT NULL DEFAULT 'jill',
		time_zone TEXT NOT NULL DEFAULT 'UTC',
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email IS NOT NULL AND email != '';
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username) WHERE username IS NOT NULL AND username != '';

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room TEXT NOT NULL,
		sender TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `user_id, email, username, password_hash, first_name, last_name,
	date_of_birth, gender, zip_code, city, state, country,
	ui_mode, current_persona, time_zone, last_seen_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var email, username, passwordHash sql.NullString
	var dob, gender, zip, city, state, country sql.NullString
	var uiMode string
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &email, &username, &passwordHash,
		&user.FirstName, &user.LastName,
		&dob, &gender, &zip, &city, &state, &country,
		&uiMode, &user.CurrentPersona, &user.TimeZone,
		&lastSeen, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Email = email.String
	user.Username = username.String
	user.PasswordHash = passwordHash.String
	user.DateOfBirth = dob.String
	user.Gender = gender.String
	user.ZipCode = zip.String
	user.City = city.String
	user.State = state.String
	user.Country = country.String
	user.UIMode = domain.UIMode(uiMode)
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// UpsertUser creates or refreshes a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, email, username, password_hash, first_name, last_name,
		date_of_birth, gender, zip_code, city, state, country,
		ui_mode, current_persona, time_zone, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, nullable(user.Email), nullable(user.Username), nullable(user.PasswordHash),
		user.FirstName, user.LastName,
		nullable(user.DateOfBirth), nullable(user.Gender), nullable(user.ZipCode),
		nullable(user.City), nullable(user.State), nullable(user.Country),
		string(user.UIMode), user.CurrentPersona, user.TimeZone,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// CompleteRegistration upgrades a visitor row with registration fields.
func (s *SQLiteStore) CompleteRegistration(ctx context.Context, userID string, reg Registration) error {
	query := `
	UPDATE users SET
		email = ?, username = ?, password_hash = ?,
		first_name = ?, last_name = ?, date_of_birth = ?, gender = ?,
		zip_code = ?, city = ?, state = ?, country = ?,
		updated_at = ?
	WHERE user_id = ?`

	result, err := s.db.ExecContext(ctx, query,
		reg.Email, reg.Username, reg.PasswordHash,
		reg.FirstName, reg.LastName, nullable(reg.DateOfBirth), nullable(reg.Gender),
		nullable(reg.ZipCode), nullable(reg.City), nullable(reg.State), nullable(reg.Country),
		time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("complete registration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("complete registration: user %s not found", userID)
	}
	return nil
}

// EmailExists reports whether a registered user already owns the email.
func (s *SQLiteStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return count > 0, nil
}

// UsernameExists reports whether a registered user already owns the username.
func (s *SQLiteStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return count > 0, nil
}

// preferenceColumns maps the client-facing settings keys onto user columns.
// The confirmation field never reaches the store and the raw password is
// hashed into passwordHash by the handler before this layer sees it.
var preferenceColumns = map[string]string{
	"firstName":      "first_name",
	"lastName":       "last_name",
	"email":          "email",
	"passwordHash":   "password_hash",
	"zipCode":        "zip_code",
	"UImode":         "ui_mode",
	"CurrentPersona": "current_persona",
	"timeZone":       "time_zone",
}

// UpdatePreferences applies a sparse settings update with retry on SQLite
// concurrency errors.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, userID string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	var assignments []string
	var args []interface{}
	for key, value := range fields {
		column, ok := preferenceColumns[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPreferenceKey, key)
		}
		if value == "" {
			return fmt.Errorf("%w: %s", ErrEmptyPreferenceValue, key)
		}
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now().Unix(), userID)

	query := `UPDATE users SET ` + strings.Join(assignments, ", ") + ` WHERE user_id = ?`

	maxRetries := 3
	baseDelay := 100 * time.Millisecond
	for i := 0; i < maxRetries; i++ {
		err := s.updatePreferencesOnce(ctx, query, args, userID)
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Preference update hit SQLITE_BUSY, retrying",
				"user_id", userID, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) updatePreferencesOnce(ctx context.Context, query string, args []interface{}, userID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update preferences: user %s not found", userID)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// SaveMessage appends a chat message to a room's history.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg domain.ChatMessage) error {
	query := `INSERT INTO messages (id, room, sender, sender_name, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.Room, string(msg.Sender), msg.SenderName, msg.Body, msg.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RoomHistory returns a room's messages in chronological order. A positive
// limit keeps the newest messages, not the oldest.
func (s *SQLiteStore) RoomHistory(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error) {
	query := `SELECT id, room, sender, sender_name, body, created_at
		FROM messages WHERE room = ? ORDER BY created_at ASC`
	args := []interface{}{room}
	if limit > 0 {
		query = `SELECT id, room, sender, sender_name, body, created_at
			FROM (SELECT id, room, sender, sender_name, body, created_at
				FROM messages WHERE room = ? ORDER BY created_at DESC LIMIT ?)
			ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query room history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close history rows", "error", closeErr)
		}
	}()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var sender string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Room, &sender, &msg.SenderName, &msg.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		msg.Sender = domain.Sender(sender)
		msg.Timestamp = time.Unix(createdAt, 0).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

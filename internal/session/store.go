package session

import (
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/avargasm/medchat-cli/internal/models"
)

const (
	keyToken = "auth_token"
	keyUser  = "user_profile"
)

// Store persists the client-side session cache in SQLite: the auth token,
// the cached user profile, local conversation transcripts and the last PACS
// listing. It is a cache only; the backend stays authoritative. Writes are
// last-writer-wins with no versioning.
type Store struct {
	db *sql.DB
}

// Open creates the database connection and applies the schema.
func Open(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs the SQL statements to set up the schema.
func (s *Store) migrate() error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS session (
		key TEXT NOT NULL PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pacs_cache (
		id TEXT NOT NULL PRIMARY KEY,
		display_name TEXT NOT NULL,
		base_rs TEXT NOT NULL,
		location TEXT,
		-- Store tags as JSON text
		tags_json TEXT,
		created_at DATETIME
	);
	`
	_, err := s.db.Exec(sqlStmt)
	return err
}

// Token returns the stored bearer token, or "" when signed out.
func (s *Store) Token() string {
	return s.get(keyToken)
}

// User returns the cached profile, or nil when none is stored.
func (s *Store) User() *models.User {
	raw := s.get(keyUser)
	if raw == "" {
		return nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	return &user
}

// SetSession stores the token and cached profile, overwriting any previous
// session. A nil user stores the token alone.
func (s *Store) SetSession(token string, user *models.User) error {
	if err := s.set(keyToken, token); err != nil {
		return err
	}
	raw := ""
	if user != nil {
		b, err := json.Marshal(user)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	return s.set(keyUser, raw)
}

// Clear removes the token and the cached user.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM session WHERE key IN (?, ?)", keyToken, keyUser)
	return err
}

func (s *Store) get(key string) string {
	var value string
	if err := s.db.QueryRow("SELECT value FROM session WHERE key = ?", key).Scan(&value); err != nil {
		return ""
	}
	return value
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO session(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

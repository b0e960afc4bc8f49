package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avargasm/medchat-cli/internal/models"
)

// CreateConversation inserts a new local conversation.
func (s *Store) CreateConversation(title string) (models.Conversation, error) {
	conv := models.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	stmt, err := s.db.Prepare("INSERT INTO conversations(id, title, created_at) VALUES(?, ?, ?)")
	if err != nil {
		return models.Conversation{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(conv.ID, conv.Title, conv.CreatedAt); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Conversations retrieves all local conversations, newest first.
func (s *Store) Conversations() ([]models.Conversation, error) {
	rows, err := s.db.Query("SELECT id, title, created_at FROM conversations ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// Conversation retrieves a single conversation by its ID.
func (s *Store) Conversation(id string) (models.Conversation, error) {
	var conv models.Conversation
	row := s.db.QueryRow("SELECT id, title, created_at FROM conversations WHERE id = ?", id)
	if err := row.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return models.Conversation{}, fmt.Errorf("conversation %s not found", id)
		}
		return models.Conversation{}, err
	}
	return conv, nil
}

// AppendMessage persists one message at the end of a conversation. Messages
// are never updated in place.
func (s *Store) AppendMessage(conversationID string, msg models.ChatMessage) error {
	stmt, err := s.db.Prepare("INSERT INTO messages(id, conversation_id, role, content, timestamp) VALUES(?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, conversationID, msg.Role, msg.Content, msg.Timestamp)
	return err
}

// Transcript retrieves a conversation's messages ordered by timestamp, with
// insertion order breaking ties.
func (s *Store) Transcript(conversationID string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, role, content, timestamp FROM messages WHERE conversation_id = ? ORDER BY timestamp, seq",
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ReplacePACSCache swaps the local PACS snapshot for the given listing.
func (s *Store) ReplacePACSCache(configs []models.PACSConfig) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM pacs_cache"); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO pacs_cache(id, display_name, base_rs, location, tags_json, created_at) VALUES(?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range configs {
		cfg := configs[i]
		cfg.PrepareForSave()
		if _, err := stmt.Exec(cfg.ID, cfg.DisplayName, cfg.BaseRS, cfg.Location, cfg.TagsJSON, cfg.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CachedPACS returns the last PACS listing fetched from the backend.
func (s *Store) CachedPACS() ([]models.PACSConfig, error) {
	rows, err := s.db.Query("SELECT id, display_name, base_rs, location, tags_json, created_at FROM pacs_cache ORDER BY display_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.PACSConfig
	for rows.Next() {
		var cfg models.PACSConfig
		var location, tags sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&cfg.ID, &cfg.DisplayName, &cfg.BaseRS, &location, &tags, &createdAt); err != nil {
			return nil, err
		}
		cfg.Location = location.String
		cfg.TagsJSON = tags.String
		if createdAt.Valid {
			cfg.CreatedAt = createdAt.Time
		}
		cfg.PrepareForAPI()
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

package devserver

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avargasm/medchat-cli/internal/models"
)

// migrate runs the SQL statements to set up the dev backend schema.
func (s *Server) migrate() error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE,
		password_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pacs_configs (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		base_rs TEXT NOT NULL,
		location TEXT,
		-- Store tags as JSON text
		tags_json TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(sqlStmt)
	return err
}

// createUser registers a user, hashing the password.
func (s *Server) createUser(username, password string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{ID: uuid.New().String(), Username: username}

	stmt, err := s.db.Prepare("INSERT INTO users(id, username, password_hash) VALUES(?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(user.ID, user.Username, string(hashedPassword)); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// authenticateUser verifies credentials.
func (s *Server) authenticateUser(username, password string) (models.User, error) {
	var user models.User
	var hash string
	row := s.db.QueryRow("SELECT id, username, password_hash FROM users WHERE username = ?", username)
	if err := row.Scan(&user.ID, &user.Username, &hash); err != nil {
		return models.User{}, fmt.Errorf("authentication failed: user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.User{}, fmt.Errorf("authentication failed: invalid password")
	}
	return user, nil
}

// getUserByID retrieves a single user.
func (s *Server) getUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username FROM users WHERE id = ?", id)
	if err := row.Scan(&user.ID, &user.Username); err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, fmt.Errorf("user with ID %s not found", id)
		}
		return models.User{}, err
	}
	return user, nil
}

// appendAgentMessage records one side of a chat exchange.
func (s *Server) appendAgentMessage(userID, role, content string) error {
	_, err := s.db.Exec(
		"INSERT INTO agent_messages(id, user_id, role, content, timestamp) VALUES(?, ?, ?, ?, ?)",
		uuid.New().String(), userID, role, content, time.Now().UTC(),
	)
	return err
}

// agentMessagesFor retrieves a user's transcript in order.
func (s *Server) agentMessagesFor(userID string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(
		"SELECT id, role, content, timestamp FROM agent_messages WHERE user_id = ? ORDER BY timestamp, seq",
		userID,
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

// createPACS inserts a configuration; the server owns id and created_at.
func (s *Server) createPACS(userID string, cfg models.PACSConfig) (models.PACSConfig, error) {
	cfg.ID = uuid.New().String()
	cfg.CreatedAt = time.Now().UTC()
	cfg.PrepareForSave()

	stmt, err := s.db.Prepare("INSERT INTO pacs_configs(id, user_id, display_name, base_rs, location, tags_json, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.PACSConfig{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(cfg.ID, userID, cfg.DisplayName, cfg.BaseRS, cfg.Location, cfg.TagsJSON, cfg.CreatedAt); err != nil {
		return models.PACSConfig{}, err
	}
	return cfg, nil
}

// scanPACS is a helper to scan a configuration from a row or rows object.
func scanPACS(scanner interface{ Scan(...interface{}) error }) (models.PACSConfig, error) {
	var cfg models.PACSConfig
	var location, tags sql.NullString
	err := scanner.Scan(&cfg.ID, &cfg.DisplayName, &cfg.BaseRS, &location, &tags, &cfg.CreatedAt)
	if err != nil {
		return cfg, err
	}
	cfg.Location = location.String
	cfg.TagsJSON = tags.String
	cfg.PrepareForAPI()
	return cfg, nil
}

// listPACS retrieves all of a user's configurations.
func (s *Server) listPACS(userID string) ([]models.PACSConfig, error) {
	rows, err := s.db.Query(
		"SELECT id, display_name, base_rs, location, tags_json, created_at FROM pacs_configs WHERE user_id = ? ORDER BY created_at",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.PACSConfig
	for rows.Next() {
		cfg, err := scanPACS(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// getPACS retrieves one configuration, scoped to its owner.
func (s *Server) getPACS(userID, id string) (models.PACSConfig, error) {
	row := s.db.QueryRow(
		"SELECT id, display_name, base_rs, location, tags_json, created_at FROM pacs_configs WHERE user_id = ? AND id = ?",
		userID, id,
	)
	cfg, err := scanPACS(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.PACSConfig{}, errPACSNotFound
		}
		return models.PACSConfig{}, err
	}
	return cfg, nil
}

// updatePACS modifies an existing configuration.
func (s *Server) updatePACS(userID, id string, cfg models.PACSConfig) (models.PACSConfig, error) {
	cfg.PrepareForSave()
	res, err := s.db.Exec(
		"UPDATE pacs_configs SET display_name = ?, base_rs = ?, location = ?, tags_json = ? WHERE user_id = ? AND id = ?",
		cfg.DisplayName, cfg.BaseRS, cfg.Location, cfg.TagsJSON, userID, id,
	)
	if err != nil {
		return models.PACSConfig{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.PACSConfig{}, errPACSNotFound
	}
	return s.getPACS(userID, id)
}

// deletePACS removes a configuration.
func (s *Server) deletePACS(userID, id string) error {
	res, err := s.db.Exec("DELETE FROM pacs_configs WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errPACSNotFound
	}
	return nil
}

// countPACS returns how many configurations the user has.
func (s *Server) countPACS(userID string) int {
	var n int
	s.db.QueryRow("SELECT COUNT(*) FROM pacs_configs WHERE user_id = ?", userID).Scan(&n)
	return n
}

// Package store persists chat sessions and desktop session state in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"llamadeskd/pkg/types"
)

// Store wraps the SQLite database. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open connects to the database file, creating directories and schema as
// needed. WAL mode is enabled so readers do not block writers.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func createTables(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			host TEXT NOT NULL,
			port INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			chat_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			generation_stats TEXT,
			PRIMARY KEY (chat_id, timestamp),
			FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, timestamp);
		CREATE TABLE IF NOT EXISTS session_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateChat opens a new chat session and returns it.
func (s *Store) CreateChat(ctx context.Context, modelName, host string, port int) (types.Chat, error) {
	now := time.Now().UnixMilli()
	chat := types.Chat{
		ID:        uuid.NewString(),
		ModelName: modelName,
		Host:      host,
		Port:      port,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (id, model_name, host, port, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		chat.ID, chat.ModelName, chat.Host, chat.Port, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return types.Chat{}, err
	}
	return chat, nil
}

// GetChat returns one chat by id.
func (s *Store) GetChat(ctx context.Context, chatID string) (types.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, model_name, host, port, created_at, updated_at FROM chats WHERE id = ?", chatID)
	var c types.Chat
	err := row.Scan(&c.ID, &c.ModelName, &c.Host, &c.Port, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return types.Chat{}, errChatNotFound(chatID)
	}
	return c, err
}

// ListChats returns all chats, most recently updated first.
func (s *Store) ListChats(ctx context.Context) ([]types.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, model_name, host, port, created_at, updated_at FROM chats ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []types.Chat
	for rows.Next() {
		var c types.Chat
		if err := rows.Scan(&c.ID, &c.ModelName, &c.Host, &c.Port, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and its messages.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errChatNotFound(chatID)
	}
	return nil
}

// AppendMessage stores a message in a chat and bumps the chat's updated_at.
// Generation stats, when present, are stored as a JSON blob so they reload
// exactly as produced.
func (s *Store) AppendMessage(ctx context.Context, chatID string, msg types.ChatMessage) error {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return err
	}
	var stats sql.NullString
	if msg.GenerationStats != nil {
		b, err := json.Marshal(msg.GenerationStats)
		if err != nil {
			return err
		}
		stats = sql.NullString{String: string(b), Valid: true}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (chat_id, role, content, timestamp, generation_stats) VALUES (?, ?, ?, ?, ?)",
		chatID, msg.Role, msg.Content, msg.Timestamp, stats)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE chats SET updated_at = ? WHERE id = ?", time.Now().UnixMilli(), chatID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Messages returns a chat's transcript in timestamp order.
func (s *Store) Messages(ctx context.Context, chatID string) ([]types.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, timestamp, generation_stats FROM messages WHERE chat_id = ? ORDER BY timestamp ASC",
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		var stats sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp, &stats); err != nil {
			return nil, err
		}
		if stats.Valid {
			var gs types.GenerationStats
			if err := json.Unmarshal([]byte(stats.String), &gs); err == nil {
				m.GenerationStats = &gs
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteMessage removes one message by its timestamp id.
func (s *Store) DeleteMessage(ctx context.Context, chatID string, timestamp int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE chat_id = ? AND timestamp = ?", chatID, timestamp)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errMessageNotFound(chatID, timestamp)
	}
	return nil
}

// ClearChat removes every message in a chat, keeping the chat itself.
func (s *Store) ClearChat(ctx context.Context, chatID string) error {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID)
	return err
}

// SetSessionState stores an opaque JSON blob (window layout, icon positions)
// under a key.
func (s *Store) SetSessionState(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO session_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, string(value))
	return err
}

// SessionState returns the blob stored under key, or nil when absent.
func (s *Store) SessionState(ctx context.Context, key string) (json.RawMessage, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value FROM session_state WHERE key = ?", key)
	var v string
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return json.RawMessage(v), nil
}

// Package repository persists the client's session identity and transcript.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/integritas/internal/domain"
)

// SQLiteStore stores identities and messages in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			profile TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			profile TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			blocks TEXT,
			links TEXT,
			is_error INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_id ON messages(profile, message_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadIdentity returns the stored token for profile, or "" if none exists.
func (s *SQLiteStore) LoadIdentity(ctx context.Context, profile string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM identities WHERE profile = ?`, profile).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return token, err
}

func (s *SQLiteStore) SaveIdentity(ctx context.Context, profile, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (profile, token) VALUES (?, ?)
		 ON CONFLICT(profile) DO UPDATE SET token = excluded.token`,
		profile, token)
	return err
}

// AppendMessage stores m, replacing an earlier version with the same ID.
func (s *SQLiteStore) AppendMessage(ctx context.Context, profile string, m domain.Message) error {
	blocks, _ := json.Marshal(m.Blocks)
	links, _ := json.Marshal(m.Links)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, profile, role, text, blocks, links, is_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(profile, message_id) DO UPDATE SET
			text = excluded.text, blocks = excluded.blocks, links = excluded.links, is_error = excluded.is_error`,
		m.ID, profile, string(m.Role), m.Text, string(blocks), string(links), m.IsError, m.CreatedAt.UTC())
	return err
}

// LoadMessages returns the transcript of profile in insertion order.
func (s *SQLiteStore) LoadMessages(ctx context.Context, profile string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, text, blocks, links, is_error, created_at
		 FROM messages WHERE profile = ? ORDER BY seq ASC`, profile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var blocks, links sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &blocks, &links, &msg.IsError, &createdAt); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = createdAt
		if blocks.Valid && blocks.String != "null" {
			if err := json.Unmarshal([]byte(blocks.String), &msg.Blocks); err != nil {
				return nil, fmt.Errorf("message %s: decode blocks: %w", msg.ID, err)
			}
		}
		if links.Valid && links.String != "null" {
			if err := json.Unmarshal([]byte(links.String), &msg.Links); err != nil {
				return nil, fmt.Errorf("message %s: decode links: %w", msg.ID, err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) ClearMessages(ctx context.Context, profile string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE profile = ?`, profile)
	return err
}

// Export writes the transcript of profile to w as indented JSON.
func (s *SQLiteStore) Export(ctx context.Context, profile string, w io.Writer) error {
	msgs, err := s.LoadMessages(ctx, profile)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msgs)
}

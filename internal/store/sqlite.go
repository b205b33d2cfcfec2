// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides inbound message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS inbound_messages (
		id TEXT PRIMARY KEY,
		from_agent TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		conversation_id TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		rendered INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_inbound_rendered
		ON inbound_messages(rendered, timestamp DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// SaveInbound records a newly received message.
func (s *SQLiteStore) SaveInbound(ctx context.Context, msg *InboundMessage) error {
	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inbound_messages (id, from_agent, sender_name, conversation_id, text, timestamp, rendered)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.FromAgent, msg.SenderName, msg.ConversationID, msg.Text,
		msg.Timestamp.UnixMilli(), boolToInt(msg.Rendered))
	if err != nil {
		return fmt.Errorf("inserting inbound message: %w", err)
	}
	return nil
}

// PopLatest returns the newest unrendered message and marks it rendered.
func (s *SQLiteStore) PopLatest(ctx context.Context) (*InboundMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, from_agent, sender_name, conversation_id, text, timestamp, rendered
		FROM inbound_messages
		WHERE rendered = 0
		ORDER BY timestamp DESC
		LIMIT 1`)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE inbound_messages SET rendered = 1 WHERE id = ?`, msg.ID); err != nil {
		return nil, fmt.Errorf("marking message rendered: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	msg.Rendered = true
	return msg, nil
}

// ListRecent returns up to limit messages, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*InboundMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_agent, sender_name, conversation_id, text, timestamp, rendered
		FROM inbound_messages
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*InboundMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*InboundMessage, error) {
	var msg InboundMessage
	var ts int64
	var rendered int
	if err := row.Scan(&msg.ID, &msg.FromAgent, &msg.SenderName,
		&msg.ConversationID, &msg.Text, &ts, &rendered); err != nil {
		return nil, err
	}
	msg.Timestamp = time.UnixMilli(ts).UTC()
	msg.Rendered = rendered != 0
	return &msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

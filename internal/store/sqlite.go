package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store is the SQLite-backed repository for cases, client threads, chat
// transcripts, feedback and the audit log.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// NewStore opens (creating if needed) the database at dbPath and migrates it.
// ":memory:" gives a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	// Ensure target directory exists (e.g., ./data)
	memory := strings.HasPrefix(dbPath, ":memory:")
	if dir := filepath.Dir(dbPath); !memory && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, logger: log.New(io.Discard, "", 0)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// SetLogger routes store diagnostics to logger.
func (s *Store) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			id TEXT PRIMARY KEY,
			client_name TEXT NOT NULL,
			case_number TEXT NOT NULL,
			practice_area TEXT,
			status TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			progress INTEGER NOT NULL DEFAULT 0,
			document_count INTEGER NOT NULL DEFAULT 0,
			assigned_to TEXT,
			description TEXT,
			last_activity_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			client_name TEXT NOT NULL,
			case_number TEXT,
			subject TEXT,
			status TEXT NOT NULL,
			action_required INTEGER NOT NULL DEFAULT 0,
			queued_since INTEGER NOT NULL DEFAULT 0,
			last_activity_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS thread_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			sender TEXT,
			body TEXT NOT NULL,
			channel TEXT,
			inbound INTEGER NOT NULL DEFAULT 0,
			sent_at INTEGER NOT NULL,
			FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			sentiment TEXT NOT NULL,
			comment TEXT NOT NULL,
			page TEXT,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_case_number ON cases(case_number)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_status ON threads(status)`,
		`CREATE INDEX IF NOT EXISTS idx_thread_messages_thread_id ON thread_messages(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation_id ON chat_messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return s.setupAuditTables()
}

// Reset deletes every row while keeping the schema.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"thread_messages", "threads", "cases", "chat_messages", "conversations", "feedback", "notes", "audit_entries"}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	s.logger.Printf("cleared %d tables", len(tables))
	return nil
}

// Stats returns row counts per table.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, t := range []string{"cases", "threads", "thread_messages", "conversations", "chat_messages", "feedback", "notes", "audit_entries"} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t, err)
		}
		out[t] = n
	}
	return out, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

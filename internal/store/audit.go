package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one row of the append-only activity log.
type AuditEntry struct {
	ID          string                 `json:"id"`
	SubjectType string                 `json:"subject_type"` // "case", "thread", "conversation", "feedback"
	SubjectID   string                 `json:"subject_id"`
	Action      string                 `json:"action"` // "status_changed", "note_added", "reply_sent", ...
	Actor       string                 `json:"actor"`
	Details     map[string]interface{} `json:"details"`
	Metadata    map[string]string      `json:"metadata"` // tokens, cost, etc.
	Timestamp   time.Time              `json:"timestamp"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Note is a free-text note attached to a case.
type Note struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) setupAuditTables() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			subject_type TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			details TEXT NOT NULL,
			metadata TEXT,
			timestamp INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL,
			content TEXT NOT NULL,
			author TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_entries(subject_type, subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_case_id ON notes(case_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute audit migration: %w", err)
		}
	}
	return nil
}

// AddAuditEntry adds an audit entry to the database
func (s *Store) AddAuditEntry(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.CreatedAt = time.Now()
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}
	var metadata interface{}
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadata = string(b)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_entries (
		id, subject_type, subject_id, action, actor, details, metadata, timestamp, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SubjectType, entry.SubjectID, entry.Action, entry.Actor,
		string(detailsJSON), metadata, entry.Timestamp.Unix(), entry.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// GetAuditEntries retrieves the newest entries for a subject. An empty
// subjectID returns entries for every subject.
func (s *Store) GetAuditEntries(ctx context.Context, subjectID string, limit int) ([]AuditEntry, error) {
	query := `SELECT id, subject_type, subject_id, action, actor, details, metadata, timestamp, created_at
		FROM audit_entries`
	args := []interface{}{}
	if subjectID != "" {
		query += ` WHERE subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var metadataJSON *string
		var detailsJSON string
		var timestamp, createdAt int64

		err := rows.Scan(&entry.ID, &entry.SubjectType, &entry.SubjectID, &entry.Action,
			&entry.Actor, &detailsJSON, &metadataJSON, &timestamp, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Timestamp = time.Unix(timestamp, 0)
		entry.CreatedAt = time.Unix(createdAt, 0)

		if err := json.Unmarshal([]byte(detailsJSON), &entry.Details); err != nil {
			entry.Details = map[string]interface{}{"raw": detailsJSON}
		}
		if metadataJSON != nil {
			if err := json.Unmarshal([]byte(*metadataJSON), &entry.Metadata); err != nil {
				entry.Metadata = map[string]string{"raw": *metadataJSON}
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LogAction records an action against one subject.
func (s *Store) LogAction(ctx context.Context, subjectType, subjectID, action, actor string, details map[string]interface{}) error {
	return s.AddAuditEntry(ctx, AuditEntry{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Action:      action,
		Actor:       actor,
		Details:     details,
	})
}

// LogAssistantQuery records a provider-backed request with its token and
// cost estimate.
func (s *Store) LogAssistantQuery(ctx context.Context, subjectType, subjectID, provider, prompt string, tokens int, cost float64) error {
	return s.AddAuditEntry(ctx, AuditEntry{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Action:      "assistant_query",
		Actor:       provider,
		Details:     map[string]interface{}{"prompt": prompt},
		Metadata: map[string]string{
			"tokens": fmt.Sprintf("%d", tokens),
			"cost":   fmt.Sprintf("%.4f", cost),
		},
	})
}

// AddNote attaches a note to a case and logs it.
func (s *Store) AddNote(ctx context.Context, note Note) (Note, error) {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO notes (id, case_id, content, author, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.CaseID, note.Content, note.Author, note.CreatedAt.Unix())
	if err != nil {
		return Note{}, fmt.Errorf("failed to save note: %w", err)
	}
	if err := s.LogAction(ctx, "case", note.CaseID, "note_added", note.Author, map[string]interface{}{"note_id": note.ID}); err != nil {
		return note, err
	}
	return note, nil
}

// GetNotes retrieves notes for a case, newest first.
func (s *Store) GetNotes(ctx context.Context, caseID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, case_id, content, author, created_at
		FROM notes WHERE case_id = ? ORDER BY created_at DESC, rowid DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var note Note
		var createdAt int64
		if err := rows.Scan(&note.ID, &note.CaseID, &note.Content, &note.Author, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		note.CreatedAt = time.Unix(createdAt, 0)
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

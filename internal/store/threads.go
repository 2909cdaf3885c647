package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/triage"
	"github.com/google/uuid"
)

const threadColumns = `id, client_name, case_number, subject, status, action_required, queued_since, last_activity_at`

// SaveThread inserts or replaces a thread together with its messages.
func (s *Store) SaveThread(ctx context.Context, t comms.Thread) error {
	if t.ID == "" {
		return fmt.Errorf("failed to save thread: empty id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin thread save: %w", err)
	}
	defer tx.Rollback()

	if err := upsertThread(ctx, tx, t); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_messages WHERE thread_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to clear thread messages: %w", err)
	}
	for _, m := range t.Messages {
		if err := insertThreadMessage(ctx, tx, t.ID, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread: %w", err)
	}
	return nil
}

func upsertThread(ctx context.Context, tx *sql.Tx, t comms.Thread) error {
	now := time.Now()
	if t.LastActivityAt.IsZero() {
		t.LastActivityAt = now
	}
	query := `INSERT INTO threads (` + threadColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			case_number = excluded.case_number,
			subject = excluded.subject,
			status = excluded.status,
			action_required = excluded.action_required,
			queued_since = excluded.queued_since,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at`
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.ClientName, t.CaseNumber, t.Subject, string(t.Status), boolToInt(t.ActionRequired),
		unixOrZero(t.QueuedSince), t.LastActivityAt.Unix(), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}
	return nil
}

func insertThreadMessage(ctx context.Context, tx *sql.Tx, threadID string, m comms.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO thread_messages (id, thread_id, sender, body, channel, inbound, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, threadID, m.From, m.Body, string(m.Channel), boolToInt(m.Inbound), m.SentAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save thread message: %w", err)
	}
	return nil
}

// ListThreads returns every thread with its messages. It satisfies
// comms.Repository.
func (s *Store) ListThreads(ctx context.Context) ([]comms.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+threadColumns+` FROM threads ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	var threads []comms.Thread
	index := make(map[string]int)
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[t.ID] = len(threads)
		threads = append(threads, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate threads: %w", err)
	}

	msgRows, err := s.db.QueryContext(ctx, `SELECT thread_id, id, sender, body, channel, inbound, sent_at
		FROM thread_messages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		threadID, m, err := scanThreadMessage(msgRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[threadID]; ok {
			threads[i].Messages = append(threads[i].Messages, m)
		}
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate thread messages: %w", err)
	}
	return threads, nil
}

// GetThread returns one thread with messages or ErrNotFound.
func (s *Store) GetThread(ctx context.Context, id string) (comms.Thread, error) {
	t, err := scanThread(s.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return comms.Thread{}, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return comms.Thread{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT thread_id, id, sender, body, channel, inbound, sent_at
		FROM thread_messages WHERE thread_id = ? ORDER BY seq`, id)
	if err != nil {
		return comms.Thread{}, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		_, m, err := scanThreadMessage(rows)
		if err != nil {
			return comms.Thread{}, err
		}
		t.Messages = append(t.Messages, m)
	}
	return t, rows.Err()
}

// ReplyToThread records an outbound reply and marks the thread responded.
func (s *Store) ReplyToThread(ctx context.Context, id string, reply comms.Message) (comms.Thread, error) {
	t, err := s.GetThread(ctx, id)
	if err != nil {
		return comms.Thread{}, err
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.SentAt.IsZero() {
		reply.SentAt = time.Now()
	}
	reply.Inbound = false
	t = t.WithReply(reply)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return comms.Thread{}, fmt.Errorf("failed to begin reply: %w", err)
	}
	defer tx.Rollback()
	if err := upsertThread(ctx, tx, t); err != nil {
		return comms.Thread{}, err
	}
	if err := insertThreadMessage(ctx, tx, id, reply); err != nil {
		return comms.Thread{}, err
	}
	if err := tx.Commit(); err != nil {
		return comms.Thread{}, fmt.Errorf("failed to commit reply: %w", err)
	}
	return t, nil
}

func scanThread(r rowScanner) (comms.Thread, error) {
	var (
		t                    comms.Thread
		status               string
		caseNumber, subject  sql.NullString
		action               int
		queued, lastActivity int64
	)
	err := r.Scan(&t.ID, &t.ClientName, &caseNumber, &subject, &status, &action, &queued, &lastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return comms.Thread{}, err
		}
		return comms.Thread{}, fmt.Errorf("failed to scan thread: %w", err)
	}
	t.CaseNumber = caseNumber.String
	t.Subject = subject.String
	t.Status = triage.Status(status)
	t.ActionRequired = action != 0
	t.QueuedSince = timeOrZero(queued)
	t.LastActivityAt = timeOrZero(lastActivity)
	return t, nil
}

func scanThreadMessage(r rowScanner) (string, comms.Message, error) {
	var (
		threadID   string
		m          comms.Message
		sender, ch sql.NullString
		inbound    int
		sentAt     int64
	)
	if err := r.Scan(&threadID, &m.ID, &sender, &m.Body, &ch, &inbound, &sentAt); err != nil {
		return "", comms.Message{}, fmt.Errorf("failed to scan thread message: %w", err)
	}
	m.From = sender.String
	m.Channel = comms.Channel(ch.String)
	m.Inbound = inbound != 0
	m.SentAt = time.Unix(sentAt, 0)
	return threadID, m, nil
}

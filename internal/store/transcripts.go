package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/chat"
)

// SaveConversation upserts a conversation header (id, summary, timestamps).
func (s *Store) SaveConversation(ctx context.Context, c chat.Conversation) error {
	created, updated := c.CreatedAt, c.UpdatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if updated.IsZero() {
		updated = created
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations (id, summary, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		c.ID, c.Summary, created.UnixNano(), updated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// SaveChatMessage stores one message at position in a conversation. Saving
// the same message id twice is a no-op.
func (s *Store) SaveChatMessage(ctx context.Context, conversationID string, position int, m chat.Message) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO chat_messages (id, conversation_id, position, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, conversationID, position, string(m.Role), m.Content, m.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// ListConversations returns archived conversations, most recent first, each
// with its messages in conversation order. limit <= 0 means all.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]chat.Conversation, error) {
	query := `SELECT id, summary, created_at, updated_at FROM conversations ORDER BY updated_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	var convs []chat.Conversation
	index := make(map[string]int)
	for rows.Next() {
		var c chat.Conversation
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Summary, &created, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.CreatedAt = time.Unix(0, created)
		c.UpdatedAt = time.Unix(0, updated)
		index[c.ID] = len(convs)
		convs = append(convs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	if len(convs) == 0 {
		return convs, nil
	}

	msgRows, err := s.db.QueryContext(ctx, `SELECT conversation_id, id, role, content, timestamp FROM chat_messages ORDER BY conversation_id, position, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var convID string
		var m chat.Message
		var role string
		var ts int64
		if err := msgRows.Scan(&convID, &m.ID, &role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		i, ok := index[convID]
		if !ok {
			continue
		}
		m.Role = chat.Role(role)
		m.Timestamp = time.Unix(0, ts)
		convs[i].Messages = append(convs[i].Messages, m)
	}
	return convs, msgRows.Err()
}

// Archive persists a chat store change. It is meant to be passed to
// chat.Store.Subscribe; failures are logged, not returned.
func (s *Store) Archive(ch chat.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch ch.Kind {
	case chat.ChangeCreated, chat.ChangeAppended:
		if err = s.SaveConversation(ctx, ch.Conversation); err == nil {
			err = s.SaveChatMessage(ctx, ch.Conversation.ID, ch.Position, ch.Message)
		}
		if err == nil && ch.Kind == chat.ChangeCreated {
			err = s.LogAction(ctx, "conversation", ch.Conversation.ID, "conversation_created", "user",
				map[string]interface{}{"summary": ch.Conversation.Summary})
		}
	case chat.ChangeRemoved:
		err = s.DeleteConversation(ctx, ch.Conversation.ID)
	default:
		return
	}
	if err != nil {
		s.logger.Printf("archive %s for conversation %s failed: %v", ch.Kind, ch.Conversation.ID, err)
	}
}

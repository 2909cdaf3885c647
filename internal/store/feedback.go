package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Feedback is one submission from the feedback endpoint.
type Feedback struct {
	ID        string    `json:"id"`
	Sentiment string    `json:"sentiment"`
	Comment   string    `json:"comment"`
	Page      string    `json:"page,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveFeedback stores a submission and returns it with id and time set.
func (s *Store) SaveFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO feedback (id, sentiment, comment, page, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Sentiment, f.Comment, f.Page, f.CreatedAt.Unix())
	if err != nil {
		return Feedback{}, fmt.Errorf("failed to save feedback: %w", err)
	}
	if err := s.LogAction(ctx, "feedback", f.ID, "feedback_received", "anonymous",
		map[string]interface{}{"sentiment": f.Sentiment, "page": f.Page}); err != nil {
		return f, err
	}
	return f, nil
}

// ListFeedback returns the newest submissions first.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	query := `SELECT id, sentiment, comment, page, created_at FROM feedback ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		var page sql.NullString
		var created int64
		if err := rows.Scan(&f.ID, &f.Sentiment, &f.Comment, &page, &created); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		f.Page = page.String
		f.CreatedAt = time.Unix(created, 0)
		out = append(out, f)
	}
	return out, rows.Err()
}

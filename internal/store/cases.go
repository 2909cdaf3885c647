package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("not found")

const caseColumns = `id, client_name, case_number, practice_area, status, priority, progress,
	document_count, assigned_to, description, last_activity_at`

// SaveCase inserts or replaces a case.
func (s *Store) SaveCase(ctx context.Context, c review.Case) error {
	if c.ID == "" {
		return fmt.Errorf("failed to save case: empty id")
	}
	now := time.Now()
	if c.LastActivityAt.IsZero() {
		c.LastActivityAt = now
	}
	query := `INSERT INTO cases (` + caseColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			case_number = excluded.case_number,
			practice_area = excluded.practice_area,
			status = excluded.status,
			priority = excluded.priority,
			progress = excluded.progress,
			document_count = excluded.document_count,
			assigned_to = excluded.assigned_to,
			description = excluded.description,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ClientName, c.CaseNumber, c.PracticeArea, string(c.Status), int(c.Priority), c.Progress,
		c.DocumentCount, c.AssignedTo, c.Description, c.LastActivityAt.Unix(),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}
	return nil
}

// ListCases returns every case in insertion order. It satisfies
// review.Repository.
func (s *Store) ListCases(ctx context.Context) ([]review.Case, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM cases ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []review.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cases: %w", err)
	}
	return cases, nil
}

// GetCase returns one case or ErrNotFound.
func (s *Store) GetCase(ctx context.Context, id string) (review.Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Case{}, fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	return c, err
}

// UpdateCaseStatus moves a case to status and returns the stored result.
func (s *Store) UpdateCaseStatus(ctx context.Context, id string, status triage.Status, at time.Time) (review.Case, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return review.Case{}, err
	}
	c = c.WithStatus(status, at)
	if err := s.SaveCase(ctx, c); err != nil {
		return review.Case{}, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(r rowScanner) (review.Case, error) {
	var (
		c                               review.Case
		status                          string
		priority                        int
		practice, assigned, description sql.NullString
		lastActivity                    int64
	)
	err := r.Scan(&c.ID, &c.ClientName, &c.CaseNumber, &practice, &status, &priority, &c.Progress,
		&c.DocumentCount, &assigned, &description, &lastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return review.Case{}, err
		}
		return review.Case{}, fmt.Errorf("failed to scan case: %w", err)
	}
	c.Status = triage.Status(status)
	c.Priority = review.Priority(priority)
	c.PracticeArea = practice.String
	c.AssignedTo = assigned.String
	c.Description = description.String
	c.LastActivityAt = timeOrZero(lastActivity)
	return c, nil
}

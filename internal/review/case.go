package review

import (
	"context"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// Case statuses in precedence order.
const (
	StatusNeedsReview       triage.Status = "Needs Review"
	StatusAwaitingDocuments triage.Status = "Awaiting Documents"
	StatusComplete          triage.Status = "Complete"
)

// StatusOrder is shared by sorting, filtering and the kanban columns.
var StatusOrder = triage.StatusOrder{StatusNeedsReview, StatusAwaitingDocuments, StatusComplete}

// Priority is the explicit priority tier of a case.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "none"
	}
}

// ParsePriority accepts the names produced by String; anything else is 0.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "medium":
		return PriorityMedium
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return 0
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	*p = ParsePriority(string(b))
	return nil
}

// Case is a matter under review.
type Case struct {
	ID             string        `json:"id"`
	ClientName     string        `json:"client_name"`
	CaseNumber     string        `json:"case_number"`
	PracticeArea   string        `json:"practice_area,omitempty"`
	Status         triage.Status `json:"status"`
	Priority       Priority      `json:"priority"`
	Progress       int           `json:"progress"`
	DocumentCount  int           `json:"document_count"`
	AssignedTo     string        `json:"assigned_to,omitempty"`
	Description    string        `json:"description,omitempty"`
	LastActivityAt time.Time     `json:"last_activity_at"`
}

func (c Case) RecordID() string { return c.ID }
func (c Case) RecordStatus() triage.Status { return c.Status }
func (c Case) PriorityKey() int { return int(c.Priority) }

func (c Case) SearchText() []string {
	return []string{c.ClientName, c.CaseNumber}
}

// WithStatus returns a copy of c moved to st.
func (c Case) WithStatus(st triage.Status, at time.Time) Case {
	c.Status = st
	c.LastActivityAt = at
	if st == StatusComplete {
		c.Progress = 100
	}
	return c
}

// Repository supplies the cases to review.
type Repository interface {
	ListCases(ctx context.Context) ([]Case, error)
}

package comms

import (
	"context"
	"math"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// Thread statuses in precedence order.
const (
	StatusUnread    triage.Status = "Unread"
	StatusPending   triage.Status = "Pending"
	StatusResponded triage.Status = "Responded"
)

var StatusOrder = triage.StatusOrder{StatusUnread, StatusPending, StatusResponded}

// Channel is how a message reached the firm.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelSMS    Channel = "sms"
	ChannelPortal Channel = "portal"
	ChannelPhone  Channel = "phone"
)

// Message is one entry of a client thread.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Body    string    `json:"body"`
	Channel Channel   `json:"channel"`
	SentAt  time.Time `json:"sent_at"`
	Inbound bool      `json:"inbound"`
}

// Thread is a client communication thread.
type Thread struct {
	ID             string        `json:"id"`
	ClientName     string        `json:"client_name"`
	CaseNumber     string        `json:"case_number"`
	Subject        string        `json:"subject"`
	Status         triage.Status `json:"status"`
	ActionRequired bool          `json:"action_required"`
	// QueuedSince is when the oldest unanswered inbound message arrived.
	QueuedSince    time.Time `json:"queued_since"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Messages       []Message `json:"messages"`
}

// QueueAge is how long the thread has waited at now.
func (t Thread) QueueAge(now time.Time) time.Duration {
	if t.QueuedSince.IsZero() || t.Status == StatusResponded {
		return 0
	}
	return now.Sub(t.QueuedSince)
}

func (t Thread) RecordID() string { return t.ID }
func (t Thread) RecordStatus() triage.Status { return t.Status }

// PriorityKey is the queue age in minutes, measured against the epoch so the
// key is stable across calls: an earlier QueuedSince is a larger key. A
// queued thread with no known QueuedSince ranks below every timed one.
func (t Thread) PriorityKey() int {
	if t.Status == StatusResponded {
		return 0
	}
	if t.QueuedSince.IsZero() {
		return math.MinInt
	}
	return int(-t.QueuedSince.Unix() / 60)
}

// SearchText covers the client, case number, subject and every message body.
func (t Thread) SearchText() []string {
	out := make([]string, 0, 3+len(t.Messages))
	out = append(out, t.ClientName, t.CaseNumber, t.Subject)
	for _, m := range t.Messages {
		out = append(out, m.Body)
	}
	return out
}

// NeedsAttention reports membership of the leading partition.
func (t Thread) NeedsAttention() bool {
	return t.Status == StatusUnread || t.ActionRequired
}

// MessageCount is the number of messages in the thread.
func (t Thread) MessageCount() int { return len(t.Messages) }

// WithReply returns a copy of t with msg appended and the thread marked
// responded.
func (t Thread) WithReply(msg Message) Thread {
	msgs := make([]Message, len(t.Messages), len(t.Messages)+1)
	copy(msgs, t.Messages)
	t.Messages = append(msgs, msg)
	t.Status = StatusResponded
	t.ActionRequired = false
	t.QueuedSince = time.Time{}
	t.LastActivityAt = msg.SentAt
	return t
}

// Repository supplies client threads.
type Repository interface {
	ListThreads(ctx context.Context) ([]Thread, error)
}

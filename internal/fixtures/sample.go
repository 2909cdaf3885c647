package fixtures

import (
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// Sample returns the built-in demo records with activity times relative to now.
func Sample(now time.Time) Set {
	ago := func(d time.Duration) time.Time { return now.Add(-d).Truncate(time.Second) }

	cases := []review.Case{
		{ID: "case-001", ClientName: "John Doe", CaseNumber: "CV-2024-001", PracticeArea: "Employment",
			Status: review.StatusNeedsReview, Priority: review.PriorityMedium, Progress: 35, DocumentCount: 12,
			AssignedTo: "Sarah Chen", Description: "Wrongful termination claim against former employer.",
			LastActivityAt: ago(2 * time.Hour)},
		{ID: "case-002", ClientName: "Jane Smith", CaseNumber: "CV-2024-002", PracticeArea: "Real Estate",
			Status: review.StatusAwaitingDocuments, Priority: review.PriorityHigh, Progress: 60, DocumentCount: 8,
			AssignedTo: "Michael Torres", Description: "Commercial lease dispute over renewal terms.",
			LastActivityAt: ago(26 * time.Hour)},
		{ID: "case-003", ClientName: "Bob Wilson", CaseNumber: "CV-2024-003", PracticeArea: "Estate Planning",
			Status: review.StatusComplete, Priority: review.PriorityLow, Progress: 100, DocumentCount: 5,
			AssignedTo: "Sarah Chen", Description: "Revocable trust and pour-over will.",
			LastActivityAt: ago(5 * 24 * time.Hour)},
		{ID: "case-004", ClientName: "Acme Logistics LLC", CaseNumber: "CV-2024-004", PracticeArea: "Contracts",
			Status: review.StatusNeedsReview, Priority: review.PriorityUrgent, Progress: 10, DocumentCount: 23,
			Description: "Breach of master services agreement; injunction hearing pending.",
			LastActivityAt: ago(30 * time.Minute)},
		{ID: "case-005", ClientName: "Maria Garcia", CaseNumber: "FL-2025-014", PracticeArea: "Family",
			Status: review.StatusAwaitingDocuments, Priority: review.PriorityMedium, Progress: 45, DocumentCount: 4,
			AssignedTo: "Michael Torres", Description: "Custody modification; awaiting school records.",
			LastActivityAt: ago(3 * 24 * time.Hour)},
	}

	threads := []comms.Thread{
		thread("thread-001", "John Doe", "CV-2024-001", "Question about deposition prep", comms.StatusUnread, true,
			ago(30*time.Hour),
			msg("m-001", "John Doe", "Do I need to bring my employment contract to the deposition next week?", comms.ChannelEmail, true, ago(30*time.Hour))),
		thread("thread-002", "Jane Smith", "CV-2024-002", "Signed lease addendum", comms.StatusPending, false,
			ago(6*time.Hour),
			msg("m-002", "Jane Smith", "Attached is the signed addendum the landlord sent over.", comms.ChannelPortal, true, ago(6*time.Hour))),
		thread("thread-003", "Maria Garcia", "FL-2025-014", "Hearing date", comms.StatusUnread, false,
			ago(2*time.Hour),
			msg("m-003", "Maria Garcia", "Has the court confirmed the hearing date yet?", comms.ChannelSMS, true, ago(2*time.Hour))),
		thread("thread-004", "Bob Wilson", "CV-2024-003", "Thank you", comms.StatusResponded, false,
			time.Time{},
			msg("m-004", "Bob Wilson", "Thanks for wrapping up the trust documents.", comms.ChannelEmail, true, ago(4*24*time.Hour)),
			msg("m-005", "Sarah Chen", "You're welcome, Bob. Originals are in the mail.", comms.ChannelEmail, false, ago(4*24*time.Hour-time.Hour))),
		thread("thread-005", "Acme Logistics LLC", "CV-2024-004", "Injunction filing deadline", comms.StatusPending, true,
			ago(50*time.Hour),
			msg("m-006", "Dana Reyes", "Can you confirm the filing deadline for the injunction papers?", comms.ChannelEmail, true, ago(50*time.Hour)),
			msg("m-007", "Dana Reyes", "Following up on this, our board meets Friday.", comms.ChannelPhone, true, ago(20*time.Hour))),
	}

	return Set{Cases: cases, Threads: threads}
}

func thread(id, client, caseNumber, subject string, status triage.Status, action bool, queued time.Time, msgs ...comms.Message) comms.Thread {
	t := comms.Thread{
		ID:             id,
		ClientName:     client,
		CaseNumber:     caseNumber,
		Subject:        subject,
		Status:         status,
		ActionRequired: action,
		QueuedSince:    queued,
		Messages:       msgs,
	}
	if n := len(msgs); n > 0 {
		t.LastActivityAt = msgs[n-1].SentAt
	}
	return t
}

func msg(id, from, body string, ch comms.Channel, inbound bool, at time.Time) comms.Message {
	return comms.Message{ID: id, From: from, Body: body, Channel: ch, Inbound: inbound, SentAt: at}
}

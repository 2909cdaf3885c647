package comms

import (
	"time"

	"github.com/Ashfaaq98/casedesk/internal/triage"
)

const (
	FilterActionRequired = "action-required"
	FilterOverdue        = "overdue"
	FilterEmail          = "email"
)

// OverdueAfter is the queue age past which a thread counts as overdue.
const OverdueAfter = 24 * time.Hour

// Filters is the static filter table for threads. now is consulted by the
// overdue filter at match time.
func Filters(now func() time.Time) triage.FilterTable[Thread] {
	if now == nil {
		now = time.Now
	}
	table := triage.StatusFilters[Thread](StatusOrder)
	return append(table,
		triage.FilterDef[Thread]{
			ID:    FilterActionRequired,
			Label: "Action required",
			Match: func(t Thread) bool { return t.ActionRequired },
		},
		triage.FilterDef[Thread]{
			ID:    FilterOverdue,
			Label: "Overdue",
			Match: func(t Thread) bool { return t.QueueAge(now()) > OverdueAfter },
		},
		triage.FilterDef[Thread]{
			ID:    FilterEmail,
			Label: "Email",
			Match: func(t Thread) bool {
				for _, m := range t.Messages {
					if m.Channel == ChannelEmail {
						return true
					}
				}
				return false
			},
		},
	)
}

// Sorter returns the thread sort table. Threads needing attention lead under
// every alternate key, and lead within their status under priority.
func Sorter() triage.Sorter[Thread] {
	return triage.Sorter[Thread]{
		Order:   StatusOrder,
		Default: triage.SortPriority,
		Leading: Thread.NeedsAttention,
		Keys: map[triage.SortKey]triage.Comparator[Thread]{
			triage.SortName:    triage.ByText(func(t Thread) string { return t.ClientName }),
			triage.SortRecency: triage.ByTimeDesc(func(t Thread) time.Time { return t.LastActivityAt }),
			triage.SortCount:   triage.ByIntDesc(Thread.MessageCount),
		},
	}
}

// Domain is the Communications triage domain.
func Domain(now func() time.Time) triage.Domain[Thread] {
	return triage.Domain[Thread]{
		Name:    "communications",
		Order:   StatusOrder,
		Filters: Filters(now),
		Sorter:  Sorter(),
	}
}

// NewBoard builds a Communications board over threads.
func NewBoard(threads []Thread, now func() time.Time) *triage.Board[Thread] {
	return triage.NewBoard(Domain(now), threads)
}

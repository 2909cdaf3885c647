package review

import (
	"time"

	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// Filter ids beyond the per-status ones.
const (
	FilterHighPriority = "high-priority"
	FilterUnassigned   = "unassigned"
)

// Filters is the static filter table for cases. Status filters use the
// status slug ("needs-review", "awaiting-documents", "complete").
func Filters() triage.FilterTable[Case] {
	table := triage.StatusFilters[Case](StatusOrder)
	return append(table,
		triage.FilterDef[Case]{
			ID:    FilterHighPriority,
			Label: "High priority",
			Match: func(c Case) bool { return c.Priority >= PriorityHigh },
		},
		triage.FilterDef[Case]{
			ID:    FilterUnassigned,
			Label: "Unassigned",
			Match: func(c Case) bool { return c.AssignedTo == "" },
		},
	)
}

// Sorter returns the case sort table. SortCount orders by document count.
func Sorter() triage.Sorter[Case] {
	return triage.Sorter[Case]{
		Order:   StatusOrder,
		Default: triage.SortPriority,
		Keys: map[triage.SortKey]triage.Comparator[Case]{
			triage.SortName:    triage.ByText(func(c Case) string { return c.ClientName }),
			triage.SortRecency: triage.ByTimeDesc(func(c Case) time.Time { return c.LastActivityAt }),
			triage.SortCount:   triage.ByIntDesc(func(c Case) int { return c.DocumentCount }),
		},
	}
}

// Domain is the Review triage domain.
func Domain() triage.Domain[Case] {
	return triage.Domain[Case]{
		Name:    "review",
		Order:   StatusOrder,
		Filters: Filters(),
		Sorter:  Sorter(),
	}
}

// NewBoard builds a Review board over cases.
func NewBoard(cases []Case) *triage.Board[Case] {
	return triage.NewBoard(Domain(), cases)
}

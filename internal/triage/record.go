package triage

import "strings"

// Status is one value of a domain's closed status vocabulary.
type Status string

// Record is the capability the filter, sort and view engines need from a
// triage-able entity. Implementations are value types; they are replaced in a
// collection, never edited in place.
type Record interface {
	RecordID() string
	RecordStatus() Status
	// PriorityKey is the secondary sort key; higher sorts first.
	PriorityKey() int
	// SearchText returns every string the free-text query matches against.
	SearchText() []string
}

// StatusOrder is the fixed precedence over a status vocabulary. It drives the
// primary sort key and the kanban column order.
type StatusOrder []Status

// Rank returns the precedence of s. Statuses outside the vocabulary rank
// after every known status.
func (o StatusOrder) Rank(s Status) int {
	for i, known := range o {
		if known == s {
			return i
		}
	}
	return len(o)
}

// Contains reports whether s is part of the vocabulary.
func (o StatusOrder) Contains(s Status) bool {
	return o.Rank(s) < len(o)
}

// Slug converts a display label to a filter id ("Needs Review" -> "needs-review").
func Slug(label string) string {
	fields := strings.Fields(strings.ToLower(label))
	return strings.Join(fields, "-")
}

package triage

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// SortKey selects one of a domain's total orders.
type SortKey string

const (
	SortPriority SortKey = "priority"
	SortName     SortKey = "name"
	SortRecency  SortKey = "recency"
	SortCount    SortKey = "count"
)

// Comparator returns <0 when a sorts before b, >0 after, 0 when tied.
type Comparator[T Record] func(a, b T) int

// Sorter holds a domain's sort table.
type Sorter[T Record] struct {
	Order StatusOrder
	// Keys maps alternate sort keys to their comparators. SortPriority is
	// built in and need not be listed.
	Keys    map[SortKey]Comparator[T]
	Default SortKey
	// Leading, when set, pulls matching records into a leading partition
	// ahead of every alternate sort key. Under SortPriority the partition
	// applies within each status.
	Leading func(T) bool
}

// ByPriority is the default chain: status precedence, then PriorityKey
// descending. Remaining ties are left to the stable sort.
func ByPriority[T Record](order StatusOrder) Comparator[T] {
	return func(a, b T) int {
		if d := cmp.Compare(order.Rank(a.RecordStatus()), order.Rank(b.RecordStatus())); d != 0 {
			return d
		}
		return cmp.Compare(b.PriorityKey(), a.PriorityKey())
	}
}

// ByText orders by a case-insensitive string key, ascending.
func ByText[T Record](key func(T) string) Comparator[T] {
	return func(a, b T) int {
		return strings.Compare(strings.ToLower(key(a)), strings.ToLower(key(b)))
	}
}

// ByTimeDesc orders by a timestamp, newest first.
func ByTimeDesc[T Record](key func(T) time.Time) Comparator[T] {
	return func(a, b T) int {
		return key(b).Compare(key(a))
	}
}

// ByIntDesc orders by an integer key, largest first.
func ByIntDesc[T Record](key func(T) int) Comparator[T] {
	return func(a, b T) int {
		return cmp.Compare(key(b), key(a))
	}
}

// Has reports whether key names a usable order.
func (s Sorter[T]) Has(key SortKey) bool {
	if key == SortPriority {
		return true
	}
	_, ok := s.Keys[key]
	return ok
}

// Resolve maps unknown keys to the default.
func (s Sorter[T]) Resolve(key SortKey) SortKey {
	if s.Has(key) {
		return key
	}
	if s.Default != "" && s.Has(s.Default) {
		return s.Default
	}
	return SortPriority
}

// Sort returns a stably sorted copy of records.
func (s Sorter[T]) Sort(records []T, key SortKey) []T {
	out := slices.Clone(records)
	if out == nil {
		out = []T{}
	}
	slices.SortStableFunc(out, s.comparator(s.Resolve(key)))
	return out
}

func (s Sorter[T]) comparator(key SortKey) Comparator[T] {
	if s.Leading == nil {
		if key == SortPriority {
			return ByPriority[T](s.Order)
		}
		return s.Keys[key]
	}
	lead := s.Leading
	partition := func(a, b T) int {
		la, lb := lead(a), lead(b)
		switch {
		case la && !lb:
			return -1
		case lb && !la:
			return 1
		}
		return 0
	}
	if key == SortPriority {
		// Status precedence outranks the partition so kanban columns
		// concatenate back to the sorted sequence.
		return func(a, b T) int {
			if d := cmp.Compare(s.Order.Rank(a.RecordStatus()), s.Order.Rank(b.RecordStatus())); d != 0 {
				return d
			}
			if d := partition(a, b); d != 0 {
				return d
			}
			return cmp.Compare(b.PriorityKey(), a.PriorityKey())
		}
	}
	base := s.Keys[key]
	return func(a, b T) int {
		if d := partition(a, b); d != 0 {
			return d
		}
		return base(a, b)
	}
}

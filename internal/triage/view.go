package triage

// ViewMode selects a presentation layout.
type ViewMode string

const (
	ViewList    ViewMode = "list"
	ViewCompact ViewMode = "compact"
	ViewKanban  ViewMode = "kanban"
)

// EmptyPlaceholder is shown in a kanban column with no records.
const EmptyPlaceholder = "No records"

// ViewModes lists the supported layouts in toggle order.
var ViewModes = []ViewMode{ViewList, ViewCompact, ViewKanban}

// ParseViewMode maps unknown names to ViewList.
func ParseViewMode(s string) ViewMode {
	for _, m := range ViewModes {
		if string(m) == s {
			return m
		}
	}
	return ViewList
}

// Next returns the layout after m in toggle order.
func (m ViewMode) Next() ViewMode {
	for i, v := range ViewModes {
		if v == m {
			return ViewModes[(i+1)%len(ViewModes)]
		}
	}
	return ViewList
}

// Group is one renderable section of a projection. List and compact views
// produce a single group with an empty Status.
type Group[T Record] struct {
	Status      Status
	Records     []T
	Empty       bool
	Placeholder string
}

// Project regroups an already filtered and sorted sequence for a layout.
// Relative order inside every group is the order of records.
func Project[T Record](records []T, mode ViewMode, order StatusOrder) []Group[T] {
	if mode != ViewKanban {
		seq := make([]T, len(records))
		copy(seq, records)
		return []Group[T]{{Records: seq, Empty: len(seq) == 0, Placeholder: placeholderFor(len(seq))}}
	}

	buckets := make(map[Status][]T, len(order))
	var other []T
	for _, r := range records {
		st := r.RecordStatus()
		if !order.Contains(st) {
			other = append(other, r)
			continue
		}
		buckets[st] = append(buckets[st], r)
	}

	groups := make([]Group[T], 0, len(order))
	for _, st := range order {
		recs := buckets[st]
		if recs == nil {
			recs = []T{}
		}
		groups = append(groups, Group[T]{
			Status:      st,
			Records:     recs,
			Empty:       len(recs) == 0,
			Placeholder: placeholderFor(len(recs)),
		})
	}
	// Out-of-vocabulary statuses rank last, so their column goes last too.
	if len(other) > 0 {
		groups = append(groups, Group[T]{Status: StatusOther, Records: other})
	}
	return groups
}

// StatusOther labels the kanban column for statuses outside the vocabulary.
const StatusOther Status = "Other"

// Flatten concatenates group records in group order.
func Flatten[T Record](groups []Group[T]) []T {
	var out []T
	for _, g := range groups {
		out = append(out, g.Records...)
	}
	return out
}

func placeholderFor(n int) string {
	if n == 0 {
		return EmptyPlaceholder
	}
	return ""
}

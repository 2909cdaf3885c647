package triage

import (
	"slices"
	"sync"
)

// Domain bundles everything the engines need to triage one record type.
type Domain[T Record] struct {
	Name    string
	Order   StatusOrder
	Filters FilterTable[T]
	Sorter  Sorter[T]
}

// Snapshot is the rendering contract of a board: what to draw and what is
// selected. It never aliases board state.
type Snapshot[T Record] struct {
	Query      string
	Filters    []string
	SortBy     SortKey
	View       ViewMode
	Groups     []Group[T]
	Visible    []T
	Total      int
	State      NavState
	SelectedID string
	Selected   *T
	ShowHeader bool
}

// Board owns the engine inputs of one triage screen. User actions change the
// inputs; the record collection is only ever swapped wholesale.
type Board[T Record] struct {
	mu      sync.Mutex
	domain  Domain[T]
	records []T
	query   string
	active  map[string]bool
	sortBy  SortKey
	view    ViewMode
	nav     Navigator
}

// NewBoard creates a board in list view with the domain's default sort.
func NewBoard[T Record](d Domain[T], records []T) *Board[T] {
	return &Board[T]{
		domain:  d,
		records: slices.Clone(records),
		active:  make(map[string]bool),
		sortBy:  d.Sorter.Resolve(d.Sorter.Default),
		view:    ViewList,
	}
}

// Domain returns the board's domain definition.
func (b *Board[T]) Domain() Domain[T] { return b.domain }

// SetRecords replaces the collection. A selection whose record disappeared
// falls back to Browsing.
func (b *Board[T]) SetRecords(records []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = slices.Clone(records)
	if id := b.nav.Selected(); id != "" && b.indexOf(id) < 0 {
		b.nav.Back()
	}
}

// Replace swaps the record with the same id for r, producing a new
// collection. It reports false when no such record exists.
func (b *Board[T]) Replace(r T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(r.RecordID())
	if i < 0 {
		return false
	}
	next := slices.Clone(b.records)
	next[i] = r
	b.records = next
	return true
}

func (b *Board[T]) indexOf(id string) int {
	return slices.IndexFunc(b.records, func(r T) bool { return r.RecordID() == id })
}

func (b *Board[T]) SetQuery(q string) {
	b.mu.Lock()
	b.query = q
	b.mu.Unlock()
}

// ToggleFilter flips one categorical filter and returns its new state.
func (b *Board[T]) ToggleFilter(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active[id] {
		delete(b.active, id)
		return false
	}
	b.active[id] = true
	return true
}

func (b *Board[T]) ClearFilters() {
	b.mu.Lock()
	b.active = make(map[string]bool)
	b.mu.Unlock()
}

// SetSort selects an order; unknown keys resolve to the domain default.
func (b *Board[T]) SetSort(key SortKey) SortKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sortBy = b.domain.Sorter.Resolve(key)
	return b.sortBy
}

func (b *Board[T]) SetView(mode ViewMode) {
	b.mu.Lock()
	b.view = ParseViewMode(string(mode))
	b.mu.Unlock()
}

// CycleView advances to the next layout and returns it.
func (b *Board[T]) CycleView() ViewMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view = b.view.Next()
	return b.view
}

// Activate drills into the record with id. Unknown ids are ignored.
func (b *Board[T]) Activate(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(id) < 0 {
		return false
	}
	b.nav.Activate(id)
	return true
}

func (b *Board[T]) Back() {
	b.mu.Lock()
	b.nav.Back()
	b.mu.Unlock()
}

// Ordered runs filter then sort over the current inputs.
func (b *Board[T]) Ordered() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ordered()
}

func (b *Board[T]) ordered() []T {
	filtered := Filter(b.records, b.query, keysFromSet(b.active), b.domain.Filters)
	return b.domain.Sorter.Sort(filtered, b.sortBy)
}

// Snapshot computes the ordered sequence once and projects it for the
// current view.
func (b *Board[T]) Snapshot() Snapshot[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	visible := b.ordered()
	snap := Snapshot[T]{
		Query:      b.query,
		Filters:    keysFromSet(b.active),
		SortBy:     b.sortBy,
		View:       b.view,
		Groups:     Project(visible, b.view, b.domain.Order),
		Visible:    visible,
		Total:      len(b.records),
		State:      b.nav.State(),
		SelectedID: b.nav.Selected(),
		ShowHeader: b.nav.ShowHeader(),
	}
	if i := b.indexOf(snap.SelectedID); snap.SelectedID != "" && i >= 0 {
		rec := b.records[i]
		snap.Selected = &rec
	}
	return snap
}

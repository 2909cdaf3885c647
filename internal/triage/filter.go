package triage

import (
	"sort"
	"strings"
)

// FilterDef is one toggle-able categorical filter.
type FilterDef[T Record] struct {
	ID    string
	Label string
	Match func(T) bool
}

// FilterTable is the static id -> predicate table of a domain.
type FilterTable[T Record] []FilterDef[T]

// Lookup returns the definition registered under id.
func (t FilterTable[T]) Lookup(id string) (FilterDef[T], bool) {
	for _, def := range t {
		if def.ID == id {
			return def, true
		}
	}
	return FilterDef[T]{}, false
}

// IDs returns the filter ids in table order.
func (t FilterTable[T]) IDs() []string {
	out := make([]string, 0, len(t))
	for _, def := range t {
		out = append(out, def.ID)
	}
	return out
}

// StatusFilters builds one filter per status, keyed by the status slug.
func StatusFilters[T Record](order StatusOrder) FilterTable[T] {
	table := make(FilterTable[T], 0, len(order))
	for _, st := range order {
		st := st
		table = append(table, FilterDef[T]{
			ID:    Slug(string(st)),
			Label: string(st),
			Match: func(r T) bool { return r.RecordStatus() == st },
		})
	}
	return table
}

// Filter returns the records that match the text query AND at least one of the
// active filters. A blank query and an empty active set are both no-ops.
// Unknown filter ids never match. The input slice is left untouched.
func Filter[T Record](records []T, query string, active []string, table FilterTable[T]) []T {
	needle := strings.ToLower(strings.TrimSpace(query))

	preds := make([]func(T) bool, 0, len(active))
	for _, id := range active {
		if def, ok := table.Lookup(id); ok && def.Match != nil {
			preds = append(preds, def.Match)
		}
	}
	categorical := len(active) > 0

	out := make([]T, 0, len(records))
	for _, r := range records {
		if needle != "" && !matchesText(r, needle) {
			continue
		}
		if categorical && !matchesAny(r, preds) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesText[T Record](r T, needle string) bool {
	for _, field := range r.SearchText() {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func matchesAny[T Record](r T, preds []func(T) bool) bool {
	for _, p := range preds {
		if p(r) {
			return true
		}
	}
	return false
}

// keysFromSet returns sorted keys whose value is true.
func keysFromSet(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

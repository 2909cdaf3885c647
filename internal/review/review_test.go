package review

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/casedesk/internal/triage"
)

func scenarioCases() []Case {
	return []Case{
		{ID: "1", ClientName: "John Doe", CaseNumber: "CV-2024-001", Status: StatusNeedsReview, Priority: PriorityMedium},
		{ID: "2", ClientName: "Jane Smith", CaseNumber: "CV-2024-002", Status: StatusAwaitingDocuments, Priority: PriorityHigh},
		{ID: "3", ClientName: "Bob Wilson", CaseNumber: "CV-2024-003", Status: StatusComplete, Priority: PriorityLow},
	}
}

func caseIDs(cs []Case) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestFilterScenario(t *testing.T) {
	recs := scenarioCases()

	assert.Equal(t, []string{"1"}, caseIDs(triage.Filter(recs, "john", nil, Filters())))
	assert.Equal(t, []string{"1"}, caseIDs(triage.Filter(recs, "", []string{"needs-review"}, Filters())))
	assert.Equal(t, []string{"2"}, caseIDs(triage.Filter(recs, "cv-2024-002", nil, Filters())))
}

func TestSortPrecedenceScenario(t *testing.T) {
	recs := []Case{
		{ID: "c", Status: StatusComplete, Priority: PriorityUrgent},
		{ID: "n", Status: StatusNeedsReview, Priority: PriorityLow},
		{ID: "a", Status: StatusAwaitingDocuments, Priority: PriorityMedium},
	}
	for _, perm := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {0, 2, 1}} {
		in := []Case{recs[perm[0]], recs[perm[1]], recs[perm[2]]}
		got := Sorter().Sort(in, triage.SortPriority)
		assert.Equal(t, []string{"n", "a", "c"}, caseIDs(got))
	}
}

func TestSortByDocumentCount(t *testing.T) {
	recs := []Case{
		{ID: "a", DocumentCount: 2},
		{ID: "b", DocumentCount: 9},
		{ID: "c", DocumentCount: 2},
	}
	assert.Equal(t, []string{"b", "a", "c"}, caseIDs(Sorter().Sort(recs, triage.SortCount)))
}

func TestKanbanEmptyCompleteColumn(t *testing.T) {
	b := NewBoard(scenarioCases()[:2])
	b.SetView(triage.ViewKanban)
	snap := b.Snapshot()

	require.Len(t, snap.Groups, 3)
	complete := snap.Groups[2]
	assert.Equal(t, StatusComplete, complete.Status)
	assert.True(t, complete.Empty)
	assert.Equal(t, triage.EmptyPlaceholder, complete.Placeholder)
}

func TestHighPriorityFilter(t *testing.T) {
	got := triage.Filter(scenarioCases(), "", []string{FilterHighPriority}, Filters())
	assert.Equal(t, []string{"2"}, caseIDs(got))
}

func TestWithStatusReturnsCopy(t *testing.T) {
	orig := scenarioCases()[1]
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	done := orig.WithStatus(StatusComplete, at)

	assert.Equal(t, StatusAwaitingDocuments, orig.Status)
	assert.Equal(t, StatusComplete, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, at, done.LastActivityAt)
}

func TestPriorityJSON(t *testing.T) {
	b, err := json.Marshal(Case{ID: "x", Priority: PriorityHigh})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"priority":"high"`)

	var c Case
	require.NoError(t, json.Unmarshal([]byte(`{"id":"y","priority":"URGENT"}`), &c))
	assert.Equal(t, PriorityUrgent, c.Priority)
}

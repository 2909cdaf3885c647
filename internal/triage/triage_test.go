package triage

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stOpen    Status = "Open"
	stWaiting Status = "Waiting"
	stDone    Status = "Done"
)

var testOrder = StatusOrder{stOpen, stWaiting, stDone}

type item struct {
	id       string
	name     string
	code     string
	status   Status
	priority int
	touched  time.Time
}

func (i item) RecordID() string { return i.id }
func (i item) RecordStatus() Status { return i.status }
func (i item) PriorityKey() int { return i.priority }
func (i item) SearchText() []string { return []string{i.name, i.code} }

func testTable() FilterTable[item] {
	table := StatusFilters[item](testOrder)
	return append(table, FilterDef[item]{
		ID:    "urgent",
		Label: "Urgent",
		Match: func(i item) bool { return i.priority >= 3 },
	})
}

func testSorter() Sorter[item] {
	return Sorter[item]{
		Order:   testOrder,
		Default: SortPriority,
		Keys: map[SortKey]Comparator[item]{
			SortName:    ByText(func(i item) string { return i.name }),
			SortRecency: ByTimeDesc(func(i item) time.Time { return i.touched }),
		},
	}
}

func testDomain() Domain[item] {
	return Domain[item]{Name: "test", Order: testOrder, Filters: testTable(), Sorter: testSorter()}
}

func fixture() []item {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []item{
		{id: "1", name: "Alpha Holdings", code: "LIT-001", status: stDone, priority: 1, touched: base},
		{id: "2", name: "beta estate", code: "EST-114", status: stOpen, priority: 2, touched: base.Add(time.Hour)},
		{id: "3", name: "Gamma LLC", code: "CON-220", status: stWaiting, priority: 3, touched: base.Add(2 * time.Hour)},
		{id: "4", name: "Delta Trust", code: "EST-115", status: stOpen, priority: 3, touched: base.Add(3 * time.Hour)},
		{id: "5", name: "Epsilon", code: "LIT-002", status: stOpen, priority: 2, touched: base.Add(4 * time.Hour)},
	}
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestFilterTextIsCaseInsensitiveAcrossFields(t *testing.T) {
	recs := fixture()

	assert.Equal(t, []string{"2"}, ids(Filter(recs, "BETA", nil, testTable())))
	assert.Equal(t, []string{"2", "4"}, ids(Filter(recs, "est-11", nil, testTable())))
}

func TestFilterBlankQueryPreservesOrder(t *testing.T) {
	recs := fixture()
	got := Filter(recs, "   ", nil, testTable())
	assert.Equal(t, ids(recs), ids(got))
}

func TestFilterCategoricalIsOR(t *testing.T) {
	recs := fixture()
	got := Filter(recs, "", []string{"done", "urgent"}, testTable())
	assert.Equal(t, []string{"1", "3", "4"}, ids(got))
}

func TestFilterStagesComposeByAND(t *testing.T) {
	recs := fixture()
	got := Filter(recs, "est", []string{"urgent"}, testTable())
	assert.Equal(t, []string{"4"}, ids(got))
}

func TestFilterUnknownIDNeverMatches(t *testing.T) {
	recs := fixture()

	assert.Empty(t, Filter(recs, "", []string{"no-such-filter"}, testTable()))
	assert.Equal(t, []string{"1"}, ids(Filter(recs, "", []string{"no-such-filter", "done"}, testTable())))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	recs := fixture()
	before := ids(recs)
	_ = Filter(recs, "a", []string{"open"}, testTable())
	assert.Equal(t, before, ids(recs))
}

func TestFilterIdempotent(t *testing.T) {
	recs := fixture()
	queries := []string{"", "a", "LIT", "zzz"}
	sets := [][]string{nil, {"open"}, {"urgent", "waiting"}, {"bogus"}}
	for _, q := range queries {
		for _, f := range sets {
			once := Filter(recs, q, f, testTable())
			twice := Filter(once, q, f, testTable())
			assert.Equal(t, ids(once), ids(twice), "query=%q filters=%v", q, f)
		}
	}
}

func TestSortPriorityChain(t *testing.T) {
	got := testSorter().Sort(fixture(), SortPriority)
	// Open before Waiting before Done; higher priority first; ties keep input order.
	assert.Equal(t, []string{"4", "2", "5", "3", "1"}, ids(got))
}

func TestSortDoesNotMutateInput(t *testing.T) {
	recs := fixture()
	before := ids(recs)
	_ = testSorter().Sort(recs, SortPriority)
	assert.Equal(t, before, ids(recs))
}

func TestSortStableForAllPermutations(t *testing.T) {
	// Three records share status and priority; their relative order must
	// survive any arrangement of the rest.
	tied := []item{
		{id: "t1", status: stWaiting, priority: 2},
		{id: "t2", status: stWaiting, priority: 2},
		{id: "t3", status: stWaiting, priority: 2},
	}
	others := fixture()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		all := append(append([]item{}, others...), tied...)
		rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

		var inputOrder []string
		for _, it := range all {
			if it.priority == 2 && it.status == stWaiting {
				inputOrder = append(inputOrder, it.id)
			}
		}
		var outputOrder []string
		for _, it := range testSorter().Sort(all, SortPriority) {
			if it.priority == 2 && it.status == stWaiting {
				outputOrder = append(outputOrder, it.id)
			}
		}
		require.Equal(t, inputOrder, outputOrder, "round %d", round)
	}
}

func TestSortAlternateKeys(t *testing.T) {
	s := testSorter()

	assert.Equal(t, []string{"1", "2", "4", "5", "3"}, ids(s.Sort(fixture(), SortName)))
	assert.Equal(t, []string{"5", "4", "3", "2", "1"}, ids(s.Sort(fixture(), SortRecency)))
}

func TestSortUnknownKeyFallsBackToDefault(t *testing.T) {
	s := testSorter()
	assert.Equal(t, ids(s.Sort(fixture(), SortPriority)), ids(s.Sort(fixture(), "bogus")))
	assert.Equal(t, SortPriority, s.Resolve(SortCount))
}

func TestSortLeadingPartition(t *testing.T) {
	s := testSorter()
	s.Leading = func(i item) bool { return i.status == stDone }

	got := s.Sort(fixture(), SortName)
	assert.Equal(t, "1", got[0].id)
	assert.Equal(t, []string{"2", "4", "5", "3"}, ids(got[1:]))
}

func TestSortLeadingPartitionStaysInsideStatusUnderPriority(t *testing.T) {
	s := testSorter()
	s.Leading = func(i item) bool { return i.status == stDone }

	seq := s.Sort(fixture(), SortPriority)
	assert.Equal(t, ids(seq), ids(Flatten(Project(seq, ViewKanban, testOrder))))
	assert.Equal(t, []string{"4", "2", "5", "3", "1"}, ids(seq))
}

func TestProjectListIsIdentity(t *testing.T) {
	seq := testSorter().Sort(fixture(), SortPriority)
	for _, mode := range []ViewMode{ViewList, ViewCompact, "mystery"} {
		groups := Project(seq, mode, testOrder)
		require.Len(t, groups, 1)
		assert.Equal(t, ids(seq), ids(groups[0].Records))
	}
}

func TestProjectKanbanConcatenationEqualsSequence(t *testing.T) {
	seq := testSorter().Sort(fixture(), SortPriority)
	groups := Project(seq, ViewKanban, testOrder)

	require.Len(t, groups, len(testOrder))
	for i, g := range groups {
		assert.Equal(t, testOrder[i], g.Status)
	}
	assert.Equal(t, ids(seq), ids(Flatten(groups)))
}

func TestProjectKanbanKeepsEmptyBuckets(t *testing.T) {
	seq := Filter(fixture(), "", []string{"open"}, testTable())
	groups := Project(seq, ViewKanban, testOrder)

	require.Len(t, groups, 3)
	assert.False(t, groups[0].Empty)
	assert.True(t, groups[1].Empty)
	assert.Equal(t, EmptyPlaceholder, groups[1].Placeholder)
	assert.True(t, groups[2].Empty)
	assert.NotNil(t, groups[2].Records)
}

func TestProjectKanbanUnknownStatusGoesLast(t *testing.T) {
	seq := []item{{id: "x", status: "Archived"}, {id: "y", status: stOpen}}
	groups := Project(seq, ViewKanban, testOrder)
	require.Len(t, groups, 4)
	assert.Equal(t, StatusOther, groups[3].Status)
	assert.Equal(t, []string{"x"}, ids(groups[3].Records))
}

func TestNavigatorTransitions(t *testing.T) {
	var n Navigator
	assert.Equal(t, Browsing, n.State())
	assert.True(t, n.ShowHeader())

	n.Activate("2")
	n.Activate("2")
	assert.Equal(t, Detail, n.State())
	assert.Equal(t, "2", n.Selected())
	assert.False(t, n.ShowHeader())

	n.Activate("4")
	assert.Equal(t, "4", n.Selected())

	n.Back()
	assert.Equal(t, Browsing, n.State())
	assert.Empty(t, n.Selected())
}

func TestBoardViewSwitchKeepsRelativeOrder(t *testing.T) {
	b := NewBoard(testDomain(), fixture())
	b.SetQuery("e")

	list := b.Snapshot()
	b.SetView(ViewKanban)
	kanban := b.Snapshot()
	b.SetView(ViewCompact)
	compact := b.Snapshot()

	assert.Equal(t, ids(list.Visible), ids(Flatten(kanban.Groups)))
	assert.Equal(t, ids(list.Visible), ids(compact.Groups[0].Records))
}

func TestBoardActionsNeverTouchRecords(t *testing.T) {
	recs := fixture()
	b := NewBoard(testDomain(), recs)

	b.SetQuery("alpha")
	b.ToggleFilter("done")
	b.SetSort(SortName)
	b.CycleView()

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(recs))
	snap := b.Snapshot()
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, []string{"1"}, ids(snap.Visible))
	assert.Equal(t, []string{"done"}, snap.Filters)
	assert.Equal(t, ViewCompact, snap.View)
}

func TestBoardToggleFilter(t *testing.T) {
	b := NewBoard(testDomain(), fixture())
	assert.True(t, b.ToggleFilter("open"))
	assert.Len(t, b.Snapshot().Visible, 3)
	assert.False(t, b.ToggleFilter("open"))
	assert.Len(t, b.Snapshot().Visible, 5)
}

func TestBoardSelectionLifecycle(t *testing.T) {
	b := NewBoard(testDomain(), fixture())

	assert.False(t, b.Activate("missing"))
	require.True(t, b.Activate("3"))

	snap := b.Snapshot()
	assert.Equal(t, Detail, snap.State)
	assert.False(t, snap.ShowHeader)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "Gamma LLC", snap.Selected.name)

	// The selected record is replaced, not edited: the snapshot sees the new value.
	updated := snap.Selected
	next := *updated
	next.status = stDone
	require.True(t, b.Replace(next))
	assert.Equal(t, stDone, b.Snapshot().Selected.status)
	assert.Equal(t, stWaiting, updated.status)

	// Dropping the record from the collection falls back to browsing.
	b.SetRecords(fixture()[:2])
	snap = b.Snapshot()
	assert.Equal(t, Browsing, snap.State)
	assert.Nil(t, snap.Selected)
}

func TestBoardSetSortResolvesUnknown(t *testing.T) {
	b := NewBoard(testDomain(), fixture())
	assert.Equal(t, SortName, b.SetSort(SortName))
	assert.Equal(t, SortPriority, b.SetSort("by-vibes"))
}

func TestSlug(t *testing.T) {
	for in, want := range map[string]string{
		"Needs Review":            "needs-review",
		"  Awaiting   Documents ": "awaiting-documents",
		"Complete":                "complete",
	} {
		assert.Equal(t, want, Slug(in), fmt.Sprintf("slug(%q)", in))
	}
}

package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/fixtures"
	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/triage"
	"github.com/Ashfaaq98/casedesk/internal/turn"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// heldScheduler keeps reply callbacks until the test releases them.
type heldScheduler struct {
	mu    sync.Mutex
	funcs []func()
}

type heldTimer struct{}

func (heldTimer) Stop() bool { return true }

func (s *heldScheduler) AfterFunc(_ time.Duration, f func()) turn.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs = append(s.funcs, f)
	return heldTimer{}
}

func (s *heldScheduler) fire(t *testing.T, i int) {
	t.Helper()
	s.mu.Lock()
	require.Less(t, i, len(s.funcs))
	f := s.funcs[i]
	s.mu.Unlock()
	f()
}

func newTestApp(t *testing.T, deps Deps) *App {
	t.Helper()
	if deps.Chat == nil {
		deps.Chat = chat.NewStore(nil)
	}
	if deps.Cases == nil && deps.Threads == nil {
		static := fixtures.NewStatic(fixtures.Sample(testNow))
		deps.Cases, deps.Threads = static, static
	}
	deps.Now = func() time.Time { return testNow }
	ui, err := New(context.Background(), deps)
	require.NoError(t, err)
	t.Cleanup(ui.Stop)
	return ui
}

func ids[T triage.Record](records []T) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.RecordID()
	}
	return out
}

func TestNewRequiresChatStore(t *testing.T) {
	_, err := New(context.Background(), Deps{})
	assert.Error(t, err)
}

func TestNewLoadsBoards(t *testing.T) {
	ui := newTestApp(t, Deps{})

	assert.Equal(t, 5, ui.review.board.Snapshot().Total)
	assert.Equal(t, 5, ui.comms.board.Snapshot().Total)
	assert.Equal(t, 6, ui.review.table.GetRowCount(), "header plus one row per case")
	assert.Equal(t, PageReview, ui.current)
	assert.Contains(t, ui.statusBar.GetText(true), "Ready: 5 cases, 5 threads")
}

func TestLayoutGridList(t *testing.T) {
	board := review.NewBoard(fixtures.Sample(testNow).Cases)
	snap := board.Snapshot()
	grid := layoutGrid(snap, caseSpec(), themeDark(), review.StatusOrder, testNow)

	require.Len(t, grid, 6)
	assert.True(t, grid[0][0].Header)
	assert.Equal(t, "Client", grid[0][0].Text)
	// Urgent needs-review case leads the priority order.
	assert.Equal(t, "Acme Logistics LLC", grid[1][0].Text)
	assert.Equal(t, "case-004", grid[1][0].ID)
}

func TestLayoutGridEmptyShowsPlaceholder(t *testing.T) {
	board := review.NewBoard(fixtures.Sample(testNow).Cases)
	board.SetQuery("no such client")

	for _, mode := range []triage.ViewMode{triage.ViewList, triage.ViewCompact} {
		board.SetView(mode)
		grid := layoutGrid(board.Snapshot(), caseSpec(), themeDark(), review.StatusOrder, testNow)
		require.Len(t, grid, 2, mode)
		assert.Equal(t, triage.EmptyPlaceholder, grid[1][0].Text)
		assert.Empty(t, grid[1][0].ID)
	}
}

func TestKanbanGridColumns(t *testing.T) {
	cases := fixtures.Sample(testNow).Cases
	board := review.NewBoard(cases)
	board.SetView(triage.ViewKanban)
	board.ToggleFilter("needs-review")
	board.ToggleFilter("awaiting-documents")

	snap := board.Snapshot()
	grid := layoutGrid(snap, caseSpec(), themeDark(), review.StatusOrder, testNow)

	require.Len(t, grid[0], 3)
	assert.Equal(t, "Needs Review (2)", grid[0][0].Text)
	assert.Equal(t, "Awaiting Documents (2)", grid[0][1].Text)
	assert.Equal(t, "Complete (0)", grid[0][2].Text)
	assert.Equal(t, triage.EmptyPlaceholder, grid[1][2].Text)
	assert.Equal(t, "Acme Logistics LLC (urgent)", grid[1][0].Text)

	// Reading the columns left to right gives the sorted sequence.
	var got []string
	for c := range grid[0] {
		for r := 1; r < len(grid); r++ {
			if id := grid[r][c].ID; id != "" {
				got = append(got, id)
			}
		}
	}
	assert.Equal(t, ids(snap.Visible), got)
}

func TestNextSortKey(t *testing.T) {
	s := review.Sorter()
	key := triage.SortPriority
	var seen []triage.SortKey
	for i := 0; i < 4; i++ {
		key = nextSortKey(s, key)
		seen = append(seen, key)
	}
	assert.Equal(t, []triage.SortKey{triage.SortName, triage.SortRecency, triage.SortCount, triage.SortPriority}, seen)

	// Keys a domain does not define are skipped.
	partial := triage.Sorter[review.Case]{Order: review.StatusOrder}
	assert.Equal(t, triage.SortPriority, nextSortKey(partial, triage.SortPriority))
}

func TestHeaderLine(t *testing.T) {
	board := review.NewBoard(fixtures.Sample(testNow).Cases)
	board.SetQuery("john")
	board.ToggleFilter(review.FilterUnassigned)
	line := headerLine(board.Snapshot(), review.Filters(), themeDark())

	assert.Contains(t, line, "Search:[-] john")
	assert.Contains(t, line, "Unassigned")
	assert.Contains(t, line, "0 of 5")
}

func TestBoardPanelDetailHidesHeader(t *testing.T) {
	ui := newTestApp(t, Deps{})
	p := ui.review

	require.True(t, p.board.Activate("case-002"))
	p.render()
	name, _ := p.body.GetFrontPage()
	assert.Equal(t, "detail", name)
	assert.Contains(t, p.detail.GetText(true), "Jane Smith")
	assert.Equal(t, "case-002", p.currentID())

	p.board.Back()
	p.render()
	name, _ = p.body.GetFrontPage()
	assert.Equal(t, "table", name)
}

func TestAdvanceStatusPersists(t *testing.T) {
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	_, err = fixtures.Apply(ctx, st, fixtures.Sample(testNow))
	require.NoError(t, err)

	ui := newTestApp(t, Deps{Cases: st, Threads: st, Store: st})
	ui.review.advanceStatus("case-002")

	saved, err := st.GetCase(ctx, "case-002")
	require.NoError(t, err)
	assert.Equal(t, review.StatusComplete, saved.Status)
	assert.Equal(t, 100, saved.Progress)

	c, ok := ui.review.lookup("case-002")
	require.True(t, ok)
	assert.Equal(t, review.StatusComplete, c.Status)

	entries, err := st.GetAuditEntries(ctx, "case-002", 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "status_changed", entries[0].Action)

	// Complete wraps back to the first status.
	ui.review.advanceStatus("case-002")
	saved, _ = st.GetCase(ctx, "case-002")
	assert.Equal(t, review.StatusNeedsReview, saved.Status)
}

func TestAdvanceStatusWithoutStore(t *testing.T) {
	ui := newTestApp(t, Deps{})
	ui.review.advanceStatus("case-001")
	c, ok := ui.review.lookup("case-001")
	require.True(t, ok)
	assert.Equal(t, review.StatusAwaitingDocuments, c.Status)
	assert.Equal(t, testNow, c.LastActivityAt)
}

func TestSendReplyPersists(t *testing.T) {
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	_, err = fixtures.Apply(ctx, st, fixtures.Sample(testNow))
	require.NoError(t, err)

	ui := newTestApp(t, Deps{Cases: st, Threads: st, Store: st})
	require.NoError(t, ui.comms.sendReply("thread-005", "The deadline is the 14th; we will file on the 12th."))

	saved, err := st.GetThread(ctx, "thread-005")
	require.NoError(t, err)
	assert.Equal(t, comms.StatusResponded, saved.Status)
	assert.False(t, saved.ActionRequired)
	last := saved.Messages[len(saved.Messages)-1]
	assert.Equal(t, replySender, last.From)
	assert.Equal(t, comms.ChannelPhone, last.Channel)
	assert.False(t, last.Inbound)

	assert.Error(t, ui.comms.sendReply("thread-404", "hello"))
}

func TestReplyChannel(t *testing.T) {
	assert.Equal(t, comms.ChannelEmail, replyChannel(comms.Thread{}))
	th := comms.Thread{Messages: []comms.Message{
		{Channel: comms.ChannelSMS, Inbound: true},
		{Channel: comms.ChannelPortal, Inbound: false},
	}}
	assert.Equal(t, comms.ChannelSMS, replyChannel(th))
}

func TestChatReplyLandsInSubmittingConversation(t *testing.T) {
	cs := chat.NewStore(nil)
	sched := &heldScheduler{}
	engine := turn.NewEngine(cs, turn.FixtureResponder{Replies: []string{"reply one", "reply two"}}, sched, turn.Config{}, nil)
	ui := newTestApp(t, Deps{Chat: cs, Engine: engine})
	p := ui.chat

	p.submit("Draft a demand letter")
	a, mode := cs.Active()
	require.Equal(t, chat.ModeConversation, mode)
	assert.Contains(t, p.transcript.GetText(true), "You: Draft a demand letter")
	assert.Contains(t, p.transcript.GetText(true), "Assistant is thinking...")

	// Start a second conversation before the first reply arrives.
	cs.StartBlank()
	p.submit("Check the statute of limitations")
	b, _ := cs.Active()
	require.NotEqual(t, a, b)

	sched.fire(t, 0)
	convA, _ := cs.Get(a)
	require.Len(t, convA.Messages, 2)
	assert.Equal(t, "reply one", convA.Messages[1].Content)

	// B is still waiting and is the one on screen.
	assert.Contains(t, p.transcript.GetText(true), "Assistant is thinking...")
	assert.NotContains(t, p.transcript.GetText(true), "reply one")

	// B starts its own reply cycle.
	sched.fire(t, 1)
	assert.NotContains(t, p.transcript.GetText(true), "thinking")
	assert.Contains(t, p.transcript.GetText(true), "reply one")
	assert.Len(t, p.listIDs, 2)
}

func TestChatSubmitIgnoresBlank(t *testing.T) {
	ui := newTestApp(t, Deps{})
	ui.chat.submit("   ")
	assert.Zero(t, ui.deps.Chat.Len())
}

func TestChatRemoveCurrent(t *testing.T) {
	cs := chat.NewStore(nil)
	ui := newTestApp(t, Deps{Chat: cs, Engine: turn.NewEngine(cs, nil, &heldScheduler{}, turn.Config{}, nil)})
	ui.chat.submit("first question")
	ui.chat.render()
	require.Len(t, ui.chat.listIDs, 1)

	ui.chat.list.SetCurrentItem(0)
	ui.chat.removeCurrent()
	assert.Zero(t, cs.Len())
	assert.Empty(t, ui.chat.listIDs)
}

func TestTranscriptText(t *testing.T) {
	conv := chat.Conversation{Messages: []chat.Message{
		{Role: chat.RoleUser, Content: "What is [red]this?", Timestamp: testNow},
		{Role: chat.RoleAssistant, Content: "A bracket.", Timestamp: testNow},
	}}
	text := transcriptText(conv, themeDark(), "Paralegal", false)
	assert.Contains(t, text, "You:[-] What is [red[]this?")
	assert.Contains(t, text, "Paralegal:[-] A bracket.")
	assert.NotContains(t, text, "thinking")

	assert.Contains(t, transcriptText(conv, themeDark(), "", true), "Assistant is thinking...")
}

func TestTokenLine(t *testing.T) {
	conv := chat.Conversation{Messages: []chat.Message{{Content: "12345678"}, {Content: "1234"}}}
	assert.Contains(t, tokenLine(conv, themeDark(), func(s string) int { return len(s) / 4 }), "~3 tokens in 2 messages")
	assert.Empty(t, tokenLine(conv, themeDark(), nil))
}

func TestRelativeTimeAndAge(t *testing.T) {
	assert.Equal(t, "-", relativeTime(time.Time{}, testNow))
	assert.Equal(t, "just now", relativeTime(testNow.Add(-10*time.Second), testNow))
	assert.Equal(t, "5m ago", relativeTime(testNow.Add(-5*time.Minute), testNow))
	assert.Equal(t, "3h ago", relativeTime(testNow.Add(-3*time.Hour), testNow))
	assert.Equal(t, "2d ago", relativeTime(testNow.Add(-49*time.Hour), testNow))

	assert.Equal(t, "-", age(0))
	assert.Equal(t, "45m", age(45*time.Minute))
	assert.Equal(t, "1d", age(30*time.Hour))
}

func TestCaseAside(t *testing.T) {
	th := themeDark()
	assert.Empty(t, caseAside(th, "", nil))

	text := caseAside(th, "Awaiting W-2 forms.", []store.Note{{Author: "sarah", Content: "Called client", CreatedAt: testNow}})
	assert.Contains(t, text, "Assistant summary")
	assert.Contains(t, text, "Awaiting W-2 forms.")
	assert.Contains(t, text, "sarah:[-] Called client")
}

func TestNextStatusWraps(t *testing.T) {
	assert.Equal(t, review.StatusAwaitingDocuments, nextStatus(review.StatusOrder, review.StatusNeedsReview))
	assert.Equal(t, review.StatusNeedsReview, nextStatus(review.StatusOrder, review.StatusComplete))
	assert.Equal(t, review.StatusNeedsReview, nextStatus(review.StatusOrder, "Archived"))
}

func TestReloadKeepsBoardInputs(t *testing.T) {
	static := fixtures.NewStatic(fixtures.Sample(testNow))
	ui := newTestApp(t, Deps{Cases: static, Threads: static})
	ui.review.board.SetQuery("llc")

	require.NoError(t, static.SaveCase(context.Background(), review.Case{
		ID: "case-006", ClientName: "Harbor Freight LLC", Status: review.StatusNeedsReview,
	}))
	require.NoError(t, ui.Reload(context.Background()))

	snap := ui.review.board.Snapshot()
	assert.Equal(t, 6, snap.Total)
	assert.Equal(t, "llc", snap.Query)
	assert.ElementsMatch(t, []string{"case-004", "case-006"}, ids(snap.Visible))
}

func TestThemes(t *testing.T) {
	name, _ := themeByName("LIGHT")
	assert.Equal(t, "light", name)
	name, _ = themeByName("sepia")
	assert.Equal(t, "dark", name)

	assert.Equal(t, "light", nextTheme("dark"))
	assert.Equal(t, "dark", nextTheme("high-contrast"))

	th := themeDark()
	assert.Equal(t, th.StatusOpen, th.statusColor(review.StatusOrder, review.StatusNeedsReview))
	assert.Equal(t, th.StatusWaiting, th.statusColor(review.StatusOrder, review.StatusAwaitingDocuments))
	assert.Equal(t, th.StatusDone, th.statusColor(review.StatusOrder, review.StatusComplete))
}

func TestSetThemeRerenders(t *testing.T) {
	ui := newTestApp(t, Deps{})
	ui.cycleTheme()
	assert.Equal(t, "light", ui.themeName)
	assert.Contains(t, ui.tabs.GetText(true), "theme: light")
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// cell is one rendered table cell. ID is empty for headers and placeholders,
// which are not selectable.
type cell struct {
	Text   string
	ID     string
	Color  tcell.Color
	Header bool
}

type column[T triage.Record] struct {
	Title string
	Value func(T, time.Time) string
	Color func(Theme, T) tcell.Color
}

// boardSpec is how one record type is drawn on a board.
type boardSpec[T triage.Record] struct {
	Title   string
	Columns []column[T]
	Compact func(T, time.Time) string
	Card    func(T, time.Time) string
	Detail  func(Theme, T, time.Time) string
}

// sortCycle is the order the sort key toggles through.
var sortCycle = []triage.SortKey{triage.SortPriority, triage.SortName, triage.SortRecency, triage.SortCount}

func nextSortKey[T triage.Record](s triage.Sorter[T], cur triage.SortKey) triage.SortKey {
	start := 0
	for i, k := range sortCycle {
		if k == cur {
			start = i
			break
		}
	}
	for step := 1; step <= len(sortCycle); step++ {
		k := sortCycle[(start+step)%len(sortCycle)]
		if s.Has(k) {
			return k
		}
	}
	return triage.SortPriority
}

// layoutGrid lays a snapshot out as rows of cells. Row 0 is always a header.
func layoutGrid[T triage.Record](snap triage.Snapshot[T], spec boardSpec[T], th Theme, order triage.StatusOrder, now time.Time) [][]cell {
	switch snap.View {
	case triage.ViewKanban:
		return kanbanGrid(snap.Groups, spec, th, order, now)
	case triage.ViewCompact:
		rows := [][]cell{{{Text: spec.Title, Header: true, Color: th.TableHeader}}}
		for _, r := range snap.Visible {
			rows = append(rows, []cell{{
				Text:  spec.Compact(r, now),
				ID:    r.RecordID(),
				Color: th.statusColor(order, r.RecordStatus()),
			}})
		}
		if len(snap.Visible) == 0 {
			rows = append(rows, []cell{{Text: triage.EmptyPlaceholder, Color: th.TableRowMuted}})
		}
		return rows
	default:
		header := make([]cell, len(spec.Columns))
		for i, c := range spec.Columns {
			header[i] = cell{Text: c.Title, Header: true, Color: th.TableHeader}
		}
		rows := [][]cell{header}
		for _, r := range snap.Visible {
			row := make([]cell, len(spec.Columns))
			for i, c := range spec.Columns {
				color := th.TableRow
				if c.Color != nil {
					color = c.Color(th, r)
				}
				row[i] = cell{Text: c.Value(r, now), ID: r.RecordID(), Color: color}
			}
			rows = append(rows, row)
		}
		if len(snap.Visible) == 0 {
			rows = append(rows, []cell{{Text: triage.EmptyPlaceholder, Color: th.TableRowMuted}})
		}
		return rows
	}
}

// kanbanGrid puts one status per column. Empty columns carry the
// placeholder in their first row.
func kanbanGrid[T triage.Record](groups []triage.Group[T], spec boardSpec[T], th Theme, order triage.StatusOrder, now time.Time) [][]cell {
	height := 1
	for _, g := range groups {
		if n := len(g.Records); n > height {
			height = n
		}
	}
	rows := make([][]cell, height+1)
	for i := range rows {
		rows[i] = make([]cell, len(groups))
	}
	for c, g := range groups {
		rows[0][c] = cell{
			Text:   fmt.Sprintf("%s (%d)", g.Status, len(g.Records)),
			Header: true,
			Color:  th.statusColor(order, g.Status),
		}
		if g.Empty {
			rows[1][c] = cell{Text: g.Placeholder, Color: th.TableRowMuted}
			continue
		}
		for i, r := range g.Records {
			rows[i+1][c] = cell{Text: spec.Card(r, now), ID: r.RecordID(), Color: th.TableRow}
		}
	}
	return rows
}

// headerLine summarises the active board inputs.
func headerLine[T triage.Record](snap triage.Snapshot[T], filters triage.FilterTable[T], th Theme) string {
	var b strings.Builder
	if q := strings.TrimSpace(snap.Query); q != "" {
		fmt.Fprintf(&b, "[%s]Search:[-] %s  ", th.TagAccent, tview.Escape(q))
	}
	if len(snap.Filters) > 0 {
		labels := make([]string, 0, len(snap.Filters))
		for _, def := range filters {
			for _, id := range snap.Filters {
				if id == def.ID {
					labels = append(labels, def.Label)
				}
			}
		}
		fmt.Fprintf(&b, "[%s]Filters:[-] %s  ", th.TagWarning, strings.Join(labels, ", "))
	}
	fmt.Fprintf(&b, "[%s]Sort:[-] %s  [%s]View:[-] %s  [%s]%d of %d[-]",
		th.TagMuted, snap.SortBy, th.TagMuted, snap.View, th.TagMuted, len(snap.Visible), snap.Total)
	return b.String()
}

// relativeTime renders a compact age such as "5m ago".
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// age renders a duration without the "ago" suffix; zero is "-".
func age(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func caseSpec() boardSpec[review.Case] {
	return boardSpec[review.Case]{
		Title: "Cases",
		Columns: []column[review.Case]{
			{Title: "Client", Value: func(c review.Case, _ time.Time) string { return c.ClientName }},
			{Title: "Case #", Value: func(c review.Case, _ time.Time) string { return c.CaseNumber }},
			{Title: "Area", Value: func(c review.Case, _ time.Time) string { return orDash(c.PracticeArea) }},
			{
				Title: "Status",
				Value: func(c review.Case, _ time.Time) string { return string(c.Status) },
				Color: func(th Theme, c review.Case) tcell.Color { return th.statusColor(review.StatusOrder, c.Status) },
			},
			{
				Title: "Priority",
				Value: func(c review.Case, _ time.Time) string { return c.Priority.String() },
				Color: func(th Theme, c review.Case) tcell.Color { return th.priorityColor(c.Priority) },
			},
			{Title: "Progress", Value: func(c review.Case, _ time.Time) string { return fmt.Sprintf("%d%%", c.Progress) }},
			{Title: "Docs", Value: func(c review.Case, _ time.Time) string { return fmt.Sprint(c.DocumentCount) }},
			{Title: "Assigned", Value: func(c review.Case, _ time.Time) string { return orDash(c.AssignedTo) }},
			{Title: "Activity", Value: func(c review.Case, now time.Time) string { return relativeTime(c.LastActivityAt, now) }},
		},
		Compact: func(c review.Case, _ time.Time) string {
			return fmt.Sprintf("%s · %s · %s · %s", c.ClientName, c.CaseNumber, c.Status, c.Priority)
		},
		Card: func(c review.Case, _ time.Time) string {
			return fmt.Sprintf("%s (%s)", c.ClientName, c.Priority)
		},
		Detail: caseDetail,
	}
}

func caseDetail(th Theme, c review.Case, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-::-]  %s\n\n", th.TagAccent, tview.Escape(c.ClientName), tview.Escape(c.CaseNumber))
	fmt.Fprintf(&b, "[%s]Status:[-]        %s\n", th.TagMuted, c.Status)
	fmt.Fprintf(&b, "[%s]Priority:[-]      %s\n", th.TagMuted, c.Priority)
	fmt.Fprintf(&b, "[%s]Practice area:[-] %s\n", th.TagMuted, tview.Escape(orDash(c.PracticeArea)))
	fmt.Fprintf(&b, "[%s]Progress:[-]      %s %d%%\n", th.TagMuted, progressBar(c.Progress, 20), c.Progress)
	fmt.Fprintf(&b, "[%s]Documents:[-]     %d\n", th.TagMuted, c.DocumentCount)
	fmt.Fprintf(&b, "[%s]Assigned to:[-]   %s\n", th.TagMuted, tview.Escape(orDash(c.AssignedTo)))
	fmt.Fprintf(&b, "[%s]Last activity:[-] %s\n", th.TagMuted, relativeTime(c.LastActivityAt, now))
	if d := strings.TrimSpace(c.Description); d != "" {
		fmt.Fprintf(&b, "\n%s\n", tview.Escape(d))
	}
	return b.String()
}

func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func threadSpec() boardSpec[comms.Thread] {
	return boardSpec[comms.Thread]{
		Title: "Threads",
		Columns: []column[comms.Thread]{
			{
				Title: "",
				Value: func(t comms.Thread, _ time.Time) string { return attentionMark(t) },
				Color: func(th Theme, _ comms.Thread) tcell.Color { return th.StatusOpen },
			},
			{Title: "Client", Value: func(t comms.Thread, _ time.Time) string { return t.ClientName }},
			{Title: "Case #", Value: func(t comms.Thread, _ time.Time) string { return orDash(t.CaseNumber) }},
			{Title: "Subject", Value: func(t comms.Thread, _ time.Time) string { return t.Subject }},
			{
				Title: "Status",
				Value: func(t comms.Thread, _ time.Time) string { return string(t.Status) },
				Color: func(th Theme, t comms.Thread) tcell.Color { return th.statusColor(comms.StatusOrder, t.Status) },
			},
			{Title: "Waiting", Value: func(t comms.Thread, now time.Time) string { return age(t.QueueAge(now)) }},
			{Title: "Msgs", Value: func(t comms.Thread, _ time.Time) string { return fmt.Sprint(t.MessageCount()) }},
			{Title: "Activity", Value: func(t comms.Thread, now time.Time) string { return relativeTime(t.LastActivityAt, now) }},
		},
		Compact: func(t comms.Thread, now time.Time) string {
			return fmt.Sprintf("%s%s · %s · %s · waiting %s", attentionPrefix(t), t.ClientName, t.Subject, t.Status, age(t.QueueAge(now)))
		},
		Card: func(t comms.Thread, now time.Time) string {
			return fmt.Sprintf("%s%s · %s", attentionPrefix(t), t.ClientName, age(t.QueueAge(now)))
		},
		Detail: threadDetail,
	}
}

func attentionMark(t comms.Thread) string {
	if t.ActionRequired {
		return "!"
	}
	if t.Status == comms.StatusUnread {
		return "*"
	}
	return ""
}

func attentionPrefix(t comms.Thread) string {
	if m := attentionMark(t); m != "" {
		return m + " "
	}
	return ""
}

func threadDetail(th Theme, t comms.Thread, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-::-]  %s\n", th.TagAccent, tview.Escape(t.Subject), tview.Escape(orDash(t.CaseNumber)))
	fmt.Fprintf(&b, "[%s]Client:[-] %s  [%s]Status:[-] %s  [%s]Waiting:[-] %s\n",
		th.TagMuted, tview.Escape(t.ClientName), th.TagMuted, t.Status, th.TagMuted, age(t.QueueAge(now)))
	if t.ActionRequired {
		fmt.Fprintf(&b, "[%s]Action required[-]\n", th.TagWarning)
	}
	b.WriteString("\n")
	for _, m := range t.Messages {
		who := th.TagUser
		if !m.Inbound {
			who = th.TagAssistant
		}
		fmt.Fprintf(&b, "[%s]%s %s[-] [%s](%s)[-]\n%s\n\n",
			who, m.SentAt.Local().Format("Jan 02 15:04"), tview.Escape(m.From),
			th.channelTag(m.Channel), m.Channel, tview.Escape(m.Body))
	}
	if len(t.Messages) == 0 {
		fmt.Fprintf(&b, "[%s]No messages yet[-]\n", th.TagMuted)
	}
	return b.String()
}

// conversationLabel is the one-line entry of the conversation list.
func conversationLabel(c chat.Conversation, now time.Time) string {
	return fmt.Sprintf("%s  (%d msgs, %s)", c.Summary, len(c.Messages), relativeTime(c.UpdatedAt, now))
}

// transcriptText renders a conversation for the chat pane.
func transcriptText(c chat.Conversation, th Theme, persona string, thinking bool) string {
	if persona == "" {
		persona = "Assistant"
	}
	var b strings.Builder
	for _, m := range c.Messages {
		ts := m.Timestamp.Local().Format("15:04")
		if m.Role == chat.RoleUser {
			fmt.Fprintf(&b, "[%s]%s You:[-] %s\n\n", th.TagUser, ts, tview.Escape(m.Content))
		} else {
			fmt.Fprintf(&b, "[%s]%s %s:[-] %s\n\n", th.TagAssistant, ts, tview.Escape(persona), tview.Escape(m.Content))
		}
	}
	if thinking {
		fmt.Fprintf(&b, "[%s]Assistant is thinking...[-]\n", th.TagMuted)
	}
	return b.String()
}

// tokenLine is the estimate shown under the transcript.
func tokenLine(c chat.Conversation, th Theme, estimate func(string) int) string {
	if estimate == nil {
		return ""
	}
	total := 0
	for _, m := range c.Messages {
		total += estimate(m.Content)
	}
	return fmt.Sprintf("[%s]~%d tokens in %d messages[-]", th.TagMuted, total, len(c.Messages))
}

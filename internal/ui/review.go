package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// reviewPage is the case board plus its actions: move status, AI summary
// and case notes.
type reviewPage struct {
	*boardPanel[review.Case]

	summaries map[string]string
	notes     map[string][]store.Note
}

func newReviewPage(ui *App, cases []review.Case) *reviewPage {
	p := &reviewPage{
		boardPanel: newBoardPanel(ui, "review", review.NewBoard(cases), caseSpec()),
		summaries:  make(map[string]string),
		notes:      make(map[string][]store.Note),
	}
	p.actions['m'] = p.advanceStatus
	p.actions['a'] = p.summarize
	p.actions['n'] = p.showNoteForm
	p.hints = "Enter:Open  /:Search  f:Filter  s:Sort  v:View  m:Move  a:Summary  n:Note"

	// Opening a case loads its notes.
	p.table.SetSelectedFunc(func(row, col int) {
		id := p.idAt(row, col)
		if id == "" || !p.board.Activate(id) {
			return
		}
		p.render()
		p.loadNotes(id)
	})
	return p
}

// nextStatus walks the status order and wraps around.
func nextStatus(order triage.StatusOrder, st triage.Status) triage.Status {
	rank := order.Rank(st)
	if rank >= len(order)-1 {
		return order[0]
	}
	return order[rank+1]
}

func (p *reviewPage) lookup(id string) (review.Case, bool) {
	for _, c := range p.board.Ordered() {
		if c.ID == id {
			return c, true
		}
	}
	snap := p.board.Snapshot()
	if snap.Selected != nil && snap.SelectedID == id {
		return *snap.Selected, true
	}
	return review.Case{}, false
}

// advanceStatus moves a case to the next status. With a store the change is
// persisted first and the stored copy replaces the board record.
func (p *reviewPage) advanceStatus(id string) {
	c, ok := p.lookup(id)
	if !ok {
		return
	}
	next := nextStatus(review.StatusOrder, c.Status)
	updated := c.WithStatus(next, p.ui.now())

	if st := p.ui.deps.Store; st != nil {
		ctx, cancel := context.WithTimeout(p.ui.ctx, 2*time.Second)
		defer cancel()
		saved, err := st.UpdateCaseStatus(ctx, id, next, updated.LastActivityAt)
		if err != nil {
			p.ui.logger.Printf("update case %s status: %v", id, err)
			p.ui.setStatusDirect("[%s]Could not update %s: %v[-]", p.ui.theme.TagError, c.ClientName, err)
			return
		}
		updated = saved
		if err := st.LogAction(ctx, "case", id, "status_changed", "user", map[string]interface{}{
			"from": string(c.Status), "to": string(next),
		}); err != nil {
			p.ui.logger.Printf("audit status change %s: %v", id, err)
		}
	}
	p.board.Replace(updated)
	p.render()
	p.ui.setStatusDirect("[%s]%s moved to %s[-]", p.ui.theme.TagSuccess, c.ClientName, next)
}

// summarize asks the provider for a case briefing off the UI goroutine.
func (p *reviewPage) summarize(id string) {
	prov := p.ui.deps.Provider
	if prov == nil {
		p.ui.setStatusDirect("[%s]No assistant provider configured[-]", p.ui.theme.TagWarning)
		return
	}
	c, ok := p.lookup(id)
	if !ok {
		return
	}
	p.ui.setStatusDirect("[%s]Summarizing %s with %s...[-]", p.ui.theme.TagAccent, c.ClientName, prov.Name())
	p.ui.async(func(ctx context.Context) func() {
		ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		text, err := prov.SummarizeCase(ctx, c)
		if err == nil {
			if st := p.ui.deps.Store; st != nil {
				if aerr := st.LogAssistantQuery(ctx, "case", id, prov.Name(), "summarize_case", prov.EstimateTokens(text), 0); aerr != nil {
					p.ui.logger.Printf("audit summary %s: %v", id, aerr)
				}
			}
		}
		return func() {
			if err != nil {
				p.ui.logger.Printf("summarize case %s: %v", id, err)
				p.ui.setStatusDirect("[%s]Summary failed: %v[-]", p.ui.theme.TagError, err)
				return
			}
			p.summaries[id] = strings.TrimSpace(text)
			p.refreshAside(id)
			p.render()
			p.ui.setStatusDirect("[%s]Summary ready for %s[-]", p.ui.theme.TagSuccess, c.ClientName)
		}
	})
}

func (p *reviewPage) loadNotes(id string) {
	st := p.ui.deps.Store
	if st == nil {
		return
	}
	p.ui.async(func(ctx context.Context) func() {
		notes, err := st.GetNotes(ctx, id)
		return func() {
			if err != nil {
				p.ui.logger.Printf("load notes for %s: %v", id, err)
				return
			}
			p.notes[id] = notes
			p.refreshAside(id)
			p.render()
		}
	})
}

func (p *reviewPage) refreshAside(id string) {
	p.aside[id] = caseAside(p.ui.theme, p.summaries[id], p.notes[id])
}

// caseAside renders the AI summary and notes shown under a case.
func caseAside(th Theme, summary string, notes []store.Note) string {
	var b strings.Builder
	if summary != "" {
		fmt.Fprintf(&b, "[%s::b]Assistant summary[-::-]\n%s\n\n", th.TagAccent, tview.Escape(summary))
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, "[%s::b]Notes[-::-]\n", th.TagAccent)
		for _, n := range notes {
			fmt.Fprintf(&b, "[%s]%s %s:[-] %s\n", th.TagMuted,
				n.CreatedAt.Local().Format("Jan 02 15:04"), tview.Escape(orDash(n.Author)), tview.Escape(n.Content))
		}
	}
	return b.String()
}

func (p *reviewPage) showNoteForm(id string) {
	st := p.ui.deps.Store
	if st == nil {
		p.ui.setStatusDirect("[%s]Notes need a database[-]", p.ui.theme.TagWarning)
		return
	}
	c, ok := p.lookup(id)
	if !ok {
		return
	}
	th := p.ui.theme
	form := tview.NewForm()
	form.SetTitle(fmt.Sprintf(" Note for %s ", c.ClientName))
	form.SetBorder(true)
	form.SetBackgroundColor(th.Surface)
	form.SetFieldBackgroundColor(th.SelectionBg)
	form.SetFieldTextColor(th.TextPrimary)
	form.SetLabelColor(th.TextPrimary)
	form.SetButtonBackgroundColor(th.SelectionBg)
	form.SetButtonTextColor(th.SelectionFg)
	form.SetBorderColor(th.FocusBorder)

	form.AddTextArea("Note", "", 0, 5, 0, nil)
	form.AddInputField("Author", "user", 20, nil, nil)
	form.AddButton("Save", func() {
		content := strings.TrimSpace(form.GetFormItemByLabel("Note").(*tview.TextArea).GetText())
		author := strings.TrimSpace(form.GetFormItemByLabel("Author").(*tview.InputField).GetText())
		if content == "" {
			p.ui.setStatusDirect("[%s]Note is empty[-]", th.TagWarning)
			return
		}
		ctx, cancel := context.WithTimeout(p.ui.ctx, 2*time.Second)
		defer cancel()
		note, err := st.AddNote(ctx, store.Note{CaseID: id, Content: content, Author: author})
		if err != nil {
			p.ui.logger.Printf("add note to %s: %v", id, err)
			p.ui.setStatusDirect("[%s]Could not save note: %v[-]", th.TagError, err)
			return
		}
		p.notes[id] = append([]store.Note{note}, p.notes[id]...)
		p.refreshAside(id)
		p.ui.restoreMainLayout()
		p.render()
		p.ui.setStatusDirect("[%s]Note added[-]", th.TagSuccess)
	})
	form.AddButton("Cancel", p.ui.restoreMainLayout)
	form.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEsc {
			p.ui.restoreMainLayout()
			return nil
		}
		return ev
	})
	p.ui.showDialog(form, 64, 14)
}

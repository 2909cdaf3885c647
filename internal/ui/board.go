package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// boardPanel draws one triage board: search field, input summary, the
// record table (list, compact or kanban) and a detail pane that replaces
// the table while a record is selected.
type boardPanel[T triage.Record] struct {
	ui    *App
	name  string
	board *triage.Board[T]
	spec  boardSpec[T]

	root   *tview.Flex
	search *tview.InputField
	header *tview.TextView
	body   *tview.Pages
	table  *tview.Table
	detail *tview.TextView

	// aside holds extra detail text per record id (notes, AI output).
	aside map[string]string
	// actions are page-specific keys, run with the record under the cursor
	// or the record in detail.
	actions map[rune]func(id string)
	hints   string

	cursorID string
}

func newBoardPanel[T triage.Record](ui *App, name string, board *triage.Board[T], spec boardSpec[T]) *boardPanel[T] {
	p := &boardPanel[T]{
		ui:      ui,
		name:    name,
		board:   board,
		spec:    spec,
		aside:   make(map[string]string),
		actions: make(map[rune]func(string)),
	}

	p.search = tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0).
		SetPlaceholder("search " + strings.ToLower(spec.Title))
	p.search.SetChangedFunc(func(text string) {
		p.board.SetQuery(text)
		p.render()
	})
	p.search.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEsc {
			p.search.SetText("")
		}
		p.ui.app.SetFocus(p.table)
	})

	p.header = tview.NewTextView().SetDynamicColors(true)

	p.table = tview.NewTable()
	p.table.SetBorder(true)
	p.table.SetTitle(" " + spec.Title + " ")
	p.table.SetTitleAlign(tview.AlignLeft)
	p.table.SetFixed(1, 0)
	p.table.SetSelectedFunc(func(row, col int) {
		if id := p.idAt(row, col); id != "" && p.board.Activate(id) {
			p.render()
		}
	})
	p.table.SetSelectionChangedFunc(func(row, col int) {
		if id := p.idAt(row, col); id != "" {
			p.cursorID = id
		}
	})
	p.table.SetInputCapture(p.tableKeys)

	p.detail = tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetScrollable(true)
	p.detail.SetBorder(true)
	p.detail.SetTitleAlign(tview.AlignLeft)
	p.detail.SetInputCapture(p.detailKeys)

	p.body = tview.NewPages().
		AddPage("table", p.table, true, true).
		AddPage("detail", p.detail, true, false)

	p.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.search, 1, 0, false).
		AddItem(p.header, 1, 0, false).
		AddItem(p.body, 0, 1, true)
	return p
}

// focusTarget is what should receive focus when the panel is shown.
func (p *boardPanel[T]) focusTarget() tview.Primitive {
	if p.board.Snapshot().State == triage.Detail {
		return p.detail
	}
	return p.table
}

func (p *boardPanel[T]) idAt(row, col int) string {
	c := p.table.GetCell(row, col)
	if c == nil {
		return ""
	}
	id, _ := c.GetReference().(string)
	return id
}

// currentID is the record in detail, or the one under the cursor.
func (p *boardPanel[T]) currentID() string {
	snap := p.board.Snapshot()
	if snap.State == triage.Detail {
		return snap.SelectedID
	}
	row, col := p.table.GetSelection()
	return p.idAt(row, col)
}

// render redraws the panel from a fresh snapshot. Call on the UI goroutine.
func (p *boardPanel[T]) render() {
	snap := p.board.Snapshot()
	th := p.ui.theme
	now := p.ui.now()

	if snap.ShowHeader {
		p.root.ResizeItem(p.search, 1, 0)
		p.root.ResizeItem(p.header, 1, 0)
	} else {
		p.root.ResizeItem(p.search, 0, 0)
		p.root.ResizeItem(p.header, 0, 0)
	}

	if snap.State == triage.Detail && snap.Selected != nil {
		rec := *snap.Selected
		text := p.spec.Detail(th, rec, now)
		if extra := p.aside[rec.RecordID()]; extra != "" {
			text += "\n" + extra
		}
		p.detail.SetTitle(" " + strings.TrimSuffix(p.spec.Title, "s") + " ")
		p.detail.SetText(text)
		p.body.SwitchToPage("detail")
		if p.ui.running.Load() && p.ui.app.GetFocus() == p.table {
			p.ui.app.SetFocus(p.detail)
		}
		return
	}

	p.header.SetText(" " + headerLine(snap, p.board.Domain().Filters, th))
	p.fillTable(layoutGrid(snap, p.spec, th, p.board.Domain().Order, now), snap.View)
	p.body.SwitchToPage("table")
	if p.ui.running.Load() && p.ui.app.GetFocus() == p.detail {
		p.ui.app.SetFocus(p.table)
	}
}

func (p *boardPanel[T]) fillTable(grid [][]cell, view triage.ViewMode) {
	th := p.ui.theme
	p.table.Clear()
	p.table.SetSelectable(true, view == triage.ViewKanban)
	p.table.SetBorderColor(th.Border)
	p.table.SetSelectedStyle(tcell.StyleDefault.Background(th.SelectionBg).Foreground(th.SelectionFg))

	selRow, selCol := -1, -1
	firstRow, firstCol := -1, -1
	for r, row := range grid {
		for c, cl := range row {
			tc := tview.NewTableCell(tview.Escape(cl.Text)).
				SetTextColor(cl.Color).
				SetExpansion(1)
			if cl.Header {
				tc.SetBackgroundColor(th.TableHeaderBg).SetAttributes(tcell.AttrBold)
			}
			if cl.ID == "" {
				tc.SetSelectable(false)
			} else {
				tc.SetReference(cl.ID)
				if firstRow < 0 {
					firstRow, firstCol = r, c
				}
				if cl.ID == p.cursorID && selRow < 0 {
					selRow, selCol = r, c
				}
			}
			p.table.SetCell(r, c, tc)
		}
	}
	switch {
	case selRow >= 0:
		p.table.Select(selRow, selCol)
	case firstRow >= 0:
		p.table.Select(firstRow, firstCol)
		p.cursorID = p.idAt(firstRow, firstCol)
	}
}

func (p *boardPanel[T]) tableKeys(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() != tcell.KeyRune {
		return ev
	}
	switch r := ev.Rune(); r {
	case '/':
		p.ui.app.SetFocus(p.search)
		return nil
	case 'v':
		mode := p.board.CycleView()
		p.render()
		p.ui.setStatusDirect("View: %s", mode)
		return nil
	case 's':
		key := p.board.SetSort(nextSortKey(p.board.Domain().Sorter, p.board.Snapshot().SortBy))
		p.render()
		p.ui.setStatusDirect("Sort: %s", key)
		return nil
	case 'f':
		p.showFilterModal()
		return nil
	case 'c':
		p.board.ClearFilters()
		p.search.SetText("")
		p.render()
		p.ui.setStatusDirect("[%s]Filters cleared[-]", p.ui.theme.TagSuccess)
		return nil
	default:
		if fn, ok := p.actions[r]; ok {
			if id := p.currentID(); id != "" {
				fn(id)
			}
			return nil
		}
	}
	return ev
}

func (p *boardPanel[T]) detailKeys(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyEsc, tcell.KeyBackspace, tcell.KeyBackspace2:
		p.board.Back()
		p.render()
		p.ui.app.SetFocus(p.table)
		return nil
	case tcell.KeyRune:
		if fn, ok := p.actions[ev.Rune()]; ok {
			if id := p.currentID(); id != "" {
				fn(id)
			}
			return nil
		}
	}
	return ev
}

// showFilterModal lists every filter of the domain as a checkbox. Changes
// apply immediately.
func (p *boardPanel[T]) showFilterModal() {
	th := p.ui.theme
	snap := p.board.Snapshot()
	form := tview.NewForm()
	form.SetTitle(fmt.Sprintf(" %s filters ", p.spec.Title))
	form.SetBorder(true)
	form.SetBackgroundColor(th.Surface)
	form.SetFieldBackgroundColor(th.Surface)
	form.SetFieldTextColor(th.TextPrimary)
	form.SetLabelColor(th.TextPrimary)
	form.SetButtonBackgroundColor(th.SelectionBg)
	form.SetButtonTextColor(th.SelectionFg)
	form.SetBorderColor(th.FocusBorder)

	for _, def := range p.board.Domain().Filters {
		id := def.ID
		form.AddCheckbox(def.Label, slices.Contains(snap.Filters, id), func(bool) {
			p.board.ToggleFilter(id)
			p.render()
		})
	}
	form.AddButton("Clear", func() {
		p.board.ClearFilters()
		p.render()
		p.ui.restoreMainLayout()
	})
	form.AddButton("Close", p.ui.restoreMainLayout)
	form.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEsc {
			p.ui.restoreMainLayout()
			return nil
		}
		return ev
	})
	p.ui.showDialog(form, 44, len(p.board.Domain().Filters)*2+5)
}

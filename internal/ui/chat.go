package ui

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/llm"
	"github.com/Ashfaaq98/casedesk/internal/turn"
)

// PersonaSwitcher lets the chat screen change the assistant persona.
// *turn.PersonaResponder satisfies it.
type PersonaSwitcher interface {
	Persona() string
	SetPersona(string)
}

// chatPage shows the conversation list next to the active conversation. It
// never caches conversation contents: every render reads through the store.
type chatPage struct {
	ui     *App
	store  *chat.Store
	engine *turn.Engine

	root       *tview.Flex
	search     *tview.InputField
	list       *tview.List
	transcript *tview.TextView
	tokens     *tview.TextView
	persona    *tview.DropDown
	input      *tview.InputField

	listIDs     []string
	unsubscribe func()
}

func newChatPage(ui *App) *chatPage {
	p := &chatPage{ui: ui, store: ui.deps.Chat, engine: ui.deps.Engine}

	p.search = tview.NewInputField().SetLabel(" / ").SetFieldWidth(0).SetPlaceholder("search conversations")
	p.search.SetChangedFunc(func(string) { p.renderList() })
	p.search.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEsc {
			p.search.SetText("")
		}
		p.ui.app.SetFocus(p.list)
	})

	p.list = tview.NewList().ShowSecondaryText(true)
	p.list.SetBorder(true)
	p.list.SetTitle(" Conversations ")
	p.list.SetTitleAlign(tview.AlignLeft)
	p.list.SetSelectedFunc(func(i int, _, _ string, _ rune) { p.open(i) })
	p.list.SetInputCapture(p.listKeys)

	p.transcript = tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetScrollable(true)
	p.transcript.SetBorder(true)
	p.transcript.SetTitleAlign(tview.AlignLeft)

	p.tokens = tview.NewTextView().SetDynamicColors(true)

	p.input = tview.NewInputField().SetLabel("Message: ").SetFieldWidth(0)
	p.input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			p.submit(p.input.GetText())
		case tcell.KeyEsc:
			p.store.ExitToBrowsing()
			p.ui.app.SetFocus(p.list)
		}
	})
	p.input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlN {
			p.store.StartBlank()
			return nil
		}
		return ev
	})

	bottom := tview.NewFlex().AddItem(p.input, 0, 1, true)
	if sw := ui.deps.Persona; sw != nil {
		p.persona = tview.NewDropDown().SetLabel("Persona: ")
		p.persona.SetOptions(llm.Personas, func(option string, _ int) {
			if option != "" && option != sw.Persona() {
				sw.SetPersona(option)
				p.ui.setStatusDirect("Persona: %s", option)
				p.render()
			}
		})
		if i := slices.Index(llm.Personas, sw.Persona()); i >= 0 {
			p.persona.SetCurrentOption(i)
		}
		bottom.AddItem(p.persona, 36, 0, false)
	}

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.search, 1, 0, false).
		AddItem(p.list, 0, 1, true)
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.transcript, 0, 1, false).
		AddItem(p.tokens, 1, 0, false).
		AddItem(bottom, 1, 0, false)
	p.root = tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(right, 0, 2, false)

	p.unsubscribe = p.store.Subscribe(func(chat.Change) { p.ui.update(p.render) })
	return p
}

func (p *chatPage) close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

func (p *chatPage) focusTarget() tview.Primitive {
	if _, mode := p.store.Active(); mode == chat.ModeBrowsing {
		return p.list
	}
	return p.input
}

func (p *chatPage) personaName() string {
	if sw := p.ui.deps.Persona; sw != nil {
		return sw.Persona()
	}
	return "Assistant"
}

func (p *chatPage) estimate(text string) int {
	if prov := p.ui.deps.Provider; prov != nil {
		return prov.EstimateTokens(text)
	}
	return llm.EstimateTokens(text)
}

// submit hands the text to the turn engine. The engine decides the target
// conversation; the page only redraws.
func (p *chatPage) submit(text string) {
	if p.engine == nil {
		return
	}
	_, err := p.engine.Submit(p.ui.ctx, text)
	switch {
	case errors.Is(err, turn.ErrEmptyMessage):
		return
	case err != nil:
		p.ui.logger.Printf("submit chat message: %v", err)
		p.ui.setStatusDirect("[%s]Message not sent: %v[-]", p.ui.theme.TagError, err)
		return
	}
	p.input.SetText("")
	p.render()
}

func (p *chatPage) open(i int) {
	if i < 0 || i >= len(p.listIDs) {
		return
	}
	if p.store.SwitchActive(p.listIDs[i]) {
		p.ui.app.SetFocus(p.input)
	}
}

func (p *chatPage) listKeys(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyDelete:
		p.removeCurrent()
		return nil
	case tcell.KeyRune:
		switch ev.Rune() {
		case '/':
			p.ui.app.SetFocus(p.search)
			return nil
		case 'n':
			p.store.StartBlank()
			p.ui.app.SetFocus(p.input)
			return nil
		case 'x':
			p.removeCurrent()
			return nil
		}
	}
	return ev
}

func (p *chatPage) removeCurrent() {
	i := p.list.GetCurrentItem()
	if i < 0 || i >= len(p.listIDs) {
		return
	}
	if p.store.Remove(p.listIDs[i]) {
		p.ui.setStatusDirect("[%s]Conversation deleted[-]", p.ui.theme.TagSuccess)
	}
}

// render redraws both panes. Call on the UI goroutine.
func (p *chatPage) render() {
	p.renderList()
	p.renderTranscript()
}

func (p *chatPage) renderList() {
	activeID, _ := p.store.Active()
	now := p.ui.now()
	convs := p.store.Search(p.search.GetText())

	cur := p.list.GetCurrentItem()
	p.list.Clear()
	p.listIDs = p.listIDs[:0]
	for _, c := range convs {
		main := c.Summary
		if c.ID == activeID {
			main = "▸ " + main
		}
		second := fmt.Sprintf("  %d msgs · %s", len(c.Messages), relativeTime(c.UpdatedAt, now))
		if p.engine != nil && p.engine.Pending(c.ID) > 0 {
			second += " · replying"
		}
		p.list.AddItem(tview.Escape(main), second, 0, nil)
		p.listIDs = append(p.listIDs, c.ID)
	}
	if len(convs) == 0 {
		p.list.AddItem("No conversations", "  press n to start one", 0, nil)
	}
	if cur >= 0 && cur < p.list.GetItemCount() {
		p.list.SetCurrentItem(cur)
	}
}

func (p *chatPage) renderTranscript() {
	th := p.ui.theme
	activeID, mode := p.store.Active()
	switch mode {
	case chat.ModeConversation:
		conv, ok := p.store.Get(activeID)
		if !ok {
			p.transcript.SetTitle(" Chat ")
			p.transcript.SetText("")
			p.tokens.SetText("")
			return
		}
		thinking := p.engine != nil && p.engine.Thinking(activeID)
		p.transcript.SetTitle(" " + tview.Escape(conv.Summary) + " ")
		p.transcript.SetText(transcriptText(conv, th, p.personaName(), thinking))
		p.transcript.ScrollToEnd()
		p.tokens.SetText(tokenLine(conv, th, p.estimate))
	case chat.ModeBlank:
		p.transcript.SetTitle(" New conversation ")
		p.transcript.SetText(fmt.Sprintf("[%s]Type a message below to start a new conversation.[-]", th.TagMuted))
		p.tokens.SetText("")
	default:
		p.transcript.SetTitle(" Chat ")
		p.transcript.SetText(fmt.Sprintf("[%s]Select a conversation, or press n to start a new one.[-]", th.TagMuted))
		p.tokens.SetText("")
	}
}

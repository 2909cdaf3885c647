package ui

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/llm"
	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/turn"
)

// Page names, in tab order.
const (
	PageReview = "review"
	PageComms  = "comms"
	PageChat   = "chat"
)

var pageOrder = []string{PageReview, PageComms, PageChat}

var pageTitles = map[string]string{
	PageReview: "Review",
	PageComms:  "Communications",
	PageChat:   "Assistant",
}

// Deps is everything the TUI reads from or writes to.
type Deps struct {
	Cases   review.Repository
	Threads comms.Repository
	// Store, when set, persists status moves, replies and notes.
	Store    *store.Store
	Chat     *chat.Store
	Engine   *turn.Engine
	Provider llm.ChatProvider
	Persona  PersonaSwitcher
	Theme    string
	Logger   *log.Logger
	Now      func() time.Time
}

// App is the terminal user interface.
type App struct {
	app    *tview.Application
	deps   Deps
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc

	theme     Theme
	themeName string

	layout    *tview.Flex
	tabs      *tview.TextView
	pages     *tview.Pages
	statusBar *tview.TextView

	review *reviewPage
	comms  *commsPage
	chat   *chatPage

	current    string
	lastFocus  tview.Primitive
	dialogOpen bool
	running    atomic.Bool
	// mu serialises update closures when the application is not running.
	mu sync.Mutex
}

// New builds the UI and loads the initial records.
func New(ctx context.Context, deps Deps) (*App, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("ui: chat store is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Engine == nil {
		deps.Engine = turn.NewEngine(deps.Chat, nil, nil, turn.DefaultConfig, deps.Logger)
	}

	cases, threads, err := loadRecords(ctx, deps)
	if err != nil {
		return nil, err
	}

	uctx, cancel := context.WithCancel(ctx)
	ui := &App{
		app:    tview.NewApplication(),
		deps:   deps,
		logger: deps.Logger,
		ctx:    uctx,
		cancel: cancel,
	}
	ui.themeName, ui.theme = themeByName(deps.Theme)
	ui.theme.applyToStyles()

	ui.review = newReviewPage(ui, cases)
	ui.comms = newCommsPage(ui, threads)
	ui.chat = newChatPage(ui)
	ui.setupLayout()
	ui.switchPage(PageReview)
	ui.setStatusDirect("Ready: %d cases, %d threads", len(cases), len(threads))
	return ui, nil
}

func loadRecords(ctx context.Context, deps Deps) ([]review.Case, []comms.Thread, error) {
	var (
		cases   []review.Case
		threads []comms.Thread
		err     error
	)
	if deps.Cases != nil {
		if cases, err = deps.Cases.ListCases(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to load cases: %w", err)
		}
	}
	if deps.Threads != nil {
		if threads, err = deps.Threads.ListThreads(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to load threads: %w", err)
		}
	}
	return cases, threads, nil
}

func (ui *App) now() time.Time { return ui.deps.Now() }

func (ui *App) setupLayout() {
	ui.tabs = tview.NewTextView().SetDynamicColors(true)
	ui.pages = tview.NewPages().
		AddPage(PageReview, ui.review.root, true, true).
		AddPage(PageComms, ui.comms.root, true, false).
		AddPage(PageChat, ui.chat.root, true, false)
	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	ui.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.tabs, 1, 0, false).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)
	ui.app.SetRoot(ui.layout, true)
	ui.app.SetInputCapture(ui.globalKeys)
}

// Run starts the event loop and blocks until it exits or ctx is done.
func (ui *App) Run() error {
	ui.logger.Println("Starting TUI application")
	go func() {
		<-ui.ctx.Done()
		ui.app.Stop()
	}()
	ui.startRedrawHeartbeat()

	ui.running.Store(true)
	err := ui.app.Run()
	ui.running.Store(false)
	ui.logger.Printf("app.Run() returned with error: %v", err)
	return err
}

// Stop ends the event loop and releases the chat subscription.
func (ui *App) Stop() {
	ui.logger.Println("Stopping TUI application")
	ui.chat.close()
	ui.cancel()
	ui.app.Stop()
}

// Reload re-reads cases and threads, e.g. after fixtures changed on disk.
// Query, filters, sort, view and selection survive.
func (ui *App) Reload(ctx context.Context) error {
	cases, threads, err := loadRecords(ctx, ui.deps)
	if err != nil {
		return err
	}
	ui.review.board.SetRecords(cases)
	ui.comms.board.SetRecords(threads)
	ui.update(func() {
		ui.review.render()
		ui.comms.render()
		ui.setStatusDirect("Reloaded %d cases, %d threads", len(cases), len(threads))
	})
	return nil
}

// update applies fn on the UI goroutine.
func (ui *App) update(fn func()) {
	if ui.running.Load() {
		ui.app.QueueUpdateDraw(fn)
		return
	}
	ui.mu.Lock()
	defer ui.mu.Unlock()
	fn()
}

// async runs work off the UI goroutine; the closure it returns is applied
// on the UI goroutine.
func (ui *App) async(work func(ctx context.Context) func()) {
	go func() {
		if apply := work(ui.ctx); apply != nil {
			ui.update(apply)
		}
	}()
}

func (ui *App) switchPage(name string) {
	ui.current = name
	ui.pages.SwitchToPage(name)
	switch name {
	case PageReview:
		ui.review.render()
		ui.app.SetFocus(ui.review.focusTarget())
	case PageComms:
		ui.comms.render()
		ui.app.SetFocus(ui.comms.focusTarget())
	case PageChat:
		ui.chat.render()
		ui.app.SetFocus(ui.chat.focusTarget())
	}
	ui.renderTabs()
}

func (ui *App) renderTabs() {
	var b strings.Builder
	for i, name := range pageOrder {
		if name == ui.current {
			fmt.Fprintf(&b, " [%s::b]%d %s[-::-] ", ui.theme.TagAccent, i+1, pageTitles[name])
		} else {
			fmt.Fprintf(&b, " [%s]%d %s[-] ", ui.theme.TagMuted, i+1, pageTitles[name])
		}
	}
	fmt.Fprintf(&b, "  [%s]theme: %s[-]", ui.theme.TagMuted, ui.themeName)
	ui.tabs.SetText(b.String())
}

// isDialogActive is true while a text field or dialog owns the keyboard, so
// global single-key shortcuts must not fire.
func (ui *App) isDialogActive() bool {
	if ui.dialogOpen {
		return true
	}
	switch ui.app.GetFocus().(type) {
	case *tview.Form, *tview.Modal, *tview.InputField, *tview.TextArea, *tview.DropDown, *tview.Button:
		return true
	default:
		return false
	}
}

func (ui *App) globalKeys(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		ui.Stop()
		return nil
	}
	if ev.Key() == tcell.KeyTab && !ui.dialogOpen {
		ui.cycleFocus()
		return nil
	}
	if ui.isDialogActive() || ev.Key() != tcell.KeyRune {
		return ev
	}
	switch ev.Rune() {
	case 'q':
		ui.Stop()
		return nil
	case '1', '2', '3':
		ui.switchPage(pageOrder[ev.Rune()-'1'])
		return nil
	case 't':
		ui.cycleTheme()
		return nil
	case '?':
		ui.showHelp()
		return nil
	}
	return ev
}

// cycleFocus moves between the panes of the chat page.
func (ui *App) cycleFocus() {
	if ui.current != PageChat {
		return
	}
	order := []tview.Primitive{ui.chat.list, ui.chat.input}
	if ui.chat.persona != nil {
		order = append(order, ui.chat.persona)
	}
	focus := ui.app.GetFocus()
	next := order[0]
	for i, p := range order {
		if p == focus {
			next = order[(i+1)%len(order)]
		}
	}
	ui.app.SetFocus(next)
}

func (ui *App) cycleTheme() {
	ui.setTheme(nextTheme(ui.themeName))
}

func (ui *App) setTheme(name string) {
	ui.themeName, ui.theme = themeByName(name)
	ui.theme.applyToStyles()
	ui.layout.SetBackgroundColor(ui.theme.Bg)
	ui.tabs.SetBackgroundColor(ui.theme.Bg)
	ui.statusBar.SetBackgroundColor(ui.theme.Surface)
	ui.review.render()
	ui.comms.render()
	ui.chat.render()
	ui.renderTabs()
	ui.setStatusDirect("Theme: %s", ui.themeName)
}

func (ui *App) hints() string {
	switch ui.current {
	case PageReview:
		return ui.review.hints
	case PageComms:
		return ui.comms.hints
	default:
		return "Enter:Send  n:New  x:Delete  /:Search  Esc:List  Tab:Focus"
	}
}

// setStatus updates the status bar from any goroutine.
func (ui *App) setStatus(format string, args ...interface{}) {
	text := ui.statusText(fmt.Sprintf(format, args...))
	ui.update(func() { ui.statusBar.SetText(text) })
}

// setStatusDirect updates the status bar immediately. Use it only from the
// UI goroutine.
func (ui *App) setStatusDirect(format string, args ...interface{}) {
	ui.statusBar.SetText(ui.statusText(fmt.Sprintf(format, args...)))
}

func (ui *App) statusText(message string) string {
	return fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]|[-] [%s]%s  1-3:Pages t:Theme ?:Help q:Quit[-]",
		ui.theme.TagMuted, ui.now().Format("15:04:05"),
		ui.theme.TagMuted, message,
		ui.theme.TagMuted,
		ui.theme.TagMuted, ui.hints())
}

// showDialog centres p over the main layout until restoreMainLayout.
func (ui *App) showDialog(p tview.Primitive, width, height int) {
	ui.lastFocus = ui.app.GetFocus()
	ui.dialogOpen = true
	centred := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
	root := tview.NewPages().
		AddPage("main", ui.layout, true, true).
		AddPage("dialog", centred, true, true)
	ui.app.SetRoot(root, true)
	ui.app.SetFocus(p)
}

// showModal shows a text modal that any key closes.
func (ui *App) showModal(title, text string) {
	modal := tview.NewModal()
	modal.SetText(text)
	modal.SetTitle(fmt.Sprintf(" %s ", title))
	modal.AddButtons([]string{"Close"})
	modal.SetBackgroundColor(ui.theme.Surface)
	modal.SetTextColor(ui.theme.TextPrimary)
	modal.SetBorderColor(ui.theme.FocusBorder)
	modal.SetButtonBackgroundColor(ui.theme.SelectionBg)
	modal.SetButtonTextColor(ui.theme.SelectionFg)
	modal.SetDoneFunc(func(int, string) { ui.restoreMainLayout() })
	modal.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyEsc, tcell.KeyEnter, tcell.KeyRune:
			ui.restoreMainLayout()
			return nil
		}
		return ev
	})
	ui.lastFocus = ui.app.GetFocus()
	ui.dialogOpen = true
	ui.app.SetRoot(modal, true)
	ui.app.SetFocus(modal)
}

// restoreMainLayout returns from a dialog or modal to the previous focus.
func (ui *App) restoreMainLayout() {
	ui.dialogOpen = false
	ui.app.SetRoot(ui.layout, true)
	target := ui.lastFocus
	if target == nil {
		target = ui.pages
	}
	ui.app.SetFocus(target)
}

func (ui *App) showHelp() {
	ui.showModal("Help", strings.Join([]string{
		"1 Review   2 Communications   3 Assistant",
		"",
		"Boards: / search, f filters, c clear, s sort, v view (list, compact, kanban)",
		"Enter opens a record, Esc goes back",
		"Review: m move status, a assistant summary, n add note",
		"Communications: r reply, d draft reply",
		"",
		"Assistant: Enter send, n new conversation, x delete, Esc back to list",
		"Ctrl-N starts a new conversation from the input",
		"",
		"t cycle theme, q quit",
	}, "\n"))
}

// startRedrawHeartbeat re-renders periodically so ages and overdue filters
// stay current.
func (ui *App) startRedrawHeartbeat() {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ui.ctx.Done():
				return
			case <-ticker.C:
				if !ui.running.Load() {
					continue
				}
				ui.app.QueueUpdateDraw(func() {
					if ui.dialogOpen {
						return
					}
					switch ui.current {
					case PageReview:
						ui.review.render()
					case PageComms:
						ui.comms.render()
					case PageChat:
						ui.chat.render()
					}
				})
			}
		}
	}()
}

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/comms"
)

// replySender is the name outbound replies are signed with.
const replySender = "Casedesk"

type commsPage struct {
	*boardPanel[comms.Thread]
}

func newCommsPage(ui *App, threads []comms.Thread) *commsPage {
	p := &commsPage{
		boardPanel: newBoardPanel(ui, "comms", comms.NewBoard(threads, ui.now), threadSpec()),
	}
	p.actions['r'] = func(id string) { p.showReplyForm(id, "") }
	p.actions['d'] = p.draft
	p.hints = "Enter:Open  /:Search  f:Filter  s:Sort  v:View  r:Reply  d:Draft"
	return p
}

func (p *commsPage) lookup(id string) (comms.Thread, bool) {
	snap := p.board.Snapshot()
	if snap.Selected != nil && snap.SelectedID == id {
		return *snap.Selected, true
	}
	for _, t := range p.board.Ordered() {
		if t.ID == id {
			return t, true
		}
	}
	return comms.Thread{}, false
}

// replyChannel answers on the channel of the newest inbound message.
func replyChannel(t comms.Thread) comms.Channel {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Inbound && t.Messages[i].Channel != "" {
			return t.Messages[i].Channel
		}
	}
	return comms.ChannelEmail
}

// sendReply records body as an outbound message. With a store the reply is
// persisted and the stored thread replaces the board record.
func (p *commsPage) sendReply(id, body string) error {
	t, ok := p.lookup(id)
	if !ok {
		return fmt.Errorf("thread %s is no longer on the board", id)
	}
	msg := comms.Message{
		ID:      uuid.NewString(),
		From:    replySender,
		Body:    body,
		Channel: replyChannel(t),
		SentAt:  p.ui.now(),
	}
	updated := t.WithReply(msg)
	if st := p.ui.deps.Store; st != nil {
		ctx, cancel := context.WithTimeout(p.ui.ctx, 2*time.Second)
		defer cancel()
		saved, err := st.ReplyToThread(ctx, id, msg)
		if err != nil {
			return err
		}
		updated = saved
		if err := st.LogAction(ctx, "thread", id, "reply_sent", "user", map[string]interface{}{
			"message_id": msg.ID, "channel": string(msg.Channel),
		}); err != nil {
			p.ui.logger.Printf("audit reply %s: %v", id, err)
		}
	}
	p.board.Replace(updated)
	return nil
}

func (p *commsPage) showReplyForm(id, draft string) {
	t, ok := p.lookup(id)
	if !ok {
		return
	}
	th := p.ui.theme
	form := tview.NewForm()
	form.SetTitle(fmt.Sprintf(" Reply to %s: %s ", t.ClientName, t.Subject))
	form.SetBorder(true)
	form.SetBackgroundColor(th.Surface)
	form.SetFieldBackgroundColor(th.SelectionBg)
	form.SetFieldTextColor(th.TextPrimary)
	form.SetLabelColor(th.TextPrimary)
	form.SetButtonBackgroundColor(th.SelectionBg)
	form.SetButtonTextColor(th.SelectionFg)
	form.SetBorderColor(th.FocusBorder)

	form.AddTextArea("Message", draft, 0, 8, 0, nil)
	form.AddButton("Send", func() {
		body := strings.TrimSpace(form.GetFormItemByLabel("Message").(*tview.TextArea).GetText())
		if body == "" {
			p.ui.setStatusDirect("[%s]Reply is empty[-]", th.TagWarning)
			return
		}
		if err := p.sendReply(id, body); err != nil {
			p.ui.logger.Printf("reply to %s: %v", id, err)
			p.ui.setStatusDirect("[%s]Reply failed: %v[-]", th.TagError, err)
			return
		}
		p.ui.restoreMainLayout()
		p.render()
		p.ui.setStatusDirect("[%s]Reply sent to %s via %s[-]", th.TagSuccess, t.ClientName, replyChannel(t))
	})
	form.AddButton("Cancel", p.ui.restoreMainLayout)
	form.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEsc {
			p.ui.restoreMainLayout()
			return nil
		}
		return ev
	})
	p.ui.showDialog(form, 72, 16)
}

// draft asks the provider for a reply and opens the reply form with it.
func (p *commsPage) draft(id string) {
	prov := p.ui.deps.Provider
	if prov == nil {
		p.ui.setStatusDirect("[%s]No assistant provider configured[-]", p.ui.theme.TagWarning)
		return
	}
	t, ok := p.lookup(id)
	if !ok {
		return
	}
	p.ui.setStatusDirect("[%s]Drafting a reply to %s...[-]", p.ui.theme.TagAccent, t.ClientName)
	p.ui.async(func(ctx context.Context) func() {
		ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		text, err := prov.DraftReply(ctx, t)
		if err == nil {
			if st := p.ui.deps.Store; st != nil {
				if aerr := st.LogAssistantQuery(ctx, "thread", id, prov.Name(), "draft_reply", prov.EstimateTokens(text), 0); aerr != nil {
					p.ui.logger.Printf("audit draft %s: %v", id, aerr)
				}
			}
		}
		return func() {
			if err != nil {
				p.ui.logger.Printf("draft reply for %s: %v", id, err)
				p.ui.setStatusDirect("[%s]Draft failed: %v[-]", p.ui.theme.TagError, err)
				return
			}
			p.showReplyForm(id, strings.TrimSpace(text))
		}
	})
}

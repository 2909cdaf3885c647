package turn

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/llm"
)

// Request is what a responder sees when a reply is due.
type Request struct {
	ConversationID string
	// Index is the position of this reply in the conversation's cycle.
	Index   int
	History []chat.Message
}

// Responder produces the assistant's reply text.
type Responder interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// DefaultReplies is the canned reply cycle of the fixture responder.
var DefaultReplies = []string{
	"I can help with that. Could you share the key dates and the parties involved so I can narrow down the relevant deadlines?",
	"Based on what you've described, the first step is to confirm the governing law clause and any notice requirements before responding.",
	"I'd recommend gathering the signed engagement letter, the latest correspondence and any court filings into the case folder before we proceed.",
	"That issue usually turns on the limitation period. Let me know the date of the triggering event and I'll flag how much time remains.",
	"Here's a short checklist: verify client identity, run a conflict check, confirm the fee arrangement, and calendar the first review.",
}

// FixtureResponder cycles through a fixed list of replies.
type FixtureResponder struct {
	Replies []string
}

func (f FixtureResponder) Reply(_ context.Context, req Request) (string, error) {
	replies := f.Replies
	if len(replies) == 0 {
		replies = DefaultReplies
	}
	i := req.Index % len(replies)
	if i < 0 {
		i += len(replies)
	}
	return replies[i], nil
}

// ProviderResponder asks a chat provider for the reply.
type ProviderResponder struct {
	Provider llm.ChatProvider
	Persona  string
}

func (p ProviderResponder) Reply(ctx context.Context, req Request) (string, error) {
	if p.Provider == nil {
		return "", fmt.Errorf("no chat provider configured")
	}
	msgs := make([]llm.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		msgs = append(msgs, llm.ChatMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	resp, err := p.Provider.Chat(ctx, llm.ChatRequest{Messages: msgs, Persona: p.Persona})
	if err != nil {
		return "", fmt.Errorf("failed to get reply from %s: %w", p.Provider.Name(), err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s returned an error: %s", p.Provider.Name(), resp.Error)
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s returned an empty reply", p.Provider.Name())
	}
	return text, nil
}

// PersonaResponder is a ProviderResponder whose persona can be switched
// while the engine is running. Replies already due use the persona current
// at the time they fire.
type PersonaResponder struct {
	Provider llm.ChatProvider

	mu      sync.RWMutex
	persona string
}

func NewPersonaResponder(p llm.ChatProvider, persona string) *PersonaResponder {
	if persona == "" {
		persona = llm.PersonaParalegal
	}
	return &PersonaResponder{Provider: p, persona: persona}
}

func (r *PersonaResponder) Persona() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.persona
}

func (r *PersonaResponder) SetPersona(persona string) {
	r.mu.Lock()
	r.persona = persona
	r.mu.Unlock()
}

func (r *PersonaResponder) Reply(ctx context.Context, req Request) (string, error) {
	return ProviderResponder{Provider: r.Provider, Persona: r.Persona()}.Reply(ctx, req)
}

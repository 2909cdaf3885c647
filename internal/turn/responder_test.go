package turn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/llm"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

type echoProvider struct {
	last  llm.ChatRequest
	reply string
	err   error
}

func (p *echoProvider) Name() string { return "echo" }
func (p *echoProvider) SummarizeCase(context.Context, review.Case) (string, error) {
	return "", nil
}
func (p *echoProvider) DraftReply(context.Context, comms.Thread) (string, error) { return "", nil }
func (p *echoProvider) EstimateTokens(text string) int                          { return len(text) / 4 }

func (p *echoProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Message: llm.ChatMessage{Role: "assistant", Content: p.reply}}, nil
}

func TestFixtureResponderCycles(t *testing.T) {
	f := FixtureResponder{Replies: []string{"a", "b"}}
	for i, want := range []string{"a", "b", "a"} {
		got, err := f.Reply(context.Background(), Request{Index: i})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, _ := FixtureResponder{}.Reply(context.Background(), Request{})
	assert.Equal(t, DefaultReplies[0], got)
}

func TestProviderResponderForwardsHistory(t *testing.T) {
	p := &echoProvider{reply: "  File the motion by Friday.  "}
	r := ProviderResponder{Provider: p, Persona: llm.PersonaLitigation}

	got, err := r.Reply(context.Background(), Request{History: []chat.Message{
		chat.UserMessage("When is the deadline?"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "File the motion by Friday.", got)
	assert.Equal(t, llm.PersonaLitigation, p.last.Persona)
	require.Len(t, p.last.Messages, 1)
	assert.Equal(t, "user", p.last.Messages[0].Role)
}

func TestProviderResponderErrors(t *testing.T) {
	_, err := ProviderResponder{}.Reply(context.Background(), Request{})
	assert.Error(t, err)

	_, err = ProviderResponder{Provider: &echoProvider{err: errors.New("timeout")}}.Reply(context.Background(), Request{})
	assert.ErrorContains(t, err, "timeout")

	_, err = ProviderResponder{Provider: &echoProvider{reply: "   "}}.Reply(context.Background(), Request{})
	assert.ErrorContains(t, err, "empty reply")
}

func TestPersonaResponderSwitchesPersona(t *testing.T) {
	p := &echoProvider{reply: "ok"}
	r := NewPersonaResponder(p, "")
	assert.Equal(t, llm.PersonaParalegal, r.Persona())

	r.SetPersona(llm.PersonaContracts)
	_, err := r.Reply(context.Background(), Request{History: []chat.Message{chat.UserMessage("review clause 4")}})
	require.NoError(t, err)
	assert.Equal(t, llm.PersonaContracts, p.last.Persona)
}

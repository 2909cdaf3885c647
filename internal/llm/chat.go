package llm

import (
	"context"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

// ChatMessage represents a single message in a chat conversation
type ChatMessage struct {
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Persona   string    `json:"persona,omitempty"`
	TokensEst int       `json:"tokens_est,omitempty"` // Estimated tokens for this message
}

// ChatRequest represents a request to the chat interface
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Persona   string        `json:"persona"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// ChatResponse represents a response from the chat interface
type ChatResponse struct {
	Message    ChatMessage `json:"message"`
	TokensUsed int         `json:"tokens_used"`
	Cost       float64     `json:"cost,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// EstimateTokens provides a rough token estimation for text
func EstimateTokens(text string) int {
	// Rough estimation: ~4 characters per token on average
	return len(text) / 4
}

// LLMProvider defines the document-level helpers every provider offers.
type LLMProvider interface {
	Name() string
	// SummarizeCase writes a short status briefing for a case.
	SummarizeCase(ctx context.Context, c review.Case) (string, error)
	// DraftReply proposes a response to the latest inbound message of a
	// client thread.
	DraftReply(ctx context.Context, t comms.Thread) (string, error)
}

// ChatProvider extends LLMProvider with chat capabilities
type ChatProvider interface {
	LLMProvider
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	EstimateTokens(text string) int
}

// lastUserMessage returns the newest user message content.
func lastUserMessage(msgs []ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func estimateCost(tokens int) float64 {
	return float64(tokens) * 0.002 / 1000.0
}

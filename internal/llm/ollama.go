package llm

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

var (
	thinkBlock    = regexp.MustCompile(`(?is)<\s*think\s*>.*?<\s*/\s*think\s*>`)
	thinkingBlock = regexp.MustCompile(`(?is)<\s*thinking\s*>.*?<\s*/\s*thinking\s*>`)
)

// Ollama implements a real LLM provider backed by a local Ollama server.
// It satisfies ChatProvider and Discovery.
type Ollama struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewOllama constructs a new Ollama provider.
// endpoint example: http://localhost:11434
// model example: qwen3:0.6b (may be empty when only using discovery)
func NewOllama(endpoint, model string, logger *log.Logger) (*Ollama, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("ollama: endpoint is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Ollama{
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []roleMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Think    bool          `json:"think"`
	Options  struct {
		NumPredict int `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaChatResponse struct {
	Message         roleMessage `json:"message"`
	EvalCount       int         `json:"eval_count"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Chat sends a non-streaming request to /api/chat.
func (o *Ollama) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if o.model == "" {
		return &ChatResponse{Error: "ollama: model not configured"}, nil
	}

	payload := ollamaChatRequest{Model: o.model, Messages: toRoleMessages(req)}
	payload.Options.NumPredict = req.MaxTokens

	var cr ollamaChatResponse
	if err := doJSON(ctx, o.httpClient, http.MethodPost, o.endpoint+"/api/chat", nil, payload, &cr); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	content := stripThinkingSections(cr.Message.Content)
	tokens := cr.EvalCount + cr.PromptEvalCount
	if tokens <= 0 {
		// Counted on displayed content; hidden thinking is excluded.
		tokens = promptTokens(req, content)
	}
	o.logger.Printf("ollama chat model=%s tokens=%d", o.model, tokens)

	return &ChatResponse{
		Message: ChatMessage{
			Role:      "assistant",
			Content:   content,
			Timestamp: time.Now(),
			Persona:   req.Persona,
			TokensEst: EstimateTokens(content),
		},
		TokensUsed: tokens,
		Cost:       estimateCost(tokens),
	}, nil
}

func (o *Ollama) SummarizeCase(ctx context.Context, c review.Case) (string, error) {
	return completePrompt(ctx, o, "ollama", caseSummaryPrompt(c), PersonaParalegal, 700)
}

func (o *Ollama) DraftReply(ctx context.Context, t comms.Thread) (string, error) {
	return completePrompt(ctx, o, "ollama", draftReplyPrompt(t), PersonaParalegal, 400)
}

// ListModels queries /api/tags and returns available model names.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := doJSON(ctx, o.httpClient, http.MethodGet, o.endpoint+"/api/tags", nil, nil, &tags); err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}
	out := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if strings.TrimSpace(m.Name) != "" {
			out = append(out, m.Name)
		}
	}
	return out, nil
}

// HealthCheck performs a lightweight check against /api/tags.
func (o *Ollama) HealthCheck(ctx context.Context) error {
	if err := doJSON(ctx, o.httpClient, http.MethodGet, o.endpoint+"/api/tags", nil, nil, nil); err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	return nil
}

// stripThinkingSections removes <think> and <thinking> blocks from model
// output, then trims surrounding whitespace.
func stripThinkingSections(s string) string {
	if s == "" {
		return s
	}
	s = thinkBlock.ReplaceAllString(s, "")
	s = thinkingBlock.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

package llm

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

const defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"

// OpenRouter implements an LLM provider backed by OpenRouter (OpenAI-compatible API).
// Docs: https://openrouter.ai/docs
type OpenRouter struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewOpenRouter constructs a new OpenRouter provider.
// apiKey is required; when empty this constructor will try OPENROUTER_API_KEY env var.
func NewOpenRouter(endpoint, model, apiKey string, logger *log.Logger) (*OpenRouter, error) {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultOpenRouterEndpoint
	}
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if key == "" {
		return nil, fmt.Errorf("openrouter: apiKey required (set assistant.api_key or OPENROUTER_API_KEY)")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &OpenRouter{
		endpoint:   strings.TrimRight(ep, "/"),
		model:      strings.TrimSpace(model),
		apiKey:     key,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}, nil
}

func (o *OpenRouter) Name() string { return "openrouter" }

func (o *OpenRouter) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

func (o *OpenRouter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"X-Title":       "casedesk",
	}
}

type openRouterRequest struct {
	Model     string        `json:"model"`
	Messages  []roleMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		FinishReason string      `json:"finish_reason"`
		Message      roleMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat implements ChatProvider using /chat/completions.
func (o *OpenRouter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if o.model == "" {
		return &ChatResponse{Error: "openrouter: model not configured"}, nil
	}

	payload := openRouterRequest{Model: o.model, Messages: toRoleMessages(req), MaxTokens: req.MaxTokens}
	var parsed openRouterResponse
	if err := doJSON(ctx, o.httpClient, http.MethodPost, o.endpoint+"/chat/completions", o.headers(), payload, &parsed); err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	if parsed.Error != nil {
		return &ChatResponse{Error: parsed.Error.Message}, nil
	}
	if len(parsed.Choices) == 0 {
		return &ChatResponse{Error: "openrouter: empty choices"}, nil
	}
	content := parsed.Choices[0].Message.Content

	// Prefer usage tokens if provided
	tokens := parsed.Usage.TotalTokens
	if tokens <= 0 {
		tokens = promptTokens(req, content)
	}
	o.logger.Printf("openrouter chat model=%s tokens=%d", o.model, tokens)

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

func (o *OpenRouter) SummarizeCase(ctx context.Context, c review.Case) (string, error) {
	return completePrompt(ctx, o, "openrouter", caseSummaryPrompt(c), PersonaParalegal, 700)
}

func (o *OpenRouter) DraftReply(ctx context.Context, t comms.Thread) (string, error) {
	return completePrompt(ctx, o, "openrouter", draftReplyPrompt(t), PersonaParalegal, 400)
}

// ListModels queries /models and returns sorted model ids.
func (o *OpenRouter) ListModels(ctx context.Context) ([]string, error) {
	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := doJSON(ctx, o.httpClient, http.MethodGet, o.endpoint+"/models", o.headers(), nil, &parsed); err != nil {
		return nil, fmt.Errorf("openrouter list models: %w", err)
	}
	out := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if strings.TrimSpace(m.ID) != "" {
			out = append(out, m.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// HealthCheck performs a lightweight GET /models using the API key.
func (o *OpenRouter) HealthCheck(ctx context.Context) error {
	if err := doJSON(ctx, o.httpClient, http.MethodGet, o.endpoint+"/models", o.headers(), nil, nil); err != nil {
		return fmt.Errorf("openrouter health: %w", err)
	}
	return nil
}

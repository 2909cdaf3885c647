package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Discovery is an optional capability a provider can implement to expose
// model listing and health checks.
type Discovery interface {
	ListModels(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context) error
}

// Provider names accepted by Build.
const (
	ProviderFixture    = "fixture"
	ProviderLocalStub  = "local_stub"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// Build constructs a ChatProvider from a ProviderConfig. The fixture and
// local stub names both yield the offline LocalStub.
func Build(ctx context.Context, cfg ProviderConfig, logger *log.Logger) (ChatProvider, error) {
	switch Normalize(cfg.Provider) {
	case ProviderOllama:
		p, err := NewOllama(cfg.Endpoint, cfg.Model, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderOpenRouter:
		p, err := NewOpenRouter(cfg.Endpoint, cfg.Model, cfg.APIKey, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderLocalStub, ProviderFixture:
		return NewLocalStub(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// TryHealthCheck attempts a provider health check when supported.
func TryHealthCheck(ctx context.Context, p LLMProvider) error {
	if d, ok := p.(Discovery); ok {
		return d.HealthCheck(ctx)
	}
	return nil
}

// TryListModels attempts to list models for a provider when supported.
func TryListModels(ctx context.Context, p LLMProvider) ([]string, error) {
	if d, ok := p.(Discovery); ok {
		return d.ListModels(ctx)
	}
	return nil, fmt.Errorf("model listing not supported by %s", p.Name())
}

// Normalize maps provider spellings onto the canonical names. Empty is the
// fixture provider.
func Normalize(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixture", "fixtures":
		return ProviderFixture
	case "ollama":
		return ProviderOllama
	case "openrouter", "open_router":
		return ProviderOpenRouter
	case "local_stub", "localstub", "local", "stub":
		return ProviderLocalStub
	default:
		return s
	}
}

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ProviderConfig defines runtime-selectable LLM provider settings.
type ProviderConfig struct {
	Provider string `json:"provider"` // "fixture" | "local_stub" | "ollama" | "openrouter"
	Endpoint string `json:"endpoint"` // e.g., "http://localhost:11434" (for Ollama)
	Model    string `json:"model"`    // e.g., "qwen3:0.6b"
	APIKey   string `json:"api_key"`  // optional for cloud providers
	Persona  string `json:"persona"`
}

// Settings is the on-disk assistant settings file.
type Settings struct {
	Active ProviderConfig `json:"active"`
}

// DefaultSettings uses the offline fixture provider.
func DefaultSettings() Settings {
	return Settings{Active: ProviderConfig{Provider: ProviderFixture, Persona: PersonaParalegal}}
}

// WithDefaults fills provider-specific blanks.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	c.Provider = Normalize(c.Provider)
	if c.Endpoint == "" {
		switch c.Provider {
		case ProviderOllama:
			c.Endpoint = "http://localhost:11434"
		case ProviderOpenRouter:
			c.Endpoint = defaultOpenRouterEndpoint
		}
	}
	if c.Model == "" && c.Provider == ProviderOllama {
		c.Model = "qwen3:0.6b"
	}
	if c.Persona == "" {
		c.Persona = PersonaParalegal
	}
	return c
}

// Overlay returns c with every non-empty field of o applied on top.
func (c ProviderConfig) Overlay(o ProviderConfig) ProviderConfig {
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if o.Endpoint != "" {
		c.Endpoint = o.Endpoint
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.Persona != "" {
		c.Persona = o.Persona
	}
	return c
}

// LoadSettings loads settings from the given path. If the file does not exist,
// DefaultSettings() are returned. Any read/parse error (other than not-exist)
// is returned.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return Settings{}, errors.New("empty settings path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	s.Active = s.Active.WithDefaults()
	return s, nil
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/llm"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/turn"
)

// restoreLimit caps how many archived conversations are loaded at startup.
const restoreLimit = 50

// getExecutableDir returns the directory of the running executable.
// Falls back to current directory on error.
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// getWorkingDir returns the current working directory.
// Falls back to executable directory if os.Getwd fails.
func getWorkingDir() string {
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return getExecutableDir()
}

// resolvePathRelativeToBase resolves a possibly relative path against a base directory.
// Absolute paths and ":memory:" are returned unchanged.
func resolvePathRelativeToBase(base, p string) string {
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	p = strings.TrimPrefix(p, "./")
	return filepath.Join(base, p)
}

func openStore(cfg Config, logger *log.Logger) (*store.Store, error) {
	path := resolvePathRelativeToBase(getWorkingDir(), cfg.Database.Path)
	logger.Printf("Using database at %s", path)
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	st.SetLogger(logger)
	return st, nil
}

// assistant bundles the chat provider with the responder the turn engine
// uses. Persona is nil for the fixture responder.
type assistant struct {
	Provider  llm.ChatProvider
	Responder turn.Responder
	Persona   *turn.PersonaResponder
	Config    llm.ProviderConfig
}

// buildAssistant builds the configured provider. A provider that cannot be
// built falls back to the local stub so the desk stays usable offline.
func buildAssistant(ctx context.Context, cfg AssistantConfig, logger *log.Logger) (assistant, error) {
	pc, err := cfg.ProviderConfig()
	if err != nil {
		return assistant{}, err
	}
	p, err := llm.Build(ctx, pc, logger)
	if err != nil || p == nil {
		logger.Printf("LLM provider build failed: %v; falling back to local stub", err)
		p = llm.NewLocalStub()
		pc.Provider = llm.ProviderLocalStub
	}
	a := assistant{Provider: p, Config: pc}
	if pc.Provider == llm.ProviderFixture {
		a.Responder = turn.FixtureResponder{}
		return a, nil
	}
	if herr := llm.TryHealthCheck(ctx, p); herr != nil {
		logger.Printf("Assistant provider %s health check failed: %v", p.Name(), herr)
	}
	a.Persona = turn.NewPersonaResponder(p, pc.Persona)
	a.Responder = a.Persona
	return a, nil
}

// newChatStore restores archived conversations and attaches the archive and
// bus subscribers. The returned func detaches them.
func newChatStore(ctx context.Context, st *store.Store, b bus.Bus, logger *log.Logger) (*chat.Store, func()) {
	cs := chat.NewStore(log.New(logger.Writer(), "[chat] ", log.LstdFlags))
	if st != nil {
		convs, err := st.ListConversations(ctx, restoreLimit)
		if err != nil {
			logger.Printf("Failed to restore conversations: %v", err)
		} else if n := cs.Restore(convs...); n > 0 {
			logger.Printf("Restored %d conversations", n)
		}
	}

	var cancels []func()
	if st != nil {
		cancels = append(cancels, cs.Subscribe(st.Archive))
	}
	if b != nil {
		cancels = append(cancels, cs.Subscribe(bus.TurnPublisher(b, logger)))
	}
	return cs, func() {
		for _, c := range cancels {
			c()
		}
	}
}

func engineConfig(cfg AssistantConfig) turn.Config {
	c := turn.DefaultConfig
	if cfg.MinDelay > 0 {
		c.MinDelay = cfg.MinDelay
	}
	if cfg.MaxDelay > 0 {
		c.MaxDelay = cfg.MaxDelay
	}
	return c
}

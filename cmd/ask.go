package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/turn"
)

var (
	askConversation string
	askPersona      string
	askTimeout      time.Duration
	askNoArchive    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask the assistant a question without the TUI",
	Long: `Submit one message to the assistant and print its reply. The
conversation is archived in the database like one started from the TUI, so
it can be continued later with --conversation.

Examples:
  casedesk ask "What should I collect for a wrongful termination intake?"
  casedesk ask --conversation 3f2a... "And the limitation period?"
  casedesk ask --persona "Contracts Counsel" "Is a 30 day notice clause typical?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askConversation, "conversation", "", "Continue an archived conversation by id")
	askCmd.Flags().StringVar(&askPersona, "persona", "", "Assistant persona (overrides assistant.persona)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "How long to wait for the reply")
	askCmd.Flags().BoolVar(&askNoArchive, "no-archive", false, "Do not write the conversation to the database")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	if askPersona != "" {
		config.Assistant.Persona = askPersona
	}
	logger := newLogger(cmd.ErrOrStderr(), "[ask] ", config.Log.Level)
	if !strings.EqualFold(config.Log.Level, "debug") {
		logger.SetOutput(io.Discard)
	}

	asst, err := buildAssistant(ctx, config.Assistant, logger)
	if err != nil {
		return fmt.Errorf("failed to configure assistant: %w", err)
	}

	var cs *chat.Store
	if askNoArchive {
		cs = chat.NewStore(logger)
	} else {
		st, err := openStore(config, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		eventBus := bus.NewBus(config.Redis.URL, logger)
		defer eventBus.Close()
		var detach func()
		cs, detach = newChatStore(ctx, st, eventBus, logger)
		defer detach()
	}

	engine := turn.NewEngine(cs, asst.Responder, nil, engineConfig(config.Assistant), logger)
	defer engine.Close()

	reply, id, err := askOnce(ctx, cs, engine, askConversation, strings.Join(args, " "), askTimeout)
	if err != nil && reply.Content == "" {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Content)
	fmt.Fprintf(cmd.ErrOrStderr(), "\nconversation: %s\n", id)
	if err != nil {
		logger.Printf("assistant reply degraded: %v", err)
	}
	return nil
}

// askOnce submits text, optionally into an existing conversation, and waits
// for the reply bound to it.
func askOnce(ctx context.Context, cs *chat.Store, engine *turn.Engine, conversationID, text string, timeout time.Duration) (chat.Message, string, error) {
	if conversationID != "" && !cs.SwitchActive(conversationID) {
		return chat.Message{}, "", fmt.Errorf("conversation %s not found", conversationID)
	}
	ticket, err := engine.Submit(ctx, text)
	if err != nil {
		return chat.Message{}, "", err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := ticket.Wait(wctx)
	return reply, ticket.ConversationID, err
}

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

const maxThreadMessagesInPrompt = 20

type chatter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// caseSummaryPrompt builds the single-shot prompt used by SummarizeCase.
func caseSummaryPrompt(c review.Case) string {
	var sb strings.Builder
	sb.WriteString("Produce a concise case briefing with sections: Status, Outstanding Items, Next Steps.\n\n")
	sb.WriteString(fmt.Sprintf("Client: %s | Case: %s | Practice area: %s\n", c.ClientName, c.CaseNumber, orDash(c.PracticeArea)))
	sb.WriteString(fmt.Sprintf("Status: %s | Priority: %s | Progress: %d%% | Documents: %d | Assigned: %s\n",
		c.Status, c.Priority, c.Progress, c.DocumentCount, orDash(c.AssignedTo)))
	if !c.LastActivityAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Last activity: %s\n", c.LastActivityAt.Format("2006-01-02 15:04")))
	}
	if d := strings.TrimSpace(c.Description); d != "" {
		sb.WriteString("\nDescription:\n")
		sb.WriteString(truncateString(d, 1200))
		sb.WriteString("\n")
	}
	sb.WriteString("\nWrite the briefing now.\n")
	return sb.String()
}

// draftReplyPrompt builds the prompt used by DraftReply, newest messages last.
func draftReplyPrompt(t comms.Thread) string {
	var sb strings.Builder
	sb.WriteString("Draft a short, professional reply from the firm to the client's latest message. Do not promise outcomes.\n\n")
	sb.WriteString(fmt.Sprintf("Client: %s | Case: %s | Subject: %s\n\nThread:\n", t.ClientName, t.CaseNumber, t.Subject))
	msgs := t.Messages
	if len(msgs) > maxThreadMessagesInPrompt {
		msgs = msgs[len(msgs)-maxThreadMessagesInPrompt:]
	}
	for _, m := range msgs {
		who := "Firm"
		if m.Inbound {
			who = "Client"
		}
		sb.WriteString(fmt.Sprintf("- [%s via %s] %s\n", who, m.Channel, truncateString(m.Body, 400)))
	}
	sb.WriteString("\nReply:\n")
	return sb.String()
}

// completePrompt sends prompt as a single user message and returns the
// assistant text.
func completePrompt(ctx context.Context, c chatter, name, prompt, persona string, maxTokens int) (string, error) {
	resp, err := c.Chat(ctx, ChatRequest{
		Messages:  []ChatMessage{{Role: "user", Content: prompt, Timestamp: time.Now()}},
		Persona:   persona,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%s: empty response", name)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s: %s", name, resp.Error)
	}
	return resp.Message.Content, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncateString(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

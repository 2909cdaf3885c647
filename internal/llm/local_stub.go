package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

// LocalStub provides a heuristic, offline implementation of ChatProvider.
type LocalStub struct{}

// NewLocalStub creates a new local stub LLM provider
func NewLocalStub() *LocalStub {
	return &LocalStub{}
}

func (ls *LocalStub) Name() string { return "local_stub" }

// EstimateTokens implements token estimation
func (ls *LocalStub) EstimateTokens(text string) int {
	return EstimateTokens(text)
}

// Chat answers from keyword heuristics per persona.
func (ls *LocalStub) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return &ChatResponse{Error: "No messages provided"}, nil
	}
	userMessage := lastUserMessage(req.Messages)
	if userMessage == "" {
		return &ChatResponse{Error: "No user message found"}, nil
	}

	response := ls.generateChatResponse(strings.ToLower(userMessage), req.Persona)
	tokensUsed := EstimateTokens(userMessage + response)

	return &ChatResponse{
		Message: ChatMessage{
			Role:      "assistant",
			Content:   response,
			Timestamp: time.Now(),
			Persona:   req.Persona,
			TokensEst: EstimateTokens(response),
		},
		TokensUsed: tokensUsed,
		Cost:       estimateCost(tokensUsed),
	}, nil
}

func (ls *LocalStub) generateChatResponse(msg, persona string) string {
	switch persona {
	case PersonaLitigation:
		return ls.litigationResponse(msg)
	case PersonaContracts:
		return ls.contractsResponse(msg)
	case PersonaParalegal:
		return ls.paralegalResponse(msg)
	default:
		return ls.generalResponse(msg)
	}
}

func (ls *LocalStub) litigationResponse(msg string) string {
	switch {
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "limitation"):
		return "Confirm the triggering date first, then calendar the limitation period with a two-week internal buffer. If the period is close, prepare a protective filing."
	case strings.Contains(msg, "discovery") || strings.Contains(msg, "evidence"):
		return "For discovery: 1) Send a litigation hold to the client, 2) List custodians and data sources, 3) Serve initial disclosures, 4) Track production deadlines in the case file."
	case strings.Contains(msg, "hearing") || strings.Contains(msg, "motion"):
		return "Before the hearing, check the filing deadline for any response brief, confirm witness availability, and prepare a one-page outline of the relief sought."
	}
	return "As a litigation associate I can help with deadlines, discovery plans, motions and hearing preparation. What stage is the matter at?"
}

func (ls *LocalStub) contractsResponse(msg string) string {
	switch {
	case strings.Contains(msg, "indemn"):
		return "Check whether the indemnity is mutual, whether it is capped, and whether it covers third-party claims only. Suggest carving out gross negligence from any cap."
	case strings.Contains(msg, "terminat"):
		return "Review the termination triggers, the notice period and any cure period. Make sure post-termination obligations such as confidentiality survive."
	case strings.Contains(msg, "contract") || strings.Contains(msg, "agreement") || strings.Contains(msg, "lease"):
		return "Start with the parties, term, payment, termination, indemnity, limitation of liability and governing law clauses. Flag anything one-sided for negotiation."
	}
	return "As contracts counsel I can review clauses, suggest redlines and summarise obligations. Paste the clause you want to discuss."
}

func (ls *LocalStub) paralegalResponse(msg string) string {
	switch {
	case strings.Contains(msg, "document") || strings.Contains(msg, "missing"):
		return "Send the client a document checklist with a due date, log each item as it arrives, and move the case to Needs Review once the set is complete."
	case strings.Contains(msg, "client") || strings.Contains(msg, "follow"):
		return "Reply to unread client messages first, then action-required threads. Keep replies short and confirm the next date the client should expect to hear from us."
	}
	return "I can help organise the case file, chase documents and keep the calendar current. What needs doing first?"
}

func (ls *LocalStub) generalResponse(msg string) string {
	switch {
	case strings.Contains(msg, "contract") || strings.Contains(msg, "agreement"):
		return ls.contractsResponse(msg)
	case strings.Contains(msg, "hearing") || strings.Contains(msg, "deadline") || strings.Contains(msg, "court"):
		return ls.litigationResponse(msg)
	case strings.Contains(msg, "help") || strings.Contains(msg, "what"):
		return "I can summarise cases, draft client replies, review contract clauses and track deadlines. Ask about a specific matter to get started."
	}
	return "Happy to help with that matter. Share the client name or case number and what outcome you're after."
}

// SummarizeCase builds a template briefing without calling a model.
func (ls *LocalStub) SummarizeCase(ctx context.Context, c review.Case) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%s)\n", c.ClientName, c.CaseNumber))
	sb.WriteString(fmt.Sprintf("Status: %s | Priority: %s | Progress: %d%%\n\n", c.Status, c.Priority, c.Progress))

	sb.WriteString("NEXT STEPS:\n")
	for i, step := range ls.nextSteps(c) {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	return sb.String(), nil
}

func (ls *LocalStub) nextSteps(c review.Case) []string {
	var steps []string
	switch c.Status {
	case review.StatusNeedsReview:
		steps = append(steps, fmt.Sprintf("Review the %d document(s) on file", c.DocumentCount))
	case review.StatusAwaitingDocuments:
		steps = append(steps, "Chase the client for the outstanding documents")
	case review.StatusComplete:
		steps = append(steps, "Send the closing letter and archive the file")
	}
	if c.AssignedTo == "" {
		steps = append(steps, "Assign a responsible attorney")
	}
	if c.Priority >= review.PriorityHigh && c.Status != review.StatusComplete {
		steps = append(steps, "Raise at the next team meeting")
	}
	if len(steps) == 0 {
		steps = append(steps, "No action needed")
	}
	return steps
}

// DraftReply acknowledges the newest inbound message.
func (ls *LocalStub) DraftReply(ctx context.Context, t comms.Thread) (string, error) {
	name := strings.Fields(t.ClientName)
	greeting := "Hello,"
	if len(name) > 0 {
		greeting = fmt.Sprintf("Hi %s,", name[0])
	}
	topic := t.Subject
	if topic == "" {
		topic = "your matter"
	}
	return fmt.Sprintf("%s\n\nThank you for your message about %s. We have received it and will get back to you with next steps within one business day.\n\nKind regards", greeting, strings.ToLower(topic)), nil
}

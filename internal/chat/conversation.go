package chat

import (
	"slices"
	"time"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserMessage builds an unsent user message; the store fills in id and time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an unsent assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Conversation is an append-only exchange between the user and the assistant.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Conversation) clone() Conversation {
	c.Messages = slices.Clone(c.Messages)
	return c
}

// Last returns the newest message, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Mode is where the chat screen's pointer currently rests.
type Mode int

const (
	// ModeBrowsing shows the conversation list.
	ModeBrowsing Mode = iota
	// ModeBlank is a fresh input with no conversation yet; the next
	// submission creates one.
	ModeBlank
	// ModeConversation shows the active conversation.
	ModeConversation
)

func (m Mode) String() string {
	switch m {
	case ModeBlank:
		return "blank"
	case ModeConversation:
		return "conversation"
	default:
		return "browsing"
	}
}

// ChangeKind says what a store mutation did.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeAppended ChangeKind = "appended"
	ChangeActive   ChangeKind = "active"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is delivered to subscribers after every mutation. Conversation is a
// copy and may be zero for pointer moves away from a conversation.
type Change struct {
	Kind         ChangeKind
	Conversation Conversation
	// Message is the appended (or seeding) message for created and appended
	// changes.
	Message Message
	// Position is Message's index in the conversation.
	Position int
	ActiveID string
	Mode     Mode
}

package bus

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/chat"
)

// TurnPublisher returns a chat.Store subscriber that publishes every new
// message on b. Publish failures are logged.
func TurnPublisher(b Bus, logger *log.Logger) func(chat.Change) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return func(ch chat.Change) {
		if ch.Kind != chat.ChangeCreated && ch.Kind != chat.ChangeAppended {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.PublishTurn(ctx, NewTurnMessage(ch.Conversation, ch.Message)); err != nil {
			logger.Printf("publish turn %s: %v", ch.Message.ID, err)
		}
	}
}

// NewTurnMessage builds the stream payload for msg appended to conv.
func NewTurnMessage(conv chat.Conversation, msg chat.Message) TurnMessage {
	return TurnMessage{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		Summary:        conv.Summary,
		Timestamp:      msg.Timestamp.Unix(),
	}
}

package bus

import (
	"context"
	"io"
	"log"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *log.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &NullBus{
		logger: logger,
	}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishTurn logs the turn but doesn't actually publish it
func (nb *NullBus) PublishTurn(ctx context.Context, msg TurnMessage) error {
	nb.logger.Printf("Would publish %s turn %s for conversation %s (Redis disabled)",
		msg.Role, msg.MessageID, msg.ConversationID)
	return nil
}

// PublishFeedback logs the feedback but doesn't actually publish it
func (nb *NullBus) PublishFeedback(ctx context.Context, msg FeedbackMessage) error {
	nb.logger.Printf("Would publish %s feedback %s (Redis disabled)", msg.Sentiment, msg.FeedbackID)
	return nil
}

// ReadTurnsStream blocks until ctx is cancelled.
func (nb *NullBus) ReadTurnsStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, turn TurnMessage) error) error {
	nb.logger.Printf("Would read turns stream %s:%s (Redis disabled)", group, consumer)
	<-ctx.Done()
	return ctx.Err()
}

// Purge is a no-op for null bus
func (nb *NullBus) Purge(ctx context.Context) error {
	return nil
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}

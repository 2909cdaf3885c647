package bus

import (
	"context"
	"io"
	"log"
)

// Stream names used on Redis.
const (
	TurnsStream    = "casedesk:turns"
	FeedbackStream = "casedesk:feedback"
)

// Bus defines the interface for event bus implementations
type Bus interface {
	// PublishTurn publishes one appended chat message to the turns stream
	PublishTurn(ctx context.Context, msg TurnMessage) error

	// PublishFeedback publishes a feedback submission to the feedback stream
	PublishFeedback(ctx context.Context, msg FeedbackMessage) error

	// ReadTurnsStream reads from the turns stream until ctx is cancelled
	ReadTurnsStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, turn TurnMessage) error) error

	// Purge deletes every stream the bus writes to
	Purge(ctx context.Context) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}

	logger.Printf("Redis unavailable (%v), falling back to null bus", err)
	return NewNullBus(logger)
}

package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBus provides Redis Streams-based messaging for conversation turns and
// feedback.
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
	maxLen int64
}

// StreamMessage represents a message in a Redis Stream
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// TurnMessage is one chat message appended to a conversation.
type TurnMessage struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Summary        string `json:"summary"`
	Timestamp      int64  `json:"timestamp"`
}

// FeedbackMessage is a stored feedback submission.
type FeedbackMessage struct {
	FeedbackID string `json:"feedback_id"`
	Sentiment  string `json:"sentiment"`
	Comment    string `json:"comment"`
	Page       string `json:"page"`
	Timestamp  int64  `json:"timestamp"`
}

// StreamHandler is a function that processes stream messages
type StreamHandler func(ctx context.Context, message StreamMessage) error

// defaultMaxLen is the approximate length cap applied on every XADD.
const defaultMaxLen = 10000

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &RedisBus{
		client: client,
		logger: logger,
		maxLen: defaultMaxLen,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

func (rb *RedisBus) add(ctx context.Context, stream string, fields map[string]interface{}) error {
	return rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: rb.maxLen,
		Approx: true,
		Values: fields,
	}).Err()
}

// PublishTurn publishes a chat message to the turns stream
func (rb *RedisBus) PublishTurn(ctx context.Context, msg TurnMessage) error {
	if err := rb.add(ctx, TurnsStream, turnFields(msg)); err != nil {
		return fmt.Errorf("failed to publish turn: %w", err)
	}
	rb.logger.Printf("Published %s turn for conversation %s", msg.Role, msg.ConversationID)
	return nil
}

// PublishFeedback publishes a feedback submission to the feedback stream
func (rb *RedisBus) PublishFeedback(ctx context.Context, msg FeedbackMessage) error {
	if err := rb.add(ctx, FeedbackStream, feedbackFields(msg)); err != nil {
		return fmt.Errorf("failed to publish feedback: %w", err)
	}
	rb.logger.Printf("Published %s feedback %s", msg.Sentiment, msg.FeedbackID)
	return nil
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't exist
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := rb.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s for stream %s: %w", group, stream, err)
	}

	rb.logger.Printf("Consumer group %s ready for stream %s", group, stream)
	return nil
}

// ReadStream reads messages from a stream using consumer groups
func (rb *RedisBus) ReadStream(ctx context.Context, stream, group, consumer string, handler StreamHandler) error {
	if err := rb.CreateConsumerGroup(ctx, stream, group); err != nil {
		return err
	}

	rb.logger.Printf("Starting stream reader for %s (group: %s, consumer: %s)", stream, group, consumer)

	for {
		select {
		case <-ctx.Done():
			rb.logger.Printf("Stream reader for %s stopping due to context cancellation", stream)
			return ctx.Err()
		default:
		}

		result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    1 * time.Second,
		})
		if err := result.Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rb.logger.Printf("Error reading from stream %s: %v", stream, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, s := range result.Val() {
			for _, message := range s.Messages {
				streamMsg := StreamMessage{
					ID:     message.ID,
					Fields: make(map[string]string, len(message.Values)),
				}
				for key, value := range message.Values {
					if strValue, ok := value.(string); ok {
						streamMsg.Fields[key] = strValue
					}
				}

				if err := handler(ctx, streamMsg); err != nil {
					rb.logger.Printf("Error processing message %s: %v", message.ID, err)
					continue
				}
				if err := rb.client.XAck(ctx, s.Stream, group, message.ID).Err(); err != nil {
					rb.logger.Printf("Error acknowledging message %s: %v", message.ID, err)
				}
			}
		}
	}
}

// ReadTurnsStream reads from the turns stream
func (rb *RedisBus) ReadTurnsStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, turn TurnMessage) error) error {
	return rb.ReadStream(ctx, TurnsStream, group, consumer, func(ctx context.Context, message StreamMessage) error {
		return handler(ctx, turnFromFields(message.Fields))
	})
}

// Purge deletes the turns and feedback streams.
func (rb *RedisBus) Purge(ctx context.Context) error {
	if err := rb.client.Del(ctx, TurnsStream, FeedbackStream).Err(); err != nil {
		return fmt.Errorf("failed to delete streams: %w", err)
	}
	rb.logger.Printf("Deleted streams %s, %s", TurnsStream, FeedbackStream)
	return nil
}

// GetStreamInfo returns information about a stream
func (rb *RedisBus) GetStreamInfo(ctx context.Context, stream string) (*redis.XInfoStream, error) {
	result := rb.client.XInfoStream(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get stream info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// GetConsumerGroupInfo returns information about consumer groups for a stream
func (rb *RedisBus) GetConsumerGroupInfo(ctx context.Context, stream string) ([]redis.XInfoGroup, error) {
	result := rb.client.XInfoGroups(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get consumer group info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the Redis streams
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}

	for _, stream := range []string{TurnsStream, FeedbackStream} {
		if info, err := rb.GetStreamInfo(ctx, stream); err == nil {
			stats[stream] = map[string]interface{}{
				"length":         info.Length,
				"first_entry_id": info.FirstEntry.ID,
				"last_entry_id":  info.LastEntry.ID,
			}
		}
		if groups, err := rb.GetConsumerGroupInfo(ctx, stream); err == nil {
			stats[stream+":groups"] = len(groups)
		}
	}

	return stats, nil
}

func turnFields(msg TurnMessage) map[string]interface{} {
	return map[string]interface{}{
		"conversation_id": msg.ConversationID,
		"message_id":      msg.MessageID,
		"role":            msg.Role,
		"content":         msg.Content,
		"summary":         msg.Summary,
		"timestamp":       msg.Timestamp,
	}
}

func turnFromFields(fields map[string]string) TurnMessage {
	msg := TurnMessage{
		ConversationID: fields["conversation_id"],
		MessageID:      fields["message_id"],
		Role:           fields["role"],
		Content:        fields["content"],
		Summary:        fields["summary"],
	}
	if ts, err := parseTimestamp(fields["timestamp"]); err == nil {
		msg.Timestamp = ts
	}
	return msg
}

func feedbackFields(msg FeedbackMessage) map[string]interface{} {
	return map[string]interface{}{
		"feedback_id": msg.FeedbackID,
		"sentiment":   msg.Sentiment,
		"comment":     msg.Comment,
		"page":        msg.Page,
		"timestamp":   msg.Timestamp,
	}
}

// parseTimestamp parses a timestamp string to unix seconds
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	// Try numeric epoch (seconds or milliseconds)
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		// 13+ digits are milliseconds
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	// RFC3339Nano also accepts plain RFC3339
	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}

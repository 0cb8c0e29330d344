package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"goldshop/internal/infrastructure/storage/postgres"
	"goldshop/pkg/logger"
)

const defaultStream = "goldshop:events"

// StreamPublisher delivers outbox messages to a Redis stream. It is the
// handler the outbox relay calls for each due message.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

var _ postgres.OutboxHandler = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher writing to stream, trimmed to
// roughly maxLen entries. An empty stream uses the default name.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = defaultStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Handle implements postgres.OutboxHandler.
func (p *StreamPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: StreamValues(msg),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// StreamValues is the field set written for one message.
func StreamValues(msg *postgres.OutboxMessage) map[string]any {
	return map[string]any{
		"message_id":     msg.ID.String(),
		"aggregate_type": msg.AggregateType,
		"aggregate_id":   msg.AggregateID.String(),
		"event_type":     msg.EventType,
		"event_key":      msg.EventKey,
		"payload":        string(msg.Payload),
		"created_at":     msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// LogHandler delivers outbox messages to the log. Used when Redis is not
// configured.
type LogHandler struct {
	log *logger.Logger
}

var _ postgres.OutboxHandler = (*LogHandler)(nil)

// NewLogHandler creates a log handler.
func NewLogHandler(log *logger.Logger) *LogHandler {
	return &LogHandler{log: log}
}

// Handle implements postgres.OutboxHandler.
func (h *LogHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("outbox event",
		"message_id", msg.ID,
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
	)
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultDLQStream = "fern:dlq:purchase-events"

	// DLQMaxLen caps the stream; the oldest entries are trimmed first.
	DLQMaxLen = 10000
)

// DeadLetterQueue keeps messages that can never be processed in a redis stream.
type DeadLetterQueue struct {
	client     *Client
	streamName string
	logger     ectologger.Logger
}

func NewDeadLetterQueue(client *Client, streamName string, logger ectologger.Logger) *DeadLetterQueue {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &DeadLetterQueue{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

type DLQEntry struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Partition    int       `json:"partition"`
	Offset       int64     `json:"offset"`
	Key          string    `json:"key,omitempty"`
	Payload      string    `json:"payload"`
	Reason       string    `json:"reason"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// Add appends entry to the stream and returns the stream message id.
func (d *DeadLetterQueue) Add(ctx context.Context, entry *DLQEntry) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.Add")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.TraceID = tracing.GetTraceID(ctx)

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	messageID, err := d.client.Redis().XAdd(ctx, &redis.XAddArgs{
		Stream: d.streamName,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: map[string]any{
			"data":   string(data),
			"topic":  entry.Topic,
			"reason": entry.Reason,
		},
	}).Result()
	if err != nil {
		tracing.RecordError(span, err)
		return "", fmt.Errorf("failed to add to DLQ: %w", err)
	}

	d.logger.WithContext(ctx).Infof("Added message to DLQ: topic=%s offset=%d reason=%s", entry.Topic, entry.Offset, entry.Reason)
	return messageID, nil
}

// List returns up to count entries, newest first.
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DeadLetterQueue.List")
	defer span.End()

	if count <= 0 {
		count = 100
	}

	messages, err := d.client.Redis().XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	entries := make([]DLQEntry, 0, len(messages))
	for _, msg := range messages {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal DLQ entry: %s", msg.ID)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	return d.client.Redis().XLen(ctx, d.streamName).Result()
}

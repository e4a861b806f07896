package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is stamped on every contact event.
const SchemaVersion = "1.0"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes contact lifecycle events.
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compressionCodec(cfg.Compression),
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, logger: logger, topic: topic}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// ContactEvent describes a committed change to one identity cluster.
type ContactEvent struct {
	EventID           string                     `json:"event_id"`
	EventType         string                     `json:"event_type"`
	SchemaVersion     string                     `json:"schema_version"`
	PrimaryContactID  int64                      `json:"primary_contact_id"`
	Contact           models.ConsolidatedContact `json:"contact"`
	CreatedContactID  *int64                     `json:"created_contact_id,omitempty"`
	DemotedContactIDs []int64                    `json:"demoted_contact_ids,omitempty"`
	Source            string                     `json:"source,omitempty"`
	RequestID         string                     `json:"request_id,omitempty"`
	Timestamp         time.Time                  `json:"timestamp"`
}

// PublishContactEvent writes event keyed by its primary id so every event for
// one cluster lands on the same partition.
func (p *Producer) PublishContactEvent(ctx context.Context, event *ContactEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishContactEvent",
		attribute.String("event.type", event.EventType),
		attribute.Int64("contact.primary_id", event.PrimaryContactID),
	)
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.SchemaVersion == "" {
		event.SchemaVersion = SchemaVersion
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.EventType, err)
	}

	headers := headerCarrier{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "schema_version", Value: []byte(event.SchemaVersion)},
	}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(strconv.FormatInt(event.PrimaryContactID, 10)),
		Value:   data,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaProduce(p.topic, event.EventType, "error")
		tracing.RecordError(span, err)
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish contact event")
		return err
	}
	metrics.RecordKafkaProduce(p.topic, event.EventType, "success")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"primary_id": event.PrimaryContactID,
	}).Debug("Published contact event")

	return nil
}

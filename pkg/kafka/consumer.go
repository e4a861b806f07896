package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MessageHandler processes one message. Purchase is decoded lazily by the
// handler. Returning an error retries the same message; the partition does not
// advance until the handler succeeds or the consumer stops.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

const (
	fetchRetryDelay      = time.Second
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 30 * time.Second
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader        MessageReader
	topic         string
	logger        ectologger.Logger
	handler       MessageHandler
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

type ConsumerOption func(*Consumer)

// WithRetryDelay sets the first and the largest wait between attempts at a
// message whose handler failed.
func WithRetryDelay(initial, ceiling time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if initial > 0 {
			c.retryDelay = initial
		}
		if ceiling >= c.retryDelay {
			c.maxRetryDelay = ceiling
		}
	}
}

func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return NewConsumerWithReader(reader, cfg.Topic, logger, handler, opts...)
}

func NewConsumerWithReader(reader MessageReader, topic string, logger ectologger.Logger, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:        reader,
		topic:         topic,
		logger:        logger,
		handler:       handler,
		retryDelay:    defaultRetryDelay,
		maxRetryDelay: defaultMaxRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins consuming in the background until ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.topic,
	}).Info("Kafka consumer started")
	return nil
}

// Stop waits for the in-flight message to finish and closes the reader.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

// processMessage runs the handler until it succeeds, then commits. A
// committed offset covers every earlier offset in the partition, so nothing
// later is fetched while a message is still failing.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg, attempt)
		if err == nil {
			metrics.RecordKafkaConsume(c.topic, "success")
			c.commit(ctx, msg)
			return
		}

		metrics.RecordKafkaConsume(c.topic, "error")
		select {
		case <-ctx.Done():
			// Left uncommitted so it is redelivered after a restart or rebalance.
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxRetryDelay)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, attempt int) error {
	carrier := headerCarrier(msg.Headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, &carrier)

	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.handle")
	defer span.End()

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	err := c.handler(ctx, &IncomingMessage{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
	})
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"attempt":   attempt,
		}).Error("Failed to process message (retrying)")
	}
	return err
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("Failed to commit offset %d", msg.Offset)
	}
}

// Health reports whether the consumer has a reader.
func (c *Consumer) Health() bool {
	return c.reader != nil
}

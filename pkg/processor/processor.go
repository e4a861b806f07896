// Package processor turns purchase events from kafka into identify calls.
package processor

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	appcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	ReasonUndecodable       = "undecodable"
	ReasonMissingIdentifier = "missing_identifier"
	ReasonLinkageCorruption = "linkage_corruption"
)

type Identifier interface {
	Identify(ctx context.Context, req models.IdentifyRequest) (models.IdentifyResponse, error)
}

// DeadLetters receives messages that are acknowledged without being processed.
type DeadLetters interface {
	Add(ctx context.Context, entry *redis.DLQEntry) (string, error)
}

type Processor struct {
	identifier  Identifier
	deadLetters DeadLetters
	logger      ectologger.Logger
}

type Option func(*Processor)

func WithDeadLetters(dl DeadLetters) Option {
	return func(p *Processor) {
		p.deadLetters = dl
	}
}

func NewProcessor(identifier Identifier, logger ectologger.Logger, opts ...Option) *Processor {
	p := &Processor{identifier: identifier, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle is a kafka.MessageHandler. Messages that can never succeed are
// logged and acknowledged; anything else is returned so it is redelivered.
func (p *Processor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx = appcontext.SetSource(ctx, appcontext.SourceKafka)
	ctx = appcontext.SetRequestID(ctx, fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset))

	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Handle")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	if msg.Purchase == nil {
		if err := msg.ParsePurchaseEvent(); err != nil {
			log.WithError(err).Warn("Skipping undecodable purchase event")
			p.deadLetter(ctx, msg, ReasonUndecodable, err)
			return nil
		}
	}

	resp, err := p.identifier.Identify(ctx, models.IdentifyRequest{
		Email:       msg.Purchase.Email,
		PhoneNumber: msg.Purchase.PhoneNumber,
	})
	if err != nil {
		tracing.RecordError(span, err)
		switch identity.KindOf(err) {
		case identity.KindMissingIdentifier:
			log.WithError(err).Warn("Skipping purchase event without contact details")
			p.deadLetter(ctx, msg, ReasonMissingIdentifier, err)
			return nil
		case identity.KindLinkageCorruption:
			log.WithError(err).Error("Skipping purchase event touching a corrupt cluster")
			p.deadLetter(ctx, msg, ReasonLinkageCorruption, err)
			return nil
		default:
			return err
		}
	}

	log.WithFields(map[string]any{
		"order_id":   msg.Purchase.OrderID,
		"primary_id": resp.Contact.PrimaryContactID,
	}).Debug("Processed purchase event")

	return nil
}

// deadLetter is best effort; the message is acknowledged either way.
func (p *Processor) deadLetter(ctx context.Context, msg *kafka.IncomingMessage, reason string, cause error) {
	if p.deadLetters == nil {
		return
	}

	_, err := p.deadLetters.Add(ctx, &redis.DLQEntry{
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
		Key:          msg.Key,
		Payload:      string(msg.Value),
		Reason:       reason,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warnf("Failed to dead-letter message at offset %d", msg.Offset)
	}
}

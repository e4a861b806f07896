// Package events publishes contact lifecycle changes after they commit.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	appcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type EventType string

const (
	EventTypeContactCreated EventType = "contact.created"
	EventTypeContactLinked  EventType = "contact.linked"
	EventTypeContactMerged  EventType = "contact.merged"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishContactEvent(ctx context.Context, event *kafka.ContactEvent) error
}

type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter returns an emitter that drops every event when publisher is nil.
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger}
}

// Enabled reports whether events are actually published.
func (e *Emitter) Enabled() bool {
	return e != nil && e.publisher != nil
}

// EventTypeFor maps an identify outcome to the event it produces. Unchanged
// outcomes produce none.
func EventTypeFor(outcome identity.Outcome) (EventType, bool) {
	switch outcome {
	case identity.OutcomeCreated:
		return EventTypeContactCreated, true
	case identity.OutcomeAttached:
		return EventTypeContactLinked, true
	case identity.OutcomeMerged:
		return EventTypeContactMerged, true
	default:
		return "", false
	}
}

// EmitIdentify publishes the event for a committed identify result.
func (e *Emitter) EmitIdentify(ctx context.Context, result identity.Result) error {
	if !e.Enabled() {
		return nil
	}

	eventType, ok := EventTypeFor(result.Outcome)
	if !ok {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitIdentify")
	defer span.End()

	event := &kafka.ContactEvent{
		EventType:        string(eventType),
		PrimaryContactID: result.PrimaryID,
		Contact:          result.Response.Contact,
		Source:           appcontext.GetSource(ctx),
		RequestID:        appcontext.GetRequestID(ctx),
	}
	if result.Created != nil {
		createdID := result.Created.ID
		event.CreatedContactID = &createdID
	}
	if len(result.DemotedIDs) > 0 {
		event.DemotedContactIDs = result.DemotedIDs
	}

	if err := e.publisher.PublishContactEvent(ctx, event); err != nil {
		tracing.RecordError(span, err)
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"primary_id": result.PrimaryID,
		}).Warn("Failed to emit contact event")
		return err
	}

	return nil
}

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakePublisher struct {
	events []*kafka.ContactEvent
	err    error
}

func (p *fakePublisher) PublishContactEvent(_ context.Context, event *kafka.ContactEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func result(outcome identity.Outcome) identity.Result {
	return identity.Result{
		Outcome:   outcome,
		PrimaryID: 1,
		Response: models.IdentifyResponse{Contact: models.ConsolidatedContact{
			PrimaryContactID:    1,
			Emails:              []string{"george@hillvalley.edu"},
			PhoneNumbers:        []string{"919191", "717171"},
			SecondaryContactIDs: []int64{27},
		}},
		DemotedIDs: []int64{},
	}
}

func TestEventTypeFor(t *testing.T) {
	tests := []struct {
		outcome identity.Outcome
		want    EventType
		ok      bool
	}{
		{identity.OutcomeCreated, EventTypeContactCreated, true},
		{identity.OutcomeAttached, EventTypeContactLinked, true},
		{identity.OutcomeMerged, EventTypeContactMerged, true},
		{identity.OutcomeUnchanged, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			got, ok := EventTypeFor(tt.outcome)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestEmitIdentify(t *testing.T) {
	ctx := appcontext.SetSource(context.Background(), appcontext.SourceKafka)
	ctx = appcontext.SetRequestID(ctx, "req-1")

	t.Run("merged carries demoted ids", func(t *testing.T) {
		publisher := &fakePublisher{}
		emitter := NewEmitter(publisher, logger())

		res := result(identity.OutcomeMerged)
		res.DemotedIDs = []int64{27}
		require.NoError(t, emitter.EmitIdentify(ctx, res))

		require.Len(t, publisher.events, 1)
		event := publisher.events[0]
		assert.Equal(t, "contact.merged", event.EventType)
		assert.Equal(t, int64(1), event.PrimaryContactID)
		assert.Equal(t, []int64{27}, event.DemotedContactIDs)
		assert.Nil(t, event.CreatedContactID)
		assert.Equal(t, "kafka", event.Source)
		assert.Equal(t, "req-1", event.RequestID)
		assert.Equal(t, res.Response.Contact, event.Contact)
	})

	t.Run("linked carries the new row", func(t *testing.T) {
		publisher := &fakePublisher{}
		emitter := NewEmitter(publisher, logger())

		res := result(identity.OutcomeAttached)
		res.Created = &models.Contact{ID: 27}
		require.NoError(t, emitter.EmitIdentify(ctx, res))

		require.Len(t, publisher.events, 1)
		require.NotNil(t, publisher.events[0].CreatedContactID)
		assert.Equal(t, int64(27), *publisher.events[0].CreatedContactID)
		assert.Empty(t, publisher.events[0].DemotedContactIDs)
	})

	t.Run("unchanged emits nothing", func(t *testing.T) {
		publisher := &fakePublisher{}
		emitter := NewEmitter(publisher, logger())

		require.NoError(t, emitter.EmitIdentify(ctx, result(identity.OutcomeUnchanged)))
		assert.Empty(t, publisher.events)
	})

	t.Run("disabled emitter is a no-op", func(t *testing.T) {
		emitter := NewEmitter(nil, logger())
		assert.False(t, emitter.Enabled())
		assert.NoError(t, emitter.EmitIdentify(ctx, result(identity.OutcomeCreated)))

		var nilEmitter *Emitter
		assert.NoError(t, nilEmitter.EmitIdentify(ctx, result(identity.OutcomeCreated)))
	})

	t.Run("publish failure is returned", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("broker down")}
		emitter := NewEmitter(publisher, logger())

		err := emitter.EmitIdentify(ctx, result(identity.OutcomeCreated))
		assert.ErrorIs(t, err, publisher.err)
	})
}

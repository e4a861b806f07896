package identify

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/cache"
	appcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ResetMessage is returned once every contact has been deleted.
const ResetMessage = "All contacts deleted, ID counter reset"

type Engine interface {
	Identify(ctx context.Context, req identity.Request) (identity.Result, error)
	Consolidate(ctx context.Context, contactID int64) (identity.Result, error)
}

type AdminRepository interface {
	List(ctx context.Context) ([]models.Contact, error)
	Reset(ctx context.Context) error
}

type EventEmitter interface {
	EmitIdentify(ctx context.Context, result identity.Result) error
}

// Service is the single entry point for HTTP, kafka and CLI callers.
type Service struct {
	engine Engine
	repo   AdminRepository
	cache  cache.Cache
	events EventEmitter
	logger ectologger.Logger
}

func NewService(engine Engine, repo AdminRepository, c cache.Cache, events EventEmitter, logger ectologger.Logger) *Service {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Service{
		engine: engine,
		repo:   repo,
		cache:  c,
		events: events,
		logger: logger,
	}
}

// Identify reconciles one request and returns the consolidated contact.
// Cache invalidation and events happen only after the write has committed.
func (s *Service) Identify(ctx context.Context, req models.IdentifyRequest) (models.IdentifyResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "identify.Service.Identify")
	defer span.End()

	start := time.Now()
	source := appcontext.GetSource(ctx)

	request, err := identity.NewRequest(req.Email.String(), req.PhoneNumber.String())
	if err != nil {
		metrics.RecordIdentify(source, "rejected", time.Since(start).Seconds())
		return models.IdentifyResponse{}, err
	}

	result, err := s.engine.Identify(ctx, request)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RecordIdentify(source, "error", time.Since(start).Seconds())
		return models.IdentifyResponse{}, err
	}

	span.SetAttributes(
		attribute.String("identify.outcome", string(result.Outcome)),
		attribute.Int64("contact.primary_id", result.PrimaryID),
	)
	metrics.RecordIdentify(source, string(result.Outcome), time.Since(start).Seconds())
	metrics.RecordClusterSize(len(result.Cluster))
	if len(result.DemotedIDs) > 0 {
		metrics.RecordMerge(len(result.DemotedIDs))
	}

	s.afterCommit(ctx, result)

	return result.Response, nil
}

func (s *Service) afterCommit(ctx context.Context, result identity.Result) {
	if result.Outcome == identity.OutcomeUnchanged {
		return
	}

	ids := ectolinq.Map(result.Cluster, func(c models.Contact) int64 { return c.ID })
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"primary_id": result.PrimaryID,
		}).Warn("Failed to invalidate cached identities")
	}

	if s.events != nil {
		// The emitter logs its own failures; the identity write has already committed.
		_ = s.events.EmitIdentify(ctx, result)
	}
}

// Lookup returns the consolidated contact for the cluster containing contactID.
func (s *Service) Lookup(ctx context.Context, contactID int64) (models.IdentifyResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "identify.Service.Lookup", attribute.Int64("contact.id", contactID))
	defer span.End()

	log := s.logger.WithContext(ctx).WithField("contact_id", contactID)

	cached, err := s.cache.Get(ctx, contactID)
	if err != nil {
		log.WithError(err).Warn("Identity cache read failed, falling back to the store")
	}
	if cached != nil {
		return models.IdentifyResponse{Contact: *cached}, nil
	}

	// Taken before the store read so a merge committed in between is not cached.
	generation, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		log.WithError(genErr).Warn("Identity cache generation read failed, skipping cache write")
	}

	result, err := s.engine.Consolidate(ctx, contactID)
	if err != nil {
		tracing.RecordError(span, err)
		return models.IdentifyResponse{}, err
	}

	if genErr == nil {
		if err := s.cache.Set(ctx, contactID, result.Response.Contact, generation); err != nil {
			log.WithError(err).Warn("Failed to cache identity")
		}
	}

	return result.Response, nil
}

// List dumps every contact row, deleted ones included.
func (s *Service) List(ctx context.Context) (models.ContactList, error) {
	ctx, span := tracing.StartSpan(ctx, "identify.Service.List")
	defer span.End()

	contacts, err := s.repo.List(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return models.ContactList{}, err
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}

	return models.ContactList{Contacts: contacts, Total: len(contacts)}, nil
}

// Reset deletes every contact, restarts id assignment and flushes the cache.
func (s *Service) Reset(ctx context.Context) (models.MessageResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "identify.Service.Reset")
	defer span.End()

	if err := s.repo.Reset(ctx); err != nil {
		tracing.RecordError(span, err)
		return models.MessageResponse{}, err
	}

	// Ids restart at 1, so surviving entries would describe the new rows wrongly.
	if err := s.cache.Flush(ctx); err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).Error("Contacts deleted but the identity cache flush failed")
		return models.MessageResponse{}, httperror.NewHTTPError(http.StatusServiceUnavailable,
			"contacts deleted but the identity cache could not be flushed, retry the reset").
			AddMetaValue("kind", string(identity.KindStoreUnavailable))
	}

	return models.MessageResponse{Message: ResetMessage}, nil
}

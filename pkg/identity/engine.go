package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Outcome describes what an identify call changed.
type Outcome string

const (
	// OutcomeCreated means no contact matched and a new primary was inserted.
	OutcomeCreated Outcome = "created"
	// OutcomeAttached means a new secondary was appended to one existing cluster.
	OutcomeAttached Outcome = "attached"
	// OutcomeMerged means two or more clusters were folded into the oldest.
	// A secondary may also have been appended.
	OutcomeMerged Outcome = "merged"
	// OutcomeUnchanged means every supplied value was already known.
	OutcomeUnchanged Outcome = "unchanged"
)

// Result is everything Identify decided. Only Response is meant for callers
// outside the service.
type Result struct {
	Response   models.IdentifyResponse
	Outcome    Outcome
	PrimaryID  int64
	DemotedIDs []int64
	Relinked   int64
	Created    *models.Contact
	Cluster    []models.Contact
}

type Engine struct {
	store  Store
	logger ectologger.Logger
	now    func() time.Time
}

type Option func(*Engine)

// WithClock replaces the time source used for created and updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store Store, logger ectologger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Identify reconciles req against the store in a single transaction and
// returns the consolidated view of the resulting cluster.
func (e *Engine) Identify(ctx context.Context, req Request) (Result, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "identity.Engine.Identify")
	defer span.End()

	var result Result
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.reconcile(ctx, req)
		return err
	})
	if err != nil {
		identityErr := storeUnavailable("identify", err)
		tracing.RecordError(span, identityErr)
		e.logger.WithContext(ctx).WithError(identityErr).WithFields(map[string]any{
			"kind": identityErr.Kind,
		}).Error("Failed to identify contact")
		return Result{}, identityErr
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_id": result.PrimaryID,
		"outcome":    result.Outcome,
		"demoted":    result.DemotedIDs,
		"cluster":    len(result.Cluster),
	}).Info("Identified contact")

	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, req Request) (Result, error) {
	now := e.now().UTC()

	matches, err := e.store.FindMatching(ctx, req.Email, req.PhoneNumber)
	if err != nil {
		return Result{}, storeUnavailable("find matching contacts", err)
	}

	if len(matches) == 0 {
		created, err := e.store.Create(ctx, models.Contact{
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			LinkPrecedence: models.LinkPrecedencePrimary,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return Result{}, storeUnavailable("create primary contact", err)
		}
		return e.result(OutcomeCreated, created.ID, nil, 0, &created, []models.Contact{created})
	}

	res := newResolver(e.store)
	for _, match := range matches {
		if _, err := res.resolve(ctx, match); err != nil {
			return Result{}, err
		}
	}

	survivor, losers := electSurvivor(res.distinct())
	demoted, relinked, err := e.merge(ctx, survivor, losers, now)
	if err != nil {
		return Result{}, err
	}

	outcome := OutcomeUnchanged
	if len(demoted) > 0 {
		outcome = OutcomeMerged
	}

	cluster, err := e.store.GetCluster(ctx, survivor.ID)
	if err != nil {
		return Result{}, storeUnavailable("fetch cluster", err)
	}

	var created *models.Contact
	if isNovel(cluster, req) {
		linkedID := survivor.ID
		secondary, err := e.store.Create(ctx, models.Contact{
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			LinkedID:       &linkedID,
			LinkPrecedence: models.LinkPrecedenceSecondary,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return Result{}, storeUnavailable("create secondary contact", err)
		}
		created = &secondary
		if outcome == OutcomeUnchanged {
			outcome = OutcomeAttached
		}

		cluster, err = e.store.GetCluster(ctx, survivor.ID)
		if err != nil {
			return Result{}, storeUnavailable("fetch cluster", err)
		}
	}

	return e.result(outcome, survivor.ID, demoted, relinked, created, cluster)
}

func (e *Engine) result(outcome Outcome, primaryID int64, demoted []int64, relinked int64, created *models.Contact, cluster []models.Contact) (Result, error) {
	consolidated, err := Synthesize(cluster)
	if err != nil {
		return Result{}, err
	}
	if consolidated.PrimaryContactID != primaryID {
		return Result{}, linkageCorruption("cluster of contact %d is rooted at contact %d", primaryID, consolidated.PrimaryContactID)
	}

	if demoted == nil {
		demoted = []int64{}
	}

	return Result{
		Response:   models.IdentifyResponse{Contact: consolidated},
		Outcome:    outcome,
		PrimaryID:  primaryID,
		DemotedIDs: demoted,
		Relinked:   relinked,
		Created:    created,
		Cluster:    cluster,
	}, nil
}

// Consolidate returns the consolidated view of the cluster containing contactID.
func (e *Engine) Consolidate(ctx context.Context, contactID int64) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Engine.Consolidate")
	defer span.End()

	var result Result
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		contact, err := e.store.GetByID(ctx, contactID)
		if err != nil {
			return storeUnavailable("get contact", err)
		}
		if contact == nil {
			return &Error{Kind: KindContactNotFound, Message: fmt.Sprintf("contact %d not found", contactID)}
		}

		primary, err := newResolver(e.store).resolve(ctx, *contact)
		if err != nil {
			return err
		}

		cluster, err := e.store.GetCluster(ctx, primary.ID)
		if err != nil {
			return storeUnavailable("fetch cluster", err)
		}

		result, err = e.result(OutcomeUnchanged, primary.ID, nil, 0, nil, cluster)
		return err
	})
	if err != nil {
		identityErr := storeUnavailable("consolidate", err)
		tracing.RecordError(span, identityErr)
		if identityErr.Kind != KindContactNotFound {
			e.logger.WithContext(ctx).WithError(identityErr).WithFields(map[string]any{
				"contact_id": contactID,
				"kind":       identityErr.Kind,
			}).Error("Failed to consolidate contact")
		}
		return Result{}, identityErr
	}

	return result, nil
}

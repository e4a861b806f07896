package identity

import (
	"context"
	"sort"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// electSurvivor picks the oldest primary (lowest id on a tie). The rest are
// returned oldest first as the losers.
func electSurvivor(primaries []models.Contact) (models.Contact, []models.Contact) {
	ordered := make([]models.Contact, len(primaries))
	copy(ordered, primaries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedBefore(ordered[j])
	})
	return ordered[0], ordered[1:]
}

// merge demotes every loser under the survivor and moves the losers'
// secondaries across, leaving no two-hop links behind.
func (e *Engine) merge(ctx context.Context, survivor models.Contact, losers []models.Contact, now time.Time) ([]int64, int64, error) {
	if len(losers) == 0 {
		return nil, 0, nil
	}

	ctx, span := tracing.StartSpan(ctx, "identity.Engine.merge")
	defer span.End()

	demoted := make([]int64, 0, len(losers))
	var relinked int64
	for _, loser := range losers {
		if err := e.store.Demote(ctx, loser.ID, survivor.ID, now); err != nil {
			return nil, 0, storeUnavailable("demote primary", err)
		}

		moved, err := e.store.Relink(ctx, loser.ID, survivor.ID, now)
		if err != nil {
			return nil, 0, storeUnavailable("relink secondaries", err)
		}

		demoted = append(demoted, loser.ID)
		relinked += moved

		e.logger.WithContext(ctx).WithFields(map[string]any{
			"survivor_id": survivor.ID,
			"demoted_id":  loser.ID,
			"relinked":    moved,
		}).Info("Demoted primary contact")
	}

	return demoted, relinked, nil
}

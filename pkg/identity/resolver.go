package identity

import (
	"context"
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// resolver maps contacts to the primary at the root of their cluster. Clusters
// are flat, so a secondary resolves with a single lookup of its linked id.
type resolver struct {
	store     Store
	primaries map[int64]models.Contact
	roots     map[int64]int64
}

func newResolver(store Store) *resolver {
	return &resolver{
		store:     store,
		primaries: make(map[int64]models.Contact),
		roots:     make(map[int64]int64),
	}
}

func (r *resolver) resolve(ctx context.Context, contact models.Contact) (models.Contact, error) {
	if rootID, ok := r.roots[contact.ID]; ok {
		return r.primaries[rootID], nil
	}

	if contact.IsPrimary() {
		if contact.LinkedID != nil {
			return models.Contact{}, linkageCorruption("primary contact %d is linked to contact %d", contact.ID, *contact.LinkedID)
		}
		r.remember(contact.ID, contact)
		return contact, nil
	}

	if contact.LinkedID == nil {
		return models.Contact{}, linkageCorruption("secondary contact %d has no linked contact", contact.ID)
	}

	linkedID := *contact.LinkedID
	if primary, ok := r.primaries[linkedID]; ok {
		r.remember(contact.ID, primary)
		return primary, nil
	}

	primary, err := r.store.GetByID(ctx, linkedID)
	if err != nil {
		return models.Contact{}, storeUnavailable("resolve linked contact", err)
	}
	if primary == nil {
		return models.Contact{}, linkageCorruption("secondary contact %d is linked to contact %d, which does not exist or is deleted", contact.ID, linkedID)
	}
	if !primary.IsPrimary() || primary.LinkedID != nil {
		return models.Contact{}, linkageCorruption("secondary contact %d is linked to contact %d, which is not a primary", contact.ID, linkedID)
	}

	r.remember(primary.ID, *primary)
	r.remember(contact.ID, *primary)
	return *primary, nil
}

func (r *resolver) remember(contactID int64, primary models.Contact) {
	r.primaries[primary.ID] = primary
	r.roots[contactID] = primary.ID
}

// distinct returns every primary reached so far, oldest first.
func (r *resolver) distinct() []models.Contact {
	primaries := make([]models.Contact, 0, len(r.primaries))
	for _, primary := range r.primaries {
		primaries = append(primaries, primary)
	}
	sort.Slice(primaries, func(i, j int) bool {
		return primaries[i].CreatedBefore(primaries[j])
	})
	return primaries
}

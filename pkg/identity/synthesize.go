package identity

import (
	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Synthesize builds the consolidated view of a cluster snapshot. The primary's
// values come first, then each secondary's in cluster order, without repeats.
func Synthesize(cluster []models.Contact) (models.ConsolidatedContact, error) {
	live := ectolinq.Filter(cluster, func(c models.Contact) bool {
		return !c.IsDeleted()
	})

	primaries := ectolinq.Filter(live, func(c models.Contact) bool {
		return c.IsPrimary()
	})
	if len(primaries) != 1 {
		return models.ConsolidatedContact{}, linkageCorruption("cluster has %d primary contacts, expected exactly one", len(primaries))
	}
	primary := primaries[0]

	consolidated := models.ConsolidatedContact{
		PrimaryContactID:    primary.ID,
		Emails:              make([]string, 0, len(live)),
		PhoneNumbers:        make([]string, 0, len(live)),
		SecondaryContactIDs: make([]int64, 0, len(live)-1),
	}

	consolidated.Emails = appendUnique(consolidated.Emails, primary.Email)
	consolidated.PhoneNumbers = appendUnique(consolidated.PhoneNumbers, primary.PhoneNumber)

	for _, contact := range live {
		if contact.ID == primary.ID {
			continue
		}
		if contact.LinkedID == nil || *contact.LinkedID != primary.ID {
			return models.ConsolidatedContact{}, linkageCorruption("contact %d is in the cluster of %d but is not linked to it", contact.ID, primary.ID)
		}
		consolidated.Emails = appendUnique(consolidated.Emails, contact.Email)
		consolidated.PhoneNumbers = appendUnique(consolidated.PhoneNumbers, contact.PhoneNumber)
		consolidated.SecondaryContactIDs = append(consolidated.SecondaryContactIDs, contact.ID)
	}

	return consolidated, nil
}

func appendUnique(values []string, value *string) []string {
	if value == nil || *value == "" || ectolinq.Contains(values, *value) {
		return values
	}
	return append(values, *value)
}

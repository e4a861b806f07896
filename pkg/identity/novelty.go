package identity

import (
	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
)

// isNovel reports whether req supplies an email or phone number that no live
// member of the cluster carries yet.
func isNovel(cluster []models.Contact, req Request) bool {
	live := ectolinq.Filter(cluster, func(c models.Contact) bool {
		return !c.IsDeleted()
	})

	if req.Email != nil {
		emails := ectolinq.Map(live, func(c models.Contact) string { return c.EmailValue() })
		if !ectolinq.Contains(emails, *req.Email) {
			return true
		}
	}

	if req.PhoneNumber != nil {
		phones := ectolinq.Map(live, func(c models.Contact) string { return c.PhoneValue() })
		if !ectolinq.Contains(phones, *req.PhoneNumber) {
			return true
		}
	}

	return false
}

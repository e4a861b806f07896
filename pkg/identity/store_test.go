package identity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory Store. InTx restores the previous rows when fn fails.
type memStore struct {
	mu       sync.Mutex
	contacts []models.Contact
	calls    int
	failOn   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{failOn: map[string]bool{}}
}

func (s *memStore) seed(c models.Contact) models.Contact {
	c.ID = int64(len(s.contacts) + 1)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.contacts = append(s.contacts, c)
	return c
}

func (s *memStore) get(id int64) models.Contact {
	return s.contacts[id-1]
}

func (s *memStore) fail(op string) error {
	s.calls++
	if s.failOn[op] {
		return errStoreDown
	}
	return nil
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InTx"); err != nil {
		return err
	}

	snapshot := make([]models.Contact, len(s.contacts))
	copy(snapshot, s.contacts)

	if err := fn(ctx); err != nil {
		s.contacts = snapshot
		return err
	}
	return nil
}

func (s *memStore) live(pred func(models.Contact) bool) []models.Contact {
	out := []models.Contact{}
	for _, c := range s.contacts {
		if c.DeletedAt == nil && pred(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedBefore(out[j]) })
	return out
}

func (s *memStore) FindMatching(_ context.Context, email, phoneNumber *string) ([]models.Contact, error) {
	if err := s.fail("FindMatching"); err != nil {
		return nil, err
	}
	return s.live(func(c models.Contact) bool {
		return (email != nil && c.Email != nil && *c.Email == *email) ||
			(phoneNumber != nil && c.PhoneNumber != nil && *c.PhoneNumber == *phoneNumber)
	}), nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*models.Contact, error) {
	if err := s.fail("GetByID"); err != nil {
		return nil, err
	}
	found := s.live(func(c models.Contact) bool { return c.ID == id })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *memStore) GetCluster(_ context.Context, primaryID int64) ([]models.Contact, error) {
	if err := s.fail("GetCluster"); err != nil {
		return nil, err
	}
	return s.live(func(c models.Contact) bool {
		return c.ID == primaryID || (c.LinkedID != nil && *c.LinkedID == primaryID)
	}), nil
}

func (s *memStore) Create(_ context.Context, c models.Contact) (models.Contact, error) {
	if err := s.fail("Create"); err != nil {
		return models.Contact{}, err
	}
	return s.seed(c), nil
}

func (s *memStore) Demote(_ context.Context, id, survivorID int64, at time.Time) error {
	if err := s.fail("Demote"); err != nil {
		return err
	}
	c := &s.contacts[id-1]
	c.LinkPrecedence = models.LinkPrecedenceSecondary
	c.LinkedID = &survivorID
	c.UpdatedAt = at
	return nil
}

func (s *memStore) Relink(_ context.Context, fromID, toID int64, at time.Time) (int64, error) {
	if err := s.fail("Relink"); err != nil {
		return 0, err
	}
	var moved int64
	for i := range s.contacts {
		c := &s.contacts[i]
		if c.LinkedID != nil && *c.LinkedID == fromID {
			target := toID
			c.LinkedID = &target
			c.UpdatedAt = at
			moved++
		}
	}
	return moved, nil
}

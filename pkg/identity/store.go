package identity

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Store is the persistence the Engine reconciles against. Every read excludes
// logically deleted contacts.
type Store interface {
	// InTx runs fn in one strongly isolated transaction. Conflicts are retried
	// by the store, never by the Engine.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// FindMatching returns contacts whose email equals email OR whose phone
	// equals phoneNumber, oldest first with ties broken by id. Nil inputs match nothing.
	FindMatching(ctx context.Context, email, phoneNumber *string) ([]models.Contact, error)

	// GetByID returns nil, nil when no live contact has the id.
	GetByID(ctx context.Context, id int64) (*models.Contact, error)

	// GetCluster returns the contact with primaryID plus every contact linked
	// to it, oldest first.
	GetCluster(ctx context.Context, primaryID int64) ([]models.Contact, error)

	// Create inserts the contact and returns it with its assigned id.
	Create(ctx context.Context, contact models.Contact) (models.Contact, error)

	// Demote turns primary id into a secondary of survivorID.
	Demote(ctx context.Context, id, survivorID int64, at time.Time) error

	// Relink re-points every contact linked to fromID at toID and returns how many moved.
	Relink(ctx context.Context, fromID, toID int64, at time.Time) (int64, error)
}

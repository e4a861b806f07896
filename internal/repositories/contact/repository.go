package contact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "contacts"

var columns = []string{"id", "phone_number", "email", "linked_id", "link_precedence", "created_at", "updated_at", "deleted_at"}

// ErrNotPrimary is returned by Demote when the target is no longer a live primary.
var ErrNotPrimary = errors.New("contact is not a live primary")

// Repository handles contact persistence. Every method runs on the
// transaction carried by ctx when there is one.
type Repository struct {
	db     database.DB
	flavor sqlbuilder.Flavor
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		flavor: db.Dialect().Flavor(),
		logger: logger,
	}
}

// InTx runs fn in a transaction at the dialect's strongest isolation level.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.InTx(ctx, fn)
}

// FindMatching returns live contacts sharing the email or the phone number.
func (r *Repository) FindMatching(ctx context.Context, email, phoneNumber *string) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.FindMatching")
	defer span.End()

	sb := r.flavor.NewSelectBuilder()
	sb.Select(columns...).From(table)

	var matchers []string
	if email != nil {
		matchers = append(matchers, sb.Equal("email", *email))
	}
	if phoneNumber != nil {
		matchers = append(matchers, sb.Equal("phone_number", *phoneNumber))
	}
	if len(matchers) == 0 {
		return []models.Contact{}, nil
	}

	sb.Where(sb.Or(matchers...), sb.IsNull("deleted_at"))
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()
	contacts := []models.Contact{}
	if err := r.db.Queryer(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find matching contacts")
		return nil, fmt.Errorf("find matching contacts: %w", err)
	}

	return contacts, nil
}

// GetByID returns nil, nil when no live contact has the id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByID")
	defer span.End()

	sb := r.flavor.NewSelectBuilder()
	sb.Select(columns...).From(table)
	sb.Where(sb.Equal("id", id), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var contact models.Contact
	if err := r.db.Queryer(ctx).GetContext(ctx, &contact, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get contact")
		return nil, fmt.Errorf("get contact %d: %w", id, err)
	}

	return &contact, nil
}

// GetCluster returns the primary and every live contact linked to it, oldest first.
func (r *Repository) GetCluster(ctx context.Context, primaryID int64) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetCluster")
	defer span.End()

	sb := r.flavor.NewSelectBuilder()
	sb.Select(columns...).From(table)
	sb.Where(
		sb.Or(sb.Equal("id", primaryID), sb.Equal("linked_id", primaryID)),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()
	contacts := []models.Contact{}
	if err := r.db.Queryer(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"primary_id": primaryID}).Error("Failed to get cluster")
		return nil, fmt.Errorf("get cluster %d: %w", primaryID, err)
	}

	return contacts, nil
}

// Create inserts the contact and returns it with the id the store assigned.
func (r *Repository) Create(ctx context.Context, contact models.Contact) (models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Create")
	defer span.End()

	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}
	if contact.UpdatedAt.IsZero() {
		contact.UpdatedAt = contact.CreatedAt
	}

	ib := r.flavor.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("phone_number", "email", "linked_id", "link_precedence", "created_at", "updated_at")
	ib.Values(contact.PhoneNumber, contact.Email, contact.LinkedID, string(contact.LinkPrecedence), contact.CreatedAt, contact.UpdatedAt)

	query, args := ib.Build()
	query += " RETURNING id"

	if err := r.db.Queryer(ctx).GetContext(ctx, &contact.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create contact")
		return models.Contact{}, fmt.Errorf("create contact: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":              contact.ID,
		"link_precedence": contact.LinkPrecedence,
		"linked_id":       contact.LinkedID,
	}).Debug("Created contact")
	return contact, nil
}

// Demote turns the live primary id into a secondary of survivorID.
func (r *Repository) Demote(ctx context.Context, id, survivorID int64, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Demote")
	defer span.End()

	ub := r.flavor.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("link_precedence", string(models.LinkPrecedenceSecondary)),
		ub.Assign("linked_id", survivorID),
		ub.Assign("updated_at", at),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("link_precedence", string(models.LinkPrecedencePrimary)),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to demote contact")
		return fmt.Errorf("demote contact %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("demote contact %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("demote contact %d: %w", id, ErrNotPrimary)
	}

	return nil
}

// Relink re-points every contact linked to fromID at toID, deleted rows
// included, so no chain survives an undelete.
func (r *Repository) Relink(ctx context.Context, fromID, toID int64, at time.Time) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Relink")
	defer span.End()

	ub := r.flavor.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("linked_id", toID),
		ub.Assign("updated_at", at),
	)
	ub.Where(ub.Equal("linked_id", fromID))

	query, args := ub.Build()
	result, err := r.db.Queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"from_id": fromID, "to_id": toID}).Error("Failed to relink contacts")
		return 0, fmt.Errorf("relink contacts of %d: %w", fromID, err)
	}

	return result.RowsAffected()
}

// List dumps every contact, deleted rows included, in creation order.
func (r *Repository) List(ctx context.Context) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.List")
	defer span.End()

	sb := r.flavor.NewSelectBuilder()
	sb.Select(columns...).From(table)
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()
	contacts := []models.Contact{}
	if err := r.db.Queryer(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list contacts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts")
	}

	return contacts, nil
}

// Reset deletes every contact and restarts id assignment at 1.
func (r *Repository) Reset(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Reset")
	defer span.End()

	var statements []string
	switch r.db.Dialect() {
	case database.DialectSQLite:
		statements = []string{
			"DELETE FROM " + table,
			"DELETE FROM sqlite_sequence WHERE name = '" + table + "'",
		}
	default:
		statements = []string{"TRUNCATE TABLE " + table + " RESTART IDENTITY"}
	}

	err := r.db.InTx(ctx, func(ctx context.Context) error {
		for _, statement := range statements {
			if _, err := r.db.Queryer(ctx).ExecContext(ctx, statement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reset contacts")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset contacts")
	}

	r.logger.WithContext(ctx).Warn("Deleted all contacts and reset id assignment")
	return nil
}

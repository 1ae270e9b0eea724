package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/foxzi/mailtarget/internal/email"
	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/models"
)

// UnsubscribeRepository stores the per-entity opt-out list
type UnsubscribeRepository struct {
	db *db.DB
}

func NewUnsubscribeRepository(database *db.DB) *UnsubscribeRepository {
	return &UnsubscribeRepository{db: database}
}

// Add records an opt-out for address. Adding an address twice is a no-op.
func (r *UnsubscribeRepository) Add(ctx context.Context, entity int, address string) error {
	normalized, err := email.Normalize(address)
	if err != nil {
		return fmt.Errorf("%w: %q", err, address)
	}

	query, args, err := r.db.Builder().
		Insert("mailing_unsubscribe").
		Columns("entity", "email", "created_at").
		Values(entity, normalized, time.Now().UTC().Truncate(time.Second)).
		Suffix("ON CONFLICT (entity, email) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add unsubscribe: %w", err)
	}
	return nil
}

// Remove deletes the opt-out of address
func (r *UnsubscribeRepository) Remove(ctx context.Context, entity int, address string) error {
	if normalized, err := email.Normalize(address); err == nil {
		address = normalized
	}

	query, args, err := r.db.Builder().
		Delete("mailing_unsubscribe").
		Where(sq.Eq{"entity": entity, "email": address}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// List returns the opt-outs of an entity ordered by email
func (r *UnsubscribeRepository) List(ctx context.Context, entity int) ([]models.Unsubscribe, error) {
	query, args, err := r.db.Builder().
		Select("id", "entity", "email", "created_at").
		From("mailing_unsubscribe").
		Where(sq.Eq{"entity": entity}).
		OrderBy("email").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Unsubscribe{}
	for rows.Next() {
		var u models.Unsubscribe
		if err := rows.Scan(&u.ID, &u.Entity, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/models"
)

// MailingRepository stores mailings and their recipient tables
type MailingRepository struct {
	db *db.DB
}

func NewMailingRepository(database *db.DB) *MailingRepository {
	return &MailingRepository{db: database}
}

// Create creates a new mailing
func (r *MailingRepository) Create(ctx context.Context, m *models.Mailing) error {
	m.CreatedAt = time.Now().UTC().Truncate(time.Second)
	if m.Entity == 0 {
		m.Entity = 1
	}

	query, args, err := r.db.Builder().
		Insert("mailings").
		Columns("entity", "title", "nb_emails", "created_at").
		Values(m.Entity, m.Title, 0, m.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&m.ID); err != nil {
		return fmt.Errorf("failed to create mailing: %w", err)
	}
	return nil
}

// GetByID returns a mailing by ID
func (r *MailingRepository) GetByID(ctx context.Context, id int64) (*models.Mailing, error) {
	query, args, err := r.db.Builder().
		Select("id", "entity", "title", "nb_emails", "created_at").
		From("mailings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	m := &models.Mailing{}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.Entity, &m.Title, &m.NbEmails, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns the most recent mailings first
func (r *MailingRepository) List(ctx context.Context, entity int) ([]models.Mailing, error) {
	query, args, err := r.db.Builder().
		Select("id", "entity", "title", "nb_emails", "created_at").
		From("mailings").
		Where(sq.Eq{"entity": entity}).
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mailings := []models.Mailing{}
	for rows.Next() {
		var m models.Mailing
		if err := rows.Scan(&m.ID, &m.Entity, &m.Title, &m.NbEmails, &m.CreatedAt); err != nil {
			return nil, err
		}
		mailings = append(mailings, m)
	}
	return mailings, rows.Err()
}

// AddTargets inserts targets into the recipient table of a mailing.
// Targets without email and emails already present in the mailing are skipped.
// It returns the number of rows actually inserted.
func (r *MailingRepository) AddTargets(ctx context.Context, mailingID int64, targets []models.Target) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	added := 0

	for _, t := range targets {
		if t.Email == "" {
			continue
		}

		query, args, err := r.db.Builder().
			Insert("mailing_targets").
			Columns("mailing_id", "contact_id", "lastname", "firstname", "email", "other",
				"source_url", "source_id", "source_type", "tag", "status", "created_at").
			Values(mailingID, t.ContactID, t.Lastname, t.Firstname, t.Email, t.Other,
				t.SourceURL, t.SourceID, t.SourceType, uuid.New().String(), models.TargetStatusPending, now).
			Suffix("ON CONFLICT (mailing_id, email) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to add target %s: %w", t.Email, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		added += int(n)
	}

	if err := r.updateNb(ctx, tx, mailingID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit targets: %w", err)
	}
	return added, nil
}

// CountRecipients runs a counting query returning a single "nb" column
func (r *MailingRepository) CountRecipients(ctx context.Context, q sq.Sqlizer) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}

	var nb int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&nb); err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return nb, nil
}

// ClearTargets removes every target of a mailing
func (r *MailingRepository) ClearTargets(ctx context.Context, mailingID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.db.Builder().
		Delete("mailing_targets").
		Where(sq.Eq{"mailing_id": mailingID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear targets: %w", err)
	}

	if err := r.updateNb(ctx, tx, mailingID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListTargets returns the targets of a mailing ordered by email
func (r *MailingRepository) ListTargets(ctx context.Context, filter models.TargetFilter) ([]models.Target, int, error) {
	where := sq.And{sq.Eq{"mailing_id": filter.MailingID}}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		where = append(where, sq.Or{
			sq.Like{"email": like},
			sq.Like{"lastname": like},
			sq.Like{"firstname": like},
		})
	}

	// Count total
	query, args, err := r.db.Builder().Select("COUNT(*)").From("mailing_targets").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sel := r.db.Builder().
		Select("id", "mailing_id", "contact_id", "lastname", "firstname", "email", "other",
			"source_url", "COALESCE(source_id, 0)", "source_type", "tag", "status", "created_at").
		From("mailing_targets").
		Where(where).
		OrderBy("email")
	if filter.Limit > 0 {
		sel = sel.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		sel = sel.Offset(uint64(filter.Offset))
	}

	query, args, err = sel.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	targets := []models.Target{}
	for rows.Next() {
		var t models.Target
		err := rows.Scan(&t.ID, &t.MailingID, &t.ContactID, &t.Lastname, &t.Firstname, &t.Email, &t.Other,
			&t.SourceURL, &t.SourceID, &t.SourceType, &t.Tag, &t.Status, &t.CreatedAt)
		if err != nil {
			return nil, 0, err
		}
		targets = append(targets, t)
	}

	return targets, total, rows.Err()
}

// updateNb stores the number of targets on the mailing row
func (r *MailingRepository) updateNb(ctx context.Context, tx *sql.Tx, mailingID int64) error {
	count := r.db.Builder().
		Select("COUNT(*)").
		From("mailing_targets").
		Where(sq.Eq{"mailing_id": mailingID})

	query, args, err := r.db.Builder().
		Update("mailings").
		Set("nb_emails", sq.Expr("(?)", count)).
		Where(sq.Eq{"id": mailingID}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update number of targets: %w", err)
	}
	return nil
}

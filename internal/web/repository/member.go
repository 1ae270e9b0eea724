package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/models"
)

// MemberRepository gives access to members, member types and member categories
type MemberRepository struct {
	db *db.DB
}

func NewMemberRepository(database *db.DB) *MemberRepository {
	return &MemberRepository{db: database}
}

// CreateType creates a new member type
func (r *MemberRepository) CreateType(ctx context.Context, t *models.MemberType) error {
	if t.Entity == 0 {
		t.Entity = 1
	}

	query, args, err := r.db.Builder().
		Insert("member_types").
		Columns("entity", "label", "subscription", "status").
		Values(t.Entity, t.Label, t.Subscription, t.Status).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create member type: %w", err)
	}
	return nil
}

// ListTypes returns the member types visible to the given entities, ordered by id
func (r *MemberRepository) ListTypes(ctx context.Context, entities []int) ([]models.MemberType, error) {
	query, args, err := r.db.Builder().
		Select("id", "entity", "label", "subscription", "status").
		From("member_types").
		Where(sq.Eq{"entity": entities}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []models.MemberType{}
	for rows.Next() {
		var t models.MemberType
		if err := rows.Scan(&t.ID, &t.Entity, &t.Label, &t.Subscription, &t.Status); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// CreateCategory creates a new category
func (r *MemberRepository) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.Entity == 0 {
		c.Entity = 1
	}
	if c.Type == 0 {
		c.Type = models.CategoryTypeMember
	}

	query, args, err := r.db.Builder().
		Insert("categories").
		Columns("entity", "label", "type", "visible").
		Values(c.Entity, c.Label, c.Type, c.Visible).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// ListCategories returns the categories of one type for an entity, ordered by label.
// The visible flag is ignored: member categories do not use it.
func (r *MemberRepository) ListCategories(ctx context.Context, entity int, categoryType int) ([]models.Category, error) {
	query, args, err := r.db.Builder().
		Select("id", "entity", "label", "type", "visible").
		From("categories").
		Where(sq.Eq{"type": categoryType, "entity": entity}).
		OrderBy("label").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Entity, &c.Label, &c.Type, &c.Visible); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Create creates a new member
func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	m.CreatedAt = time.Now().UTC().Truncate(time.Second)
	if m.Entity == 0 {
		m.Entity = 1
	}
	if m.EndDate.Valid {
		m.EndDate.Time = m.EndDate.Time.UTC().Truncate(time.Second)
	}

	query, args, err := r.db.Builder().
		Insert("members").
		Columns("entity", "email", "lastname", "firstname", "login", "company",
			"civility", "status", "end_date", "type_id", "created_at").
		Values(m.Entity, m.Email, m.Lastname, m.Firstname, m.Login, m.Company,
			m.Civility, int(m.Status), m.EndDate, m.TypeID, m.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&m.ID); err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetByID returns a member by ID
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	query, args, err := r.db.Builder().
		Select("id", "entity", "email", "lastname", "firstname", "login", "company",
			"civility", "status", "end_date", "type_id", "created_at").
		From("members").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	m := &models.Member{}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&m.ID, &m.Entity, &m.Email, &m.Lastname, &m.Firstname, &m.Login, &m.Company,
		&m.Civility, &m.Status, &m.EndDate, &m.TypeID, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// AddToCategory links a member to a category
func (r *MemberRepository) AddToCategory(ctx context.Context, categoryID, memberID int64) error {
	query, args, err := r.db.Builder().
		Insert("category_members").
		Columns("category_id", "member_id").
		Values(categoryID, memberID).
		Suffix("ON CONFLICT (category_id, member_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to add member to category: %w", err)
	}
	return nil
}

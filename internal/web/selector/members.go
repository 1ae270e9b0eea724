package selector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/foxzi/mailtarget/internal/metrics"
	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/models"
	"github.com/foxzi/mailtarget/internal/web/repository"
)

// MemberOptions configures a MemberSelector
type MemberOptions struct {
	// Entity is the current tenant, used for categories and the unsubscribe list
	Entity int
	// Entities is the set of tenants whose members are visible
	Entities []int
	BaseURL  string
	Location *time.Location
	// Now defaults to time.Now
	Now func() time.Time
}

// MemberSelector selects the members of the association that have an email
type MemberSelector struct {
	db      *db.DB
	members *repository.MemberRepository
	targets Targets
	tr      *i18n.Translator
	opts    MemberOptions
	logger  *slog.Logger
}

func NewMemberSelector(database *db.DB, targets Targets, tr *i18n.Translator, opts MemberOptions, logger *slog.Logger) *MemberSelector {
	if opts.Entity == 0 {
		opts.Entity = 1
	}
	if len(opts.Entities) == 0 {
		opts.Entities = []int{opts.Entity}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	s := &MemberSelector{
		db:      database,
		members: repository.NewMemberRepository(database),
		targets: targets,
		tr:      tr,
		opts:    opts,
	}
	s.logger = logger.With("component", "selector", "selector", s.Name())
	return s
}

func (s *MemberSelector) Name() string {
	return "members"
}

func (s *MemberSelector) Description() string {
	return s.tr.T("MailingModuleDescFundationMembers")
}

func (s *MemberSelector) Enabled() bool {
	return true
}

// Localize returns a copy of the selector translating with tr
func (s *MemberSelector) Localize(tr *i18n.Translator) Selector {
	if tr == nil {
		return s
	}
	c := *s
	c.tr = tr
	return &c
}

// URL returns the link to the member card
func (s *MemberSelector) URL(id int64) string {
	return s.opts.BaseURL + "/members/" + strconv.FormatInt(id, 10)
}

// AddToTarget appends to a mailing every member matching filter, once per email
func (s *MemberSelector) AddToTarget(ctx context.Context, mailingID int64, filter Filter) (int, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSelection(s.Name(), time.Since(start).Seconds())
	}()

	query, args, err := s.populationQuery(mailingID, filter, s.opts.Now()).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build member query: %w", err)
	}
	s.logger.Debug("selecting members", "mailing_id", mailingID, "query", query)

	targets, found, err := s.fetch(ctx, query, args)
	if err != nil {
		s.logger.Error("member query failed", "mailing_id", mailingID, "error", err)
		metrics.IncSelectionFailures(s.Name(), "query")
		return 0, fmt.Errorf("failed to select members: %w", err)
	}

	s.logger.Info("members found for mailing", "mailing_id", mailingID, "candidates", found, "recipients", len(targets))
	metrics.AddCandidates(s.Name(), found)

	added, err := s.targets.AddTargets(ctx, mailingID, targets)
	if err != nil {
		s.logger.Error("failed to add targets", "mailing_id", mailingID, "error", err)
		metrics.IncSelectionFailures(s.Name(), "insert")
		return 0, fmt.Errorf("failed to add targets: %w", err)
	}

	metrics.AddTargets(s.Name(), added)
	return added, nil
}

// fetch runs the population query and keeps the first row of each email.
// Rows are sorted by email so duplicates are adjacent.
func (s *MemberSelector) fetch(ctx context.Context, query string, args []any) ([]models.Target, int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	targets := []models.Target{}
	previous := ""
	found := 0

	for rows.Next() {
		var c models.Candidate
		err := rows.Scan(&c.ID, &c.Email, &c.ContactID, &c.Lastname, &c.Firstname,
			&c.EndDate, &c.Civility, &c.Login, &c.Company)
		if err != nil {
			return nil, 0, err
		}
		found++

		if c.Email == previous {
			continue
		}
		targets = append(targets, s.target(c))
		previous = c.Email
	}

	return targets, found, rows.Err()
}

func (s *MemberSelector) target(c models.Candidate) models.Target {
	return models.Target{
		Email:      c.Email,
		ContactID:  c.ContactID,
		Lastname:   c.Lastname,
		Firstname:  c.Firstname,
		Other:      s.other(c),
		SourceURL:  s.URL(c.ID),
		SourceID:   c.ID,
		SourceType: models.SourceTypeMember,
	}
}

// other renders Login=..;UserTitle=..;DateEnd=..;Company=..
func (s *MemberSelector) other(c models.Candidate) string {
	title := ""
	if c.Civility.Valid && c.Civility.String != "" {
		title = s.tr.T("Civility" + c.Civility.String)
	}

	end := ""
	if c.EndDate.Valid {
		end = s.tr.Day(c.EndDate.Time.In(s.opts.Location))
	}

	return strings.Join([]string{
		s.tr.T("Login") + "=" + c.Login,
		s.tr.T("UserTitle") + "=" + title,
		s.tr.T("DateEnd") + "=" + end,
		s.tr.T("Company") + "=" + c.Company,
	}, ";")
}

// populationQuery selects the candidate members of a mailing ordered by email
func (s *MemberSelector) populationQuery(mailingID int64, f Filter, now time.Time) sq.SelectBuilder {
	b := s.db.Builder()

	q := b.Select("a.id", "a.email", "NULL AS contact_id", "a.lastname", "a.firstname",
		"a.end_date", "a.civility", "a.login", "a.company").
		From("members a").
		Join("member_types ta ON ta.id = a.type_id")

	if f.CategoryID > 0 {
		q = q.Join("category_members cm ON cm.member_id = a.id").
			Join("categories c ON c.id = cm.category_id AND c.id = ?", f.CategoryID)
	}

	return q.Where(s.predicates(mailingID, f, now)).OrderBy("a.email")
}

func (s *MemberSelector) predicates(mailingID int64, f Filter, now time.Time) sq.And {
	b := s.db.Builder()
	now = dbTime(now)

	where := sq.And{
		sq.Eq{"a.entity": s.opts.Entities},
		sq.NotEq{"a.email": ""},
		sq.Expr("a.email NOT IN (?)", b.Select("email").
			From("mailing_targets").
			Where(sq.Eq{"mailing_id": mailingID})),
	}

	if st := statusPredicate(f.Status, now); st != nil {
		where = append(where, st)
	}
	if !f.EndAfter.IsZero() {
		where = append(where, sq.Gt{"a.end_date": dbTime(f.EndAfter)})
	}
	if !f.EndBefore.IsZero() {
		where = append(where, sq.Lt{"a.end_date": dbTime(f.EndBefore)})
	}
	if f.TypeID > 0 {
		where = append(where, sq.Eq{"ta.id": f.TypeID})
	}
	if !f.IncludeUnsubscribed {
		where = append(where, s.notUnsubscribed())
	}

	return where
}

func statusPredicate(st Status, now time.Time) sq.Sqlizer {
	active := sq.Eq{"a.status": int(models.MemberStatusActive)}

	switch st {
	case StatusDraft:
		return sq.Eq{"a.status": int(models.MemberStatusDraft)}
	case StatusActiveCurrent:
		return sq.And{active, sq.Or{
			sq.GtOrEq{"a.end_date": now},
			sq.Eq{"ta.subscription": false},
		}}
	case StatusActiveLate:
		return sq.And{active,
			sq.Or{sq.Eq{"a.end_date": nil}, sq.Lt{"a.end_date": now}},
			sq.Eq{"ta.subscription": true},
		}
	case StatusResigned:
		return sq.Eq{"a.status": int(models.MemberStatusResigned)}
	}
	return nil
}

// notUnsubscribed excludes emails present in the unsubscribe list of the current entity
func (s *MemberSelector) notUnsubscribed() sq.Sqlizer {
	return sq.Expr("NOT EXISTS (?)", s.db.Builder().
		Select("1").
		From("mailing_unsubscribe mu").
		Where("LOWER(mu.email) = LOWER(a.email)").
		Where(sq.Eq{"mu.entity": s.opts.Entity}))
}

// NbOfRecipients counts the distinct emails of visible members
func (s *MemberSelector) NbOfRecipients(ctx context.Context, includeUnsubscribed bool) (int, error) {
	where := sq.And{
		sq.NotEq{"a.email": nil},
		sq.NotEq{"a.email": ""},
		sq.Eq{"a.entity": s.opts.Entities},
	}
	if !includeUnsubscribed {
		where = append(where, s.notUnsubscribed())
	}

	q := s.db.Builder().
		Select("COUNT(DISTINCT a.email) AS nb").
		From("members a").
		Where(where)

	nb, err := s.targets.CountRecipients(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to count member recipients: %w", err)
	}
	return nb, nil
}

// StatsQueries returns the number of active members
func (s *MemberSelector) StatsQueries() []sq.Sqlizer {
	return []sq.Sqlizer{
		s.db.Builder().
			Select().
			Column(sq.Expr("CAST(? AS TEXT) AS label", s.tr.T("FundationMembers"))).
			Column("COUNT(*) AS nb").
			From("members").
			Where(sq.Eq{
				"status": int(models.MemberStatusActive),
				"entity": s.opts.Entities,
			}),
	}
}

// dbTime matches the precision and zone of stored dates
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

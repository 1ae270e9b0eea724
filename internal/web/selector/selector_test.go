package selector

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/i18n"
	"github.com/foxzi/mailtarget/internal/web/models"
	"github.com/foxzi/mailtarget/internal/web/repository"
)

var testNow = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

// recordingTargets counts the calls made to the mailing module
type recordingTargets struct {
	Targets
	calls int
	last  []models.Target
}

func (r *recordingTargets) AddTargets(ctx context.Context, mailingID int64, targets []models.Target) (int, error) {
	r.calls++
	r.last = targets
	return r.Targets.AddTargets(ctx, mailingID, targets)
}

type fixture struct {
	db       *db.DB
	members  *repository.MemberRepository
	mailings *repository.MailingRepository
	targets  *recordingTargets
	selector *MemberSelector

	subscribing int64
	free        int64
	mailingID   int64
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTranslator(t *testing.T, lang string) *i18n.Translator {
	t.Helper()
	bundle, err := i18n.Load()
	require.NoError(t, err)
	return bundle.Translator(lang)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		db:       database,
		members:  repository.NewMemberRepository(database),
		mailings: repository.NewMailingRepository(database),
	}
	f.targets = &recordingTargets{Targets: f.mailings}
	f.selector = NewMemberSelector(database, f.targets, newTranslator(t, "en-US"), MemberOptions{
		Entity:  1,
		BaseURL: "https://crm.example.com/",
		Now:     func() time.Time { return testNow },
	}, newTestLogger())

	ctx := context.Background()

	subscribing := &models.MemberType{Label: "Regular", Subscription: true}
	require.NoError(t, f.members.CreateType(ctx, subscribing))
	f.subscribing = subscribing.ID

	free := &models.MemberType{Label: "Honorary", Subscription: false}
	require.NoError(t, f.members.CreateType(ctx, free))
	f.free = free.ID

	mailing := &models.Mailing{Title: "Newsletter"}
	require.NoError(t, f.mailings.Create(ctx, mailing))
	f.mailingID = mailing.ID

	return f
}

type memberOption func(*models.Member)

func withEnd(end time.Time) memberOption {
	return func(m *models.Member) { m.EndDate = sql.NullTime{Time: end, Valid: true} }
}

func withEntity(entity int) memberOption {
	return func(m *models.Member) { m.Entity = entity }
}

func (f *fixture) member(t *testing.T, address string, status models.MemberStatus, typeID int64, opts ...memberOption) int64 {
	t.Helper()
	m := &models.Member{
		Email:     sql.NullString{String: address, Valid: address != ""},
		Lastname:  "Doe",
		Firstname: "Jane",
		Login:     "jdoe",
		Status:    status,
		TypeID:    typeID,
	}
	for _, opt := range opts {
		opt(m)
	}
	require.NoError(t, f.members.Create(context.Background(), m))
	return m.ID
}

func (f *fixture) emails(t *testing.T) []string {
	t.Helper()
	list, _, err := f.mailings.ListTargets(context.Background(), models.TargetFilter{MailingID: f.mailingID})
	require.NoError(t, err)

	emails := []string{}
	for _, target := range list {
		emails = append(emails, target.Email)
	}
	return emails
}

func (f *fixture) unsubscribes() *repository.UnsubscribeRepository {
	return repository.NewUnsubscribeRepository(f.db)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

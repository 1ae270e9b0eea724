package selector

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/mailtarget/internal/web/models"
)

func TestMemberSelector_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.member(t, "a@x.com", models.MemberStatusActive, f.subscribing, withEnd(testNow.AddDate(0, 0, 30)))
	second := f.member(t, "a@x.com", models.MemberStatusActive, f.subscribing, withEnd(testNow.AddDate(0, 0, 10)))
	f.member(t, "b@x.com", models.MemberStatusDraft, f.subscribing)

	added, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{Status: StatusActiveCurrent})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"a@x.com"}, f.emails(t))

	require.Len(t, f.targets.last, 1)
	target := f.targets.last[0]
	assert.Contains(t, []int64{first, second}, target.SourceID)
	assert.Equal(t, models.SourceTypeMember, target.SourceType)
	assert.Equal(t, f.selector.URL(target.SourceID), target.SourceURL)
	assert.False(t, target.ContactID.Valid)
}

func TestMemberSelector_DuplicateEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.member(t, "same@example.com", models.MemberStatusActive, f.subscribing)
	}
	f.member(t, "other@example.com", models.MemberStatusActive, f.subscribing)

	added, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Len(t, f.targets.last, 2)
	assert.Equal(t, []string{"other@example.com", "same@example.com"}, f.emails(t))
}

func TestMemberSelector_SkipsExistingTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "b@example.com", models.MemberStatusActive, f.subscribing)

	_, err := f.mailings.AddTargets(ctx, f.mailingID, []models.Target{{Email: "a@example.com", Lastname: "Manual"}})
	require.NoError(t, err)

	added, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, f.targets.last, 1)
	assert.Equal(t, "b@example.com", f.targets.last[0].Email)

	// A second run finds nothing new
	added, err = f.selector.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Empty(t, f.targets.last)

	mailing, err := f.mailings.GetByID(ctx, f.mailingID)
	require.NoError(t, err)
	assert.Equal(t, 2, mailing.NbEmails)
}

func TestMemberSelector_Unsubscribed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.member(t, "stay@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "gone@example.com", models.MemberStatusActive, f.subscribing)

	unsubscribes := f.unsubscribes()
	require.NoError(t, unsubscribes.Add(ctx, 1, "gone@example.com"))
	// Opt-outs of another entity do not apply
	require.NoError(t, unsubscribes.Add(ctx, 2, "stay@example.com"))

	added, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"stay@example.com"}, f.emails(t))

	added, err = f.selector.AddToTarget(ctx, f.mailingID, Filter{IncludeUnsubscribed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"gone@example.com", "stay@example.com"}, f.emails(t))
}

func TestMemberSelector_UnsubscribedMixedCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.member(t, "Alice@Example.COM", models.MemberStatusActive, f.subscribing)
	f.member(t, "bob@example.com", models.MemberStatusActive, f.subscribing)

	unsubscribes := f.unsubscribes()
	require.NoError(t, unsubscribes.Add(ctx, 1, "Alice@Example.COM"))
	require.NoError(t, unsubscribes.Add(ctx, 1, "BOB@example.com"))

	nb, err := f.selector.NbOfRecipients(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, nb)

	added, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Empty(t, f.emails(t))
}

func TestMemberSelector_Status(t *testing.T) {
	f := newFixture(t)
	future := testNow.AddDate(0, 1, 0)
	past := testNow.AddDate(0, -1, 0)

	f.member(t, "draft@example.com", models.MemberStatusDraft, f.subscribing)
	f.member(t, "resigned@example.com", models.MemberStatusResigned, f.subscribing)
	f.member(t, "paid@example.com", models.MemberStatusActive, f.subscribing, withEnd(future))
	f.member(t, "due-today@example.com", models.MemberStatusActive, f.subscribing, withEnd(testNow))
	f.member(t, "late@example.com", models.MemberStatusActive, f.subscribing, withEnd(past))
	f.member(t, "never-paid@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "honorary@example.com", models.MemberStatusActive, f.free)
	f.member(t, "honorary-late@example.com", models.MemberStatusActive, f.free, withEnd(past))

	tests := []struct {
		status Status
		want   []string
	}{
		{StatusDraft, []string{"draft@example.com"}},
		{StatusResigned, []string{"resigned@example.com"}},
		{StatusActiveCurrent, []string{
			"due-today@example.com",
			"honorary-late@example.com",
			"honorary@example.com",
			"paid@example.com",
		}},
		{StatusActiveLate, []string{"late@example.com", "never-paid@example.com"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			require.NoError(t, f.mailings.ClearTargets(context.Background(), f.mailingID))

			added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{Status: tt.status})
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), added)
			assert.Equal(t, tt.want, f.emails(t))
		})
	}

	t.Run("no status", func(t *testing.T) {
		require.NoError(t, f.mailings.ClearTargets(context.Background(), f.mailingID))

		added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{})
		require.NoError(t, err)
		assert.Equal(t, 8, added)
	})
}

func TestMemberSelector_ActiveLateRequiresSubscription(t *testing.T) {
	f := newFixture(t)
	past := testNow.AddDate(-1, 0, 0)

	for i, typeID := range []int64{f.free, f.subscribing, f.free, f.subscribing} {
		f.member(t, string(rune('a'+i))+"@example.com", models.MemberStatusActive, typeID, withEnd(past))
	}

	_, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{Status: StatusActiveLate})
	require.NoError(t, err)

	for _, target := range f.targets.last {
		m, err := f.members.GetByID(context.Background(), target.SourceID)
		require.NoError(t, err)
		assert.Equal(t, f.subscribing, m.TypeID, "%s has a type without subscription", target.Email)
	}
	assert.Equal(t, []string{"b@example.com", "d@example.com"}, f.emails(t))
}

func TestMemberSelector_DateBoundsAreStrict(t *testing.T) {
	f := newFixture(t)
	after := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	f.member(t, "on-after@example.com", models.MemberStatusActive, f.subscribing, withEnd(after))
	f.member(t, "inside@example.com", models.MemberStatusActive, f.subscribing, withEnd(after.Add(time.Second)))
	f.member(t, "on-before@example.com", models.MemberStatusActive, f.subscribing, withEnd(before))
	f.member(t, "late-inside@example.com", models.MemberStatusActive, f.subscribing, withEnd(before.Add(-time.Second)))
	f.member(t, "no-end@example.com", models.MemberStatusActive, f.subscribing)

	added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{EndAfter: after, EndBefore: before})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"inside@example.com", "late-inside@example.com"}, f.emails(t))
}

func TestMemberSelector_DateBoundsTimezone(t *testing.T) {
	f := newFixture(t)
	zone := time.FixedZone("UTC+2", 2*3600)

	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing,
		withEnd(time.Date(2025, time.March, 1, 1, 0, 0, 0, time.UTC)))

	// 2025-03-01 00:00 at UTC+2 is 2025-02-28 22:00 UTC
	added, err := f.selector.AddToTarget(context.Background(), f.mailingID,
		Filter{EndBefore: time.Date(2025, time.March, 1, 0, 0, 0, 0, zone)})
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestMemberSelector_TypeAndCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	board := &models.Category{Label: "Board"}
	require.NoError(t, f.members.CreateCategory(ctx, board))
	volunteers := &models.Category{Label: "Volunteers"}
	require.NoError(t, f.members.CreateCategory(ctx, volunteers))

	chair := f.member(t, "chair@example.com", models.MemberStatusActive, f.subscribing)
	treasurer := f.member(t, "treasurer@example.com", models.MemberStatusActive, f.free)
	helper := f.member(t, "helper@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "nobody@example.com", models.MemberStatusActive, f.subscribing)

	require.NoError(t, f.members.AddToCategory(ctx, board.ID, chair))
	require.NoError(t, f.members.AddToCategory(ctx, board.ID, treasurer))
	require.NoError(t, f.members.AddToCategory(ctx, volunteers.ID, chair))
	require.NoError(t, f.members.AddToCategory(ctx, volunteers.ID, helper))

	added, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{CategoryID: board.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"chair@example.com", "treasurer@example.com"}, f.emails(t))

	require.NoError(t, f.mailings.ClearTargets(ctx, f.mailingID))

	added, err = f.selector.AddToTarget(ctx, f.mailingID, Filter{CategoryID: volunteers.ID, TypeID: f.subscribing})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"chair@example.com", "helper@example.com"}, f.emails(t))

	require.NoError(t, f.mailings.ClearTargets(ctx, f.mailingID))

	added, err = f.selector.AddToTarget(ctx, f.mailingID, Filter{TypeID: f.free})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"treasurer@example.com"}, f.emails(t))
}

func TestMemberSelector_EntityScope(t *testing.T) {
	f := newFixture(t)

	f.member(t, "mine@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "shared@example.com", models.MemberStatusActive, f.subscribing, withEntity(2))
	f.member(t, "hidden@example.com", models.MemberStatusActive, f.subscribing, withEntity(3))

	added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	shared := NewMemberSelector(f.db, f.targets, newTranslator(t, "en-US"), MemberOptions{
		Entity:   1,
		Entities: []int{1, 2},
	}, newTestLogger())

	added, err = shared.AddToTarget(context.Background(), f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"mine@example.com", "shared@example.com"}, f.emails(t))
}

func TestMemberSelector_SkipsMembersWithoutEmail(t *testing.T) {
	f := newFixture(t)

	f.member(t, "", models.MemberStatusActive, f.subscribing)
	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing)
	_, err := f.db.Exec(`UPDATE members SET email = '' WHERE email IS NULL`)
	require.NoError(t, err)
	f.member(t, "", models.MemberStatusActive, f.subscribing)

	added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	for _, target := range f.targets.last {
		assert.NotEmpty(t, target.Email)
	}
}

func TestMemberSelector_EmptyPopulation(t *testing.T) {
	f := newFixture(t)

	added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{Status: StatusDraft})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Empty(t, f.targets.last)
	assert.Empty(t, f.emails(t))
}

func TestMemberSelector_QueryFailure(t *testing.T) {
	f := newFixture(t)
	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing)

	_, err := f.db.Exec(`DROP TABLE category_members`)
	require.NoError(t, err)

	added, err := f.selector.AddToTarget(context.Background(), f.mailingID, Filter{CategoryID: 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "category_members")
	assert.Zero(t, added)
	assert.Zero(t, f.targets.calls)
}

func TestMemberSelector_Other(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := &models.Member{
		Email:     sql.NullString{String: "jane@example.com", Valid: true},
		Lastname:  "Doe",
		Firstname: "Jane",
		Login:     "jdoe",
		Company:   "ACME",
		Civility:  sql.NullString{String: "MME", Valid: true},
		Status:    models.MemberStatusActive,
		TypeID:    f.subscribing,
		EndDate:   sql.NullTime{Time: time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC), Valid: true},
	}
	require.NoError(t, f.members.Create(ctx, m))
	f.member(t, "plain@example.com", models.MemberStatusActive, f.subscribing)

	_, err := f.selector.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	require.Len(t, f.targets.last, 2)

	jane := f.targets.last[0]
	assert.Equal(t, "Login=jdoe;Title=Mrs.;End date=03/07/2025;Company=ACME", jane.Other)
	assert.Equal(t, "Doe", jane.Lastname)
	assert.Equal(t, "Jane", jane.Firstname)
	assert.Equal(t, "https://crm.example.com/members/"+itoa(m.ID), jane.SourceURL)

	plain := f.targets.last[1]
	assert.Equal(t, "Login=jdoe;Title=;End date=;Company=", plain.Other)
}

func TestMemberSelector_OtherLocalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fr := NewMemberSelector(f.db, f.targets, newTranslator(t, "fr-FR"), MemberOptions{
		Location: time.FixedZone("UTC+2", 2*3600),
	}, newTestLogger())

	m := &models.Member{
		Email:    sql.NullString{String: "jean@example.com", Valid: true},
		Login:    "jean",
		Civility: sql.NullString{String: "MR", Valid: true},
		Status:   models.MemberStatusActive,
		TypeID:   f.subscribing,
		EndDate:  sql.NullTime{Time: time.Date(2025, time.March, 7, 23, 0, 0, 0, time.UTC), Valid: true},
	}
	require.NoError(t, f.members.Create(ctx, m))

	_, err := fr.AddToTarget(ctx, f.mailingID, Filter{})
	require.NoError(t, err)
	require.Len(t, f.targets.last, 1)

	other := f.targets.last[0].Other
	assert.Contains(t, other, "=Monsieur;")
	assert.Contains(t, other, "=08/03/2025;")
}

func TestMemberSelector_NbOfRecipients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "a@example.com", models.MemberStatusDraft, f.subscribing)
	f.member(t, "b@example.com", models.MemberStatusResigned, f.subscribing)
	f.member(t, "c@example.com", models.MemberStatusActive, f.free)
	f.member(t, "", models.MemberStatusActive, f.free)
	f.member(t, "d@example.com", models.MemberStatusActive, f.free, withEntity(9))

	require.NoError(t, f.unsubscribes().Add(ctx, 1, "c@example.com"))

	nb, err := f.selector.NbOfRecipients(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, nb)

	nb, err = f.selector.NbOfRecipients(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, nb)
}

func TestMemberSelector_StatsQueries(t *testing.T) {
	f := newFixture(t)

	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing)
	f.member(t, "b@example.com", models.MemberStatusActive, f.free)
	f.member(t, "", models.MemberStatusActive, f.free)
	f.member(t, "c@example.com", models.MemberStatusDraft, f.free)
	f.member(t, "d@example.com", models.MemberStatusActive, f.free, withEntity(2))

	queries := f.selector.StatsQueries()
	require.Len(t, queries, 1)

	query, args, err := queries[0].ToSql()
	require.NoError(t, err)

	var label string
	var nb int
	require.NoError(t, f.db.QueryRow(query, args...).Scan(&label, &nb))
	assert.Equal(t, "Foundation members", label)
	assert.Equal(t, 3, nb)
}

func TestMemberSelector_Identity(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "members", f.selector.Name())
	assert.Equal(t, "Foundation members with emails", f.selector.Description())
	assert.True(t, f.selector.Enabled())
	assert.Equal(t, "https://crm.example.com/members/42", f.selector.URL(42))
}

func TestMemberSelector_Localize(t *testing.T) {
	f := newFixture(t)
	f.member(t, "a@example.com", models.MemberStatusActive, f.subscribing)

	fr := f.selector.Localize(newTranslator(t, "fr-FR"))
	assert.Equal(t, "Adhérents avec e-mail", fr.Description())
	assert.Equal(t, "Foundation members with emails", f.selector.Description())
	assert.Same(t, f.selector, f.selector.Localize(nil))

	dashboard := NewDashboard(f.db, NewRegistry(f.selector), newTestLogger())
	stats, err := dashboard.Localize(newTranslator(t, "fr-FR")).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Stat{{Label: "Adhérents", Nb: 1}}, stats)

	stats, err = dashboard.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Stat{{Label: "Foundation members", Nb: 1}}, stats)
}

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foxzi/mailtarget/internal/web/db"
	"github.com/foxzi/mailtarget/internal/web/models"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, database.Migrate(), "migration failed")

	t.Cleanup(func() {
		database.Close()
	})

	return database
}

func createMailing(t *testing.T, database *db.DB, title string) *models.Mailing {
	t.Helper()
	m := &models.Mailing{Title: title, Entity: 1}
	require.NoError(t, NewMailingRepository(database).Create(context.Background(), m))
	return m
}

func createMember(t *testing.T, repo *MemberRepository, typeID int64, address string, status models.MemberStatus, end *time.Time) *models.Member {
	t.Helper()
	m := &models.Member{
		Entity:    1,
		Email:     sql.NullString{String: address, Valid: address != ""},
		Lastname:  "Doe",
		Firstname: "Jane",
		Login:     "jdoe",
		Status:    status,
		TypeID:    typeID,
	}
	if end != nil {
		m.EndDate = sql.NullTime{Time: *end, Valid: true}
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

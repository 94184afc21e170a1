package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Housri/steam-auth-public/internal/user"
)

var testUserColumns = []string{
	"id", "external_id", "display_name", "profile_url",
	"avatar_small", "avatar_medium", "avatar_large", "created_at", "last_login_at",
}

func newMockStore(t *testing.T) (*PostgresUserStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewPostgresUserStore(sqlDB), mock
}

func aliceRow(created, lastLogin time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(testUserColumns).AddRow(
		"4b7f1f43-0a55-4f0e-a1f4-3b8e0c6b1a01", "76561197960287930", "Alice",
		"https://steamcommunity.com/id/alice/",
		"https://avatars/s.jpg", "https://avatars/m.jpg", "https://avatars/l.jpg",
		created, lastLogin,
	)
}

func TestPostgresUserStore_FindByExternalID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE external_id = \\$1").
		WithArgs("76561197960287930").
		WillReturnRows(aliceRow(now, now))

	rec, err := store.FindByExternalID(context.Background(), "76561197960287930")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.DisplayName)
	assert.Equal(t, "https://avatars/l.jpg", rec.Avatar.Large)
	assert.Equal(t, now, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_FindByExternalID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnRows(sqlmock.NewRows(testUserColumns))

	_, err := store.FindByExternalID(context.Background(), "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_FindByExternalID_DriverError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WillReturnError(sql.ErrConnDone)

	_, err := store.FindByExternalID(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NotErrorIs(t, err, user.ErrNotFound)
}

func TestPostgresUserStore_Insert(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(
			"4b7f1f43-0a55-4f0e-a1f4-3b8e0c6b1a01", "76561197960287930", "Alice",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			now, now,
		).
		WillReturnRows(aliceRow(now, now))

	rec, err := store.Insert(context.Background(), user.Record{
		LocalID:     "4b7f1f43-0a55-4f0e-a1f4-3b8e0c6b1a01",
		ExternalID:  "76561197960287930",
		DisplayName: "Alice",
		CreatedAt:   now,
		LastLoginAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "76561197960287930", rec.ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_Insert_ExternalIDConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_external_id_key"})

	_, err := store.Insert(context.Background(), user.Record{ExternalID: "dup"})
	assert.ErrorIs(t, err, user.ErrDuplicateExternalID)
}

func TestPostgresUserStore_Insert_OtherUniqueViolationIsNotConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_pkey"})

	_, err := store.Insert(context.Background(), user.Record{ExternalID: "dup"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, user.ErrDuplicateExternalID)

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
}

func TestPostgresUserStore_Update(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	mock.ExpectQuery("UPDATE users").
		WithArgs("76561197960287930", "Alice", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), later).
		WillReturnRows(aliceRow(created, later))

	rec, err := store.Update(context.Background(), "76561197960287930", user.Profile{DisplayName: "Alice"}, later)
	require.NoError(t, err)
	assert.Equal(t, later, rec.LastLoginAt)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_Update_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE users").
		WillReturnRows(sqlmock.NewRows(testUserColumns))

	_, err := store.Update(context.Background(), "gone", user.Profile{}, time.Now())
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestPostgresUserStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM users WHERE external_id = \\$1").
		WithArgs("76561197960287930").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM users").
		WithArgs("76561197960287930").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "76561197960287930"))
	assert.ErrorIs(t, store.Delete(context.Background(), "76561197960287930"), user.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Postgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, RunMigrations(context.Background(), &DB{DB: sqlDB, Driver: DriverPostgres}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UnknownDriver(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Error(t, RunMigrations(context.Background(), &DB{DB: sqlDB, Driver: "mysql"}))
}

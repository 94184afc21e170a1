package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Housri/steam-auth-public/internal/user"
)

func openTempSQLite(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.db")
	d, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func sampleRecord(externalID string, at time.Time) user.Record {
	return user.Record{
		LocalID:     "local-" + externalID,
		ExternalID:  externalID,
		DisplayName: "Alice",
		ProfileURL:  "https://steamcommunity.com/id/alice/",
		Avatar: user.Avatar{
			Small:  "https://avatars/s.jpg",
			Medium: "https://avatars/m.jpg",
			Large:  "https://avatars/l.jpg",
		},
		CreatedAt:   at,
		LastLoginAt: at,
	}
}

func TestSQLiteUserStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTempSQLite(t).Users()

	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	stored, err := store.Insert(ctx, sampleRecord("76561197960287930", at))
	require.NoError(t, err)

	// millisecond precision on disk
	assert.Equal(t, at.Truncate(time.Millisecond), stored.CreatedAt)
	assert.Equal(t, stored.CreatedAt, stored.LastLoginAt)

	found, err := store.FindByExternalID(ctx, "76561197960287930")
	require.NoError(t, err)
	assert.Equal(t, stored, found)
}

func TestSQLiteUserStore_InsertDuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	store := openTempSQLite(t).Users()
	at := time.Now().UTC()

	_, err := store.Insert(ctx, sampleRecord("dup", at))
	require.NoError(t, err)

	second := sampleRecord("dup", at)
	second.LocalID = "another-local-id"
	_, err = store.Insert(ctx, second)
	assert.ErrorIs(t, err, user.ErrDuplicateExternalID)
}

func TestSQLiteUserStore_CheckViolationIsNotConflict(t *testing.T) {
	ctx := context.Background()
	store := openTempSQLite(t).Users()
	at := time.Now().UTC()

	rec := sampleRecord("bad-times", at)
	rec.LastLoginAt = at.Add(-time.Hour)

	_, err := store.Insert(ctx, rec)
	require.Error(t, err)
	assert.NotErrorIs(t, err, user.ErrDuplicateExternalID)
}

func TestSQLiteUserStore_Update(t *testing.T) {
	ctx := context.Background()
	store := openTempSQLite(t).Users()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	created, err := store.Insert(ctx, sampleRecord("u1", at))
	require.NoError(t, err)

	later := at.Add(time.Minute)
	updated, err := store.Update(ctx, "u1", user.Profile{
		DisplayName: "Alice B",
		Avatar:      user.Avatar{Large: "https://avatars/new.jpg"},
	}, later)
	require.NoError(t, err)

	assert.Equal(t, created.LocalID, updated.LocalID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, later, updated.LastLoginAt)
	assert.Equal(t, "Alice B", updated.DisplayName)
	assert.Equal(t, "https://avatars/new.jpg", updated.Avatar.Large)
	assert.Empty(t, updated.Avatar.Small)
}

func TestSQLiteUserStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := openTempSQLite(t).Users()

	_, err := store.FindByExternalID(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = store.Update(ctx, "nobody", user.Profile{}, time.Now())
	assert.ErrorIs(t, err, user.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "nobody"), user.ErrNotFound)
}

func TestSQLiteUserStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := openTempSQLite(t).Users()

	_, err := store.Insert(ctx, sampleRecord("u1", time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "u1"))

	_, err = store.FindByExternalID(ctx, "u1")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestOpen_SQLiteMigrationsAreIdempotent(t *testing.T) {
	d := openTempSQLite(t)
	require.NoError(t, RunMigrations(context.Background(), d))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Housri/steam-auth-public/internal/user"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// SQLiteUserStore implements user.Store on SQLite. It backs local
// development and the store-level concurrency tests.
type SQLiteUserStore struct {
	db *sql.DB
}

func NewSQLiteUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) FindByExternalID(ctx context.Context, externalID string) (*user.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE external_id = ?1
	`, externalID)

	rec, err := scanSQLiteUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return rec, nil
}

func (s *SQLiteUserStore) Insert(ctx context.Context, rec user.Record) (*user.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)
		RETURNING `+userColumns,
		rec.LocalID,
		rec.ExternalID,
		rec.DisplayName,
		rec.ProfileURL,
		rec.Avatar.Small,
		rec.Avatar.Medium,
		rec.Avatar.Large,
		toMillis(rec.CreatedAt),
		toMillis(rec.LastLoginAt),
	)

	stored, err := scanSQLiteUser(row)
	if isSQLiteExternalIDConflict(err) {
		return nil, user.ErrDuplicateExternalID
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return stored, nil
}

func (s *SQLiteUserStore) Update(
	ctx context.Context,
	externalID string,
	p user.Profile,
	lastLoginAt time.Time,
) (*user.Record, error) {

	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET display_name = ?2,
		    profile_url = ?3,
		    avatar_small = ?4,
		    avatar_medium = ?5,
		    avatar_large = ?6,
		    last_login_at = ?7
		WHERE external_id = ?1
		RETURNING `+userColumns,
		externalID,
		p.DisplayName,
		p.ProfileURL,
		p.Avatar.Small,
		p.Avatar.Medium,
		p.Avatar.Large,
		toMillis(lastLoginAt),
	)

	rec, err := scanSQLiteUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return rec, nil
}

func (s *SQLiteUserStore) Delete(ctx context.Context, externalID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE external_id = ?1`, externalID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanSQLiteUser(row *sql.Row) (*user.Record, error) {
	var (
		rec                    user.Record
		createdAt, lastLoginAt int64
	)
	err := row.Scan(
		&rec.LocalID,
		&rec.ExternalID,
		&rec.DisplayName,
		&rec.ProfileURL,
		&rec.Avatar.Small,
		&rec.Avatar.Medium,
		&rec.Avatar.Large,
		&createdAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.LastLoginAt = fromMillis(lastLoginAt)
	return &rec, nil
}

func isSQLiteExternalIDConflict(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
	default:
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "users.external_id")
}

var _ user.Store = (*SQLiteUserStore)(nil)

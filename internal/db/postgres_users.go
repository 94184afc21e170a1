package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Housri/steam-auth-public/internal/user"
)

const (
	pgUniqueViolation   = "23505"
	pgExternalIDKeyName = "users_external_id_key"

	userColumns = `id, external_id, display_name, profile_url,
		avatar_small, avatar_medium, avatar_large, created_at, last_login_at`
)

// PostgresUserStore implements user.Store on PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) FindByExternalID(ctx context.Context, externalID string) (*user.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE external_id = $1
	`, externalID)

	rec, err := scanPostgresUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return rec, nil
}

func (s *PostgresUserStore) Insert(ctx context.Context, rec user.Record) (*user.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+userColumns,
		rec.LocalID,
		rec.ExternalID,
		rec.DisplayName,
		rec.ProfileURL,
		rec.Avatar.Small,
		rec.Avatar.Medium,
		rec.Avatar.Large,
		rec.CreatedAt,
		rec.LastLoginAt,
	)

	stored, err := scanPostgresUser(row)
	if isPostgresExternalIDConflict(err) {
		return nil, user.ErrDuplicateExternalID
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return stored, nil
}

func (s *PostgresUserStore) Update(
	ctx context.Context,
	externalID string,
	p user.Profile,
	lastLoginAt time.Time,
) (*user.Record, error) {

	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET display_name = $2,
		    profile_url = $3,
		    avatar_small = $4,
		    avatar_medium = $5,
		    avatar_large = $6,
		    last_login_at = $7
		WHERE external_id = $1
		RETURNING `+userColumns,
		externalID,
		p.DisplayName,
		p.ProfileURL,
		p.Avatar.Small,
		p.Avatar.Medium,
		p.Avatar.Large,
		lastLoginAt,
	)

	rec, err := scanPostgresUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return rec, nil
}

func (s *PostgresUserStore) Delete(ctx context.Context, externalID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE external_id = $1`, externalID)
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

func scanPostgresUser(row *sql.Row) (*user.Record, error) {
	var rec user.Record
	err := row.Scan(
		&rec.LocalID,
		&rec.ExternalID,
		&rec.DisplayName,
		&rec.ProfileURL,
		&rec.Avatar.Small,
		&rec.Avatar.Medium,
		&rec.Avatar.Large,
		&rec.CreatedAt,
		&rec.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// isPostgresExternalIDConflict reports a unique violation on external_id
// only; violations of any other constraint are real failures.
func isPostgresExternalIDConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pgUniqueViolation && pqErr.Constraint == pgExternalIDKeyName
}

var _ user.Store = (*PostgresUserStore)(nil)

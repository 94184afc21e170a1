package db

import (
	"context"
	"fmt"
)

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
    id uuid PRIMARY KEY,
    external_id text NOT NULL,
    display_name text NOT NULL DEFAULT '',
    profile_url text NOT NULL DEFAULT '',
    avatar_small text NOT NULL DEFAULT '',
    avatar_medium text NOT NULL DEFAULT '',
    avatar_large text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL,
    last_login_at timestamptz NOT NULL,
    CONSTRAINT users_external_id_key UNIQUE (external_id),
    CONSTRAINT users_login_after_create CHECK (last_login_at >= created_at)
);
`

// Timestamps are unix milliseconds in SQLite.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    external_id TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    profile_url TEXT NOT NULL DEFAULT '',
    avatar_small TEXT NOT NULL DEFAULT '',
    avatar_medium TEXT NOT NULL DEFAULT '',
    avatar_large TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    last_login_at INTEGER NOT NULL,
    CHECK (last_login_at >= created_at)
);
`

// RunMigrations applies the idempotent schema for the database driver.
func RunMigrations(ctx context.Context, d *DB) error {
	var ddl string
	switch d.Driver {
	case DriverPostgres:
		ddl = postgresMigration
	case DriverSQLite:
		ddl = sqliteMigration
	default:
		return fmt.Errorf("no migration for driver %q", d.Driver)
	}

	_, err := d.ExecContext(ctx, ddl)
	return err
}

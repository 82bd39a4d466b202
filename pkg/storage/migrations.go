package storage

import (
	"database/sql"
	"fmt"
)

// schema holds the full DDL. Rows are document-shaped: TEXT uuid
// primary keys and JSONB for embedded collections. No foreign keys;
// parent/child cleanup is orchestrated in the repositories.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		pwdhash    TEXT NOT NULL,
		firstname  TEXT NOT NULL DEFAULT '',
		lastname   TEXT NOT NULL DEFAULT '',
		roles      JSONB NOT NULL DEFAULT '[]',
		accounts   JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (email)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at)`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL,
		name           TEXT NOT NULL,
		version        TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		repository_url TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS projects_account_id_idx ON projects (account_id)`,

	`CREATE TABLE IF NOT EXISTS testlists (
		id          TEXT PRIMARY KEY,
		account_id  TEXT NOT NULL,
		project_id  TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS testlists_project_id_idx ON testlists (project_id)`,

	`CREATE TABLE IF NOT EXISTS testchecks (
		id          TEXT PRIMARY KEY,
		testlist_id TEXT NOT NULL,
		project_id  TEXT NOT NULL,
		account_id  TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		expected    TEXT NOT NULL DEFAULT '',
		tags        JSONB NOT NULL DEFAULT '[]',
		position    INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS testchecks_testlist_id_idx ON testchecks (testlist_id)`,

	`CREATE TABLE IF NOT EXISTS testreports (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL,
		project_id     TEXT NOT NULL,
		testlist_id    TEXT NOT NULL,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		execution_mode TEXT NOT NULL DEFAULT '',
		executors      JSONB NOT NULL DEFAULT '[]',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS testreports_project_id_idx ON testreports (project_id)`,

	`CREATE TABLE IF NOT EXISTS testresults (
		id            TEXT PRIMARY KEY,
		account_id    TEXT NOT NULL,
		testreport_id TEXT NOT NULL,
		testcheck_id  TEXT NOT NULL,
		name          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		expected      TEXT NOT NULL DEFAULT '',
		tags          JSONB NOT NULL DEFAULT '[]',
		position      INTEGER NOT NULL DEFAULT 0,
		updated       BOOLEAN NOT NULL DEFAULT FALSE,
		pass          BOOLEAN NOT NULL DEFAULT FALSE,
		flacky        BOOLEAN NOT NULL DEFAULT FALSE,
		automated     BOOLEAN NOT NULL DEFAULT FALSE,
		notes         TEXT NOT NULL DEFAULT '',
		url_issue     TEXT NOT NULL DEFAULT '',
		url_result    TEXT NOT NULL DEFAULT '',
		executors     JSONB NOT NULL DEFAULT '[]',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS testresults_testreport_id_idx ON testresults (testreport_id)`,
}

// Migrate applies the schema, idempotently
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}

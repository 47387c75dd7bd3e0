package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO
)

// migrations are applied in order and tracked in schema_versions.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS indexed_regulations (
    id           TEXT PRIMARY KEY,
    source       TEXT NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT '',
    crawled_at   DATETIME NOT NULL,
    is_processed BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_regulations_crawled ON indexed_regulations(is_processed, crawled_at DESC);

CREATE TABLE IF NOT EXISTS parsed_clauses (
    id            TEXT PRIMARY KEY,
    regulation_id TEXT NOT NULL,
    clause_id     TEXT NOT NULL,
    rule_text     TEXT NOT NULL,
    conditions    TEXT NOT NULL DEFAULT '',
    penalties     TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    UNIQUE (regulation_id, clause_id)
);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS audit_reports (
    id            TEXT PRIMARY KEY,
    tenant_id     TEXT NOT NULL,
    generated_at  DATETIME NOT NULL,
    total_checked INTEGER NOT NULL DEFAULT 0,
    violations    INTEGER NOT NULL DEFAULT 0,
    report_json   TEXT NOT NULL DEFAULT '{}',
    artifact_url  TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_tenant ON audit_reports(tenant_id, generated_at DESC);

CREATE TABLE IF NOT EXISTS audit_run_errors (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id    TEXT NOT NULL,
    run_id       TEXT NOT NULL,
    step         TEXT NOT NULL DEFAULT '',
    message      TEXT NOT NULL,
    details_json TEXT NOT NULL DEFAULT '{}',
    created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_errors_tenant ON audit_run_errors(tenant_id, created_at DESC);
`,
	},
}

// Open opens (or creates) the database at path and applies pending migrations.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One writer; in-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if !strings.Contains(path, ":memory:") {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates the SQLite database at path (":memory:" works for
// tests) and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// one writer; also keeps a ":memory:" database on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const schemaContainers = `
CREATE TABLE IF NOT EXISTS containers (
    id                    TEXT PRIMARY KEY,
    qr_code               TEXT NOT NULL UNIQUE,
    identification_number TEXT NOT NULL,
    status                TEXT NOT NULL CHECK (status IN ('limpo', 'sujo', 'em_transito', 'com_cliente', 'manutencao')),
    location              TEXT NOT NULL DEFAULT '',
    custodian             TEXT NOT NULL DEFAULT '',
    client                TEXT NOT NULL DEFAULT '',
    capacity              REAL NOT NULL DEFAULT 0,
    last_update           TEXT NOT NULL,
    notes                 TEXT NOT NULL DEFAULT '',
    created_at            TEXT NOT NULL
);
`

const schemaMovements = `
CREATE TABLE IF NOT EXISTS movements (
    id                TEXT PRIMARY KEY,
    container_id      TEXT NOT NULL REFERENCES containers(id),
    previous_status   TEXT NOT NULL DEFAULT '',
    new_status        TEXT NOT NULL,
    previous_location TEXT NOT NULL DEFAULT '',
    new_location      TEXT NOT NULL DEFAULT '',
    custodian         TEXT NOT NULL DEFAULT '',
    client            TEXT NOT NULL DEFAULT '',
    notes             TEXT NOT NULL DEFAULT '',
    occurred_at       TEXT NOT NULL
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT UNIQUE NOT NULL,
    full_name     TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
    password_hash TEXT NOT NULL
);
`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_containers_status ON containers(status)`,
	`CREATE INDEX IF NOT EXISTS idx_containers_custodian ON containers(custodian)`,
	`CREATE INDEX IF NOT EXISTS idx_containers_last_update ON containers(last_update)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_container ON movements(container_id, occurred_at)`,
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := append([]string{schemaContainers, schemaMovements, schemaUsers}, indexes...)
	for i, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

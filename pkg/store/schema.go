package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
)

// schemaStatements are applied in order inside a single transaction on
// first connect. They are idempotent (CREATE ... IF NOT EXISTS) so startup
// never needs a separate "has this run already" check — simpler than a
// versioned migration table for a schema this size, and the fisherman has
// exactly one schema generation to support.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS service_state (
		id                 INTEGER PRIMARY KEY CHECK (id = 1),
		last_indexed_block INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS block (
		height     INTEGER PRIMARY KEY,
		hash       BLOB NOT NULL,
		finalized  BOOLEAN NOT NULL,
		indexed_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS applied_event (
		block_height INTEGER NOT NULL,
		event_index  INTEGER NOT NULL,
		PRIMARY KEY (block_height, event_index)
	)`,
	`CREATE TABLE IF NOT EXISTS bucket (
		id          BLOB PRIMARY KEY,
		name        TEXT NOT NULL,
		owner       BLOB NOT NULL,
		msp_id      BLOB,
		forest_root BLOB NOT NULL,
		deleted_at  TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS file (
		file_key          BLOB PRIMARY KEY,
		fingerprint       BLOB NOT NULL,
		owner             BLOB NOT NULL,
		bucket_id         BLOB NOT NULL,
		location          TEXT NOT NULL,
		size              INTEGER NOT NULL,
		deletion_signature BLOB,
		fulfilled         BOOLEAN NOT NULL DEFAULT 0,
		created_at_block  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_file_bucket ON file(bucket_id)`,
	`CREATE TABLE IF NOT EXISTS bsp (
		id           BLOB PRIMARY KEY,
		capabilities INTEGER NOT NULL DEFAULT 0,
		forest_root  BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS msp (
		id           BLOB PRIMARY KEY,
		capabilities INTEGER NOT NULL DEFAULT 0,
		forest_root  BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bsp_file (
		provider_id  BLOB NOT NULL,
		file_key     BLOB NOT NULL,
		stored_since TIMESTAMP NOT NULL,
		PRIMARY KEY (provider_id, file_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bsp_file_file ON bsp_file(file_key)`,
	`CREATE TABLE IF NOT EXISTS msp_file (
		provider_id  BLOB NOT NULL,
		file_key     BLOB NOT NULL,
		stored_since TIMESTAMP NOT NULL,
		PRIMARY KEY (provider_id, file_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_msp_file_file ON msp_file(file_key)`,
	`CREATE TABLE IF NOT EXISTS deletion_intent (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		class            TEXT NOT NULL,
		file_key         BLOB NOT NULL,
		bucket_id        BLOB NOT NULL,
		provider_id      BLOB,
		provider_kind    TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'pending',
		created_at_block INTEGER NOT NULL,
		updated_at       TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intent_status ON deletion_intent(class, status)`,
	`CREATE INDEX IF NOT EXISTS idx_intent_file ON deletion_intent(file_key)`,
	`INSERT OR IGNORE INTO service_state (id, last_indexed_block) VALUES (1, 0)`,
}

func (s *sqlStore) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferr.New(ferr.Fatal, "store.migrate", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, rewriteForDriver(stmt, s.driver)); err != nil {
			tx.Rollback()
			return ferr.New(ferr.Fatal, "store.migrate", fmt.Errorf("applying %q: %w", stmt, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return ferr.New(ferr.Fatal, "store.migrate", err)
	}
	return nil
}

// rewriteForDriver patches the sqlite-flavored DDL above into a form
// postgres accepts. Only two constructs differ between the two dialects
// in this schema: AUTOINCREMENT and the INSERT OR IGNORE upsert shorthand.
func rewriteForDriver(stmt, driver string) string {
	if driver != "postgres" {
		return stmt
	}
	if stmt == `INSERT OR IGNORE INTO service_state (id, last_indexed_block) VALUES (1, 0)` {
		return `INSERT INTO service_state (id, last_indexed_block) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`
	}
	return strings.ReplaceAll(stmt, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
}

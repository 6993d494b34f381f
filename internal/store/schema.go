package store

import (
	"database/sql"
	"fmt"

	"demski/internal/logging"
)

// Schema versions:
// v1: runs and paths
// v2: runs.seed and runs.duration_ms
// v3: runs.added for update lineage
const CurrentSchemaVersion = 3

// columnMigration adds a column that older databases lack.
type columnMigration struct {
	Version int
	Table   string
	Column  string
	Def     string
}

var columnMigrations = []columnMigration{
	{2, "runs", "seed", "INTEGER NOT NULL DEFAULT 0"},
	{2, "runs", "duration_ms", "INTEGER NOT NULL DEFAULT 0"},
	{3, "runs", "added", "TEXT NOT NULL DEFAULT '[]'"},
}

// migrate brings an existing database up to CurrentSchemaVersion. Fresh
// databases already have every column and only get the version recorded.
func migrate(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "migrate")
	defer timer.Stop()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	from := schemaVersion(db)
	if from >= CurrentSchemaVersion {
		logging.StoreDebug("schema at version %d", from)
		return nil
	}

	applied := 0
	for _, m := range columnMigrations {
		if m.Version <= from || columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		applied++
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO schema_versions (version) VALUES (?)`, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	logging.Store("schema migrated from v%d to v%d (%d columns added)", from, CurrentSchemaVersion, applied)
	return nil
}

// schemaVersion returns the recorded version, or 1 for a database that has
// the runs table but never recorded one.
func schemaVersion(db *sql.DB) int {
	var version sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_versions`).Scan(&version); err != nil {
		logging.StoreDebug("schema version lookup failed: %v", err)
	}
	if version.Valid {
		return int(version.Int64)
	}
	return 1
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             interface{}
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

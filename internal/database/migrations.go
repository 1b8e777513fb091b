// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/tastedeck/internal/logging"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int    // Unique version number (monotonically increasing)
	Name        string // Human-readable migration name
	Description string
	SQL         string

	// AddsColumn names a table.column the migration creates. When the column
	// already exists the SQL is skipped and only the version is recorded.
	AddsColumn [2]string
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR(128) NOT NULL,
	description TEXT
)`

// getMigrations returns all versioned migrations in order.
// Migrations MUST be append-only.
func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "add_dish_category_tags",
			Description: "Add nullable JSON category_tags to dishes",
			SQL:         `ALTER TABLE dishes ADD COLUMN category_tags TEXT`,
			AddsColumn:  [2]string{"dishes", "category_tags"},
		},
	}
}

func (db *DB) getAppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// runVersionedMigrations executes migrations that have not been applied yet.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range getMigrations() {
		if applied[m.Version] {
			continue
		}

		skip := false
		if m.AddsColumn[0] != "" {
			skip, err = db.columnExists(ctx, m.AddsColumn[0], m.AddsColumn[1])
			if err != nil {
				return fmt.Errorf("failed to inspect %s.%s: %w", m.AddsColumn[0], m.AddsColumn[1], err)
			}
		}
		if !skip {
			if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
			}
		}

		if _, err := db.conn.ExecContext(ctx,
			db.dialect.rebind(`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`),
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) columnExists(ctx context.Context, table, column string) (bool, error) {
	var query string
	switch db.dialect.driverName {
	case "sqlite":
		query = `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
	default:
		query = `SELECT COUNT(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?`
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, db.dialect.rebind(query), table, column).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

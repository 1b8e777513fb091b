// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds DDL during startup.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the inventory tables. category_tags is added by
// migration v1, not here, so databases created before it gain the column
// the same way as new ones.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) getTableCreationQueries() []string {
	ts := db.dialect.timestampType
	return []string{
		`CREATE TABLE IF NOT EXISTS dish_images (
			id VARCHAR(36) PRIMARY KEY,
			provider VARCHAR(32) NOT NULL,
			model VARCHAR(128) NOT NULL,
			prompt TEXT NOT NULL,
			mime_type VARCHAR(64) NOT NULL,
			data_url TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS dishes (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(80) NOT NULL UNIQUE,
			subtitle VARCHAR(160) NOT NULL,
			signals TEXT NOT NULL,
			status VARCHAR(16) NOT NULL,
			source VARCHAR(32) NOT NULL,
			image_id VARCHAR(36) REFERENCES dish_images(id),
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS generation_jobs (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL,
			target_count INTEGER NOT NULL,
			produced_count INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			started_at ` + ts + ` NOT NULL,
			finished_at ` + ts + `
		)`,
	}
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS ix_dishes_status_created_at ON dishes(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS ix_generation_jobs_kind_created_at ON generation_jobs(kind, created_at)`,
	}
	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}

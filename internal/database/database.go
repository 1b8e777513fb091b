// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package database is the inventory store: dishes, their images and the
// generation job ledger.
//
// DuckDB is the default engine. Postgres (lib/pq) and SQLite
// (modernc.org/sqlite) are selected through DATABASE_URL; all SQL is written
// with '?' placeholders and rebound per dialect. The schema is created on
// open, followed by versioned migrations tracked in schema_migrations.
//
// Name uniqueness is enforced by the dishes.name UNIQUE constraint. Every
// dish insert runs in its own transaction with ON CONFLICT (name) DO NOTHING,
// so concurrent writers of the same name leave exactly one row.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/logging"
)

// defaultQueryTimeout bounds queries whose context carries no deadline.
const defaultQueryTimeout = 30 * time.Second

// DB wraps the SQL connection pool and provides inventory data access.
type DB struct {
	conn    *sql.DB
	dialect *dialect
}

// New opens the configured database, creates the schema and applies any
// pending migrations.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := dataSourceName(cfg, d)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	db := &DB{conn: conn, dialect: d}
	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("driver", d.name).Msg("Inventory store ready")
	return db, nil
}

// newWithConn wraps an existing pool without touching the schema.
func newWithConn(conn *sql.DB, driver string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, dialect: d}, nil
}

func dataSourceName(cfg *config.DatabaseConfig, d *dialect) (string, error) {
	switch d.name {
	case config.DriverPostgres:
		if cfg.URL == "" {
			return "", fmt.Errorf("postgres driver requires database.url")
		}
		return cfg.URL, nil
	case config.DriverSQLite:
		path := cfg.SQLiteDSN()
		if path == "" {
			return "", fmt.Errorf("sqlite driver requires database.url")
		}
		if err := ensureParentDir(path); err != nil {
			return "", err
		}
		return path, nil
	default:
		if err := ensureParentDir(cfg.Path); err != nil {
			return "", err
		}
		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		return fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, threads, cfg.MaxMemory), nil
	}
}

// ensureParentDir creates the directory holding a database file. In-memory
// and URI-style paths are left alone.
func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	// 0750 per gosec G301
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

func (db *DB) configureConnectionPool() {
	switch db.dialect.name {
	case config.DriverSQLite:
		// A single writer avoids SQLITE_BUSY on concurrent inserts.
		db.conn.SetMaxOpenConns(1)
	default:
		db.conn.SetMaxOpenConns(runtime.NumCPU())
		db.conn.SetMaxIdleConns(2)
	}
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// initialize creates tables, runs migrations, then creates indexes.
func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}
	return db.createIndexes()
}

// Driver returns the active dialect name.
func (db *DB) Driver() string {
	return db.dialect.name
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints DuckDB files and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.dialect.name == config.DriverDuckDB {
		ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

// ensureContext adds a 30-second timeout when ctx has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultQueryTimeout)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, defaultQueryTimeout)
	}
	return ctx, func() {}
}

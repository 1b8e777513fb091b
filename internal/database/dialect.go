// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tomtom215/tastedeck/internal/config"
)

// dialect captures the per-engine differences the store cares about.
type dialect struct {
	name          string
	driverName    string // database/sql driver name
	timestampType string
	numbered      bool // $1-style placeholders
}

var dialects = map[string]*dialect{
	config.DriverDuckDB:   {name: config.DriverDuckDB, driverName: "duckdb", timestampType: "TIMESTAMP"},
	config.DriverPostgres: {name: config.DriverPostgres, driverName: "postgres", timestampType: "TIMESTAMPTZ", numbered: true},
	config.DriverSQLite:   {name: config.DriverSQLite, driverName: "sqlite", timestampType: "DATETIME"},
}

func dialectFor(driver string) (*dialect, error) {
	if driver == "" {
		driver = config.DriverDuckDB
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// rebind rewrites '?' placeholders for engines that number them. Queries
// never contain literal question marks.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// inClause returns "?, ?, ?" for n values.
func inClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// isUniqueViolation reports whether err is a duplicate-key failure raised
// instead of ON CONFLICT handling, e.g. when two DuckDB transactions insert
// the same name concurrently.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "transaction conflict") ||
		strings.Contains(msg, "write-write conflict") ||
		strings.Contains(msg, "conflict on")
}

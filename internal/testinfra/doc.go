// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package testinfra starts throwaway Postgres and Redis containers for
// integration tests.
//
// Everything except this file is behind the integration build tag, so the
// default test run never touches Docker:
//
//	go test -tags integration ./internal/database/... ./internal/refill/...
//
// # Usage
//
//	func TestSomethingAgainstPostgres(t *testing.T) {
//	    testinfra.SkipIfShort(t)
//	    testinfra.SkipIfNoDocker(t)
//
//	    pg, err := testinfra.NewPostgresContainer(context.Background())
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.CleanupContainer(t, pg)
//
//	    db, err := database.New(&config.DatabaseConfig{
//	        Driver: config.DriverPostgres,
//	        URL:    pg.DSN,
//	    })
//	    // ...
//	}
//
// The first run pulls postgres:16-alpine and redis:7-alpine.
package testinfra

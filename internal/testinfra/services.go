// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPostgresImage matches the production Postgres major version.
	DefaultPostgresImage = "postgres:16-alpine"
	postgresPort         = "5432"
	postgresUser         = "tastedeck"
	postgresPassword     = "tastedeck"
	postgresDB           = "tastedeck"

	// DefaultRedisImage is used for the refill lease tests.
	DefaultRedisImage = "redis:7-alpine"
	redisPort         = "6379"
)

// PostgresContainer is a running Postgres with a DSN for database.New.
type PostgresContainer struct {
	testcontainers.Container
	DSN string
}

// RedisContainer is a running Redis with its host:port address.
type RedisContainer struct {
	testcontainers.Container
	Addr string
}

// NewPostgresContainer starts Postgres and waits until it accepts
// connections. The init process logs the ready line twice: once for the
// temporary bootstrap server and once for the real one.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultPostgresImage,
		ExposedPorts: []string{postgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(postgresPort+"/tcp"),
		).WithStartupTimeout(90 * time.Second),
	}

	container, hostPort, err := start(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("postgres container: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN: fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			postgresUser, postgresPassword, hostPort, postgresDB),
	}, nil
}

// NewRedisContainer starts Redis and waits for its listener.
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultRedisImage,
		ExposedPorts: []string{redisPort + "/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort(redisPort+"/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, hostPort, err := start(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("redis container: %w", err)
	}
	return &RedisContainer{Container: container, Addr: hostPort}, nil
}

// start runs req and resolves host:port of its single exposed port. The
// container is terminated when the endpoint lookup fails.
func start(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create container: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, "", fmt.Errorf("get container endpoint: %w", err)
	}

	return container, endpoint, nil
}

// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tastedeck/internal/models"
)

// CreateJob records a running generation job.
func (db *DB) CreateJob(ctx context.Context, kind string, target int) (job *models.GenerationJob, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("insert", "generation_jobs", time.Now(), &err)

	now := time.Now().UTC()
	job = &models.GenerationJob{
		ID:          uuid.New().String(),
		Kind:        kind,
		Status:      models.JobStatusRunning,
		TargetCount: target,
		CreatedAt:   now,
		StartedAt:   now,
	}

	_, err = db.conn.ExecContext(ctx, db.dialect.rebind(
		`INSERT INTO generation_jobs (id, kind, status, target_count, produced_count, error, created_at, started_at)
		 VALUES (?, ?, ?, ?, 0, '', ?, ?)`),
		job.ID, job.Kind, job.Status, job.TargetCount, job.CreatedAt, job.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s job: %w", kind, err)
	}
	return job, nil
}

// FinishJob moves a running job to status (done or failed). A job is
// finished at most once; finishing it again returns ErrJobNotRunning.
func (db *DB) FinishJob(ctx context.Context, id, status string, produced int, errText string) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("update", "generation_jobs", time.Now(), &err)

	res, err := db.conn.ExecContext(ctx, db.dialect.rebind(
		`UPDATE generation_jobs SET status = ?, produced_count = ?, error = ?, finished_at = ?
		 WHERE id = ? AND status = ?`),
		status, produced, errText, time.Now().UTC(), id, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, id)
	}
	return nil
}

// ListJobs returns the most recent jobs, newest first.
func (db *DB) ListJobs(ctx context.Context, limit int) (jobs []models.GenerationJob, err error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("select", "generation_jobs", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(
		`SELECT id, kind, status, target_count, produced_count, error, created_at, started_at, finished_at
		 FROM generation_jobs ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			j        models.GenerationJob
			finished sql.NullTime
		)
		if err = rows.Scan(&j.ID, &j.Kind, &j.Status, &j.TargetCount, &j.ProducedCount, &j.Error,
			&j.CreatedAt, &j.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
)

const dishColumns = `id, name, subtitle, signals, status, source, image_id, category_tags, created_at, updated_at`

// CountReady returns the number of dishes with status ready.
func (db *DB) CountReady(ctx context.Context) (n int, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("count", "dishes", time.Now(), &err)

	err = db.conn.QueryRowContext(ctx,
		db.dialect.rebind(`SELECT COUNT(*) FROM dishes WHERE status = ?`),
		models.DishStatusReady).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ready dishes: %w", err)
	}
	return n, nil
}

// ReadyDishes loads every ready dish, newest first.
func (db *DB) ReadyDishes(ctx context.Context) (dishes []models.Dish, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("select", "dishes", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx,
		db.dialect.rebind(`SELECT `+dishColumns+` FROM dishes WHERE status = ? ORDER BY created_at DESC`),
		models.DishStatusReady)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready dishes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, *d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ready dishes: %w", err)
	}
	return dishes, nil
}

// ReadyNames returns the names of all ready dishes.
func (db *DB) ReadyNames(ctx context.Context) (names []string, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("select", "dishes", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx,
		db.dialect.rebind(`SELECT name FROM dishes WHERE status = ?`),
		models.DishStatusReady)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dish name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ExistingNames returns which of names already exist in any status.
func (db *DB) ExistingNames(ctx context.Context, names []string) (existing map[string]struct{}, err error) {
	existing = make(map[string]struct{})
	if len(names) == 0 {
		return existing, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("select", "dishes", time.Now(), &err)

	query := `SELECT name FROM dishes WHERE name IN (` + inClause(len(names)) + `)`
	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), stringArgs(names)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dish name: %w", err)
		}
		existing[name] = struct{}{}
	}
	return existing, rows.Err()
}

// ImagesByID loads the images with the given ids in one IN query.
func (db *DB) ImagesByID(ctx context.Context, ids []string) (images map[string]*models.DishImage, err error) {
	images = make(map[string]*models.DishImage)
	if len(ids) == 0 {
		return images, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("select", "dish_images", time.Now(), &err)

	query := `SELECT id, provider, model, prompt, mime_type, data_url, created_at FROM dish_images WHERE id IN (` +
		inClause(len(ids)) + `)`
	rows, err := db.conn.QueryContext(ctx, db.dialect.rebind(query), stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dish images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.DishImage
		if err = rows.Scan(&img.ID, &img.Provider, &img.Model, &img.Prompt, &img.MimeType, &img.DataURL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dish image: %w", err)
		}
		images[img.ID] = &img
	}
	return images, rows.Err()
}

// InsertDishWithImage stores dish, and image when non-nil, in one
// transaction. It reports false without error when a dish with the same
// name already exists; the image insert is rolled back with it.
//
// Empty ID, status, source and timestamps are filled in. dish.ImageID is set
// to the stored image id.
func (db *DB) InsertDishWithImage(ctx context.Context, dish *models.Dish, image *models.DishImage) (created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer recordQuery("insert", "dishes", time.Now(), &err)

	now := time.Now().UTC()
	fillDishDefaults(dish, now)

	signals, err := json.Marshal(dish.Signals)
	if err != nil {
		return false, fmt.Errorf("failed to encode signals for %q: %w", dish.Name, err)
	}
	var tags any
	if len(dish.CategoryTags) > 0 {
		raw, err := json.Marshal(dish.CategoryTags)
		if err != nil {
			return false, fmt.Errorf("failed to encode category tags for %q: %w", dish.Name, err)
		}
		tags = string(raw)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	var imageID any
	if image != nil {
		if image.ID == "" {
			image.ID = uuid.New().String()
		}
		if image.CreatedAt.IsZero() {
			image.CreatedAt = now
		}
		if image.MimeType == "" {
			image.MimeType = "image/png"
		}
		_, err = tx.ExecContext(ctx, db.dialect.rebind(
			`INSERT INTO dish_images (id, provider, model, prompt, mime_type, data_url, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			image.ID, image.Provider, image.Model, image.Prompt, image.MimeType, image.DataURL, image.CreatedAt)
		if err != nil {
			return false, fmt.Errorf("failed to insert image for %q: %w", dish.Name, err)
		}
		imageID = image.ID
	}

	res, err := tx.ExecContext(ctx, db.dialect.rebind(
		`INSERT INTO dishes (id, name, subtitle, signals, status, source, image_id, category_tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`),
		dish.ID, dish.Name, dish.Subtitle, string(signals), dish.Status, dish.Source, imageID, tags, dish.CreatedAt, dish.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert dish %q: %w", dish.Name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for %q: %w", dish.Name, err)
	}
	if affected == 0 {
		return false, nil
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit dish %q: %w", dish.Name, err)
	}

	if image != nil {
		id := image.ID
		dish.ImageID = &id
	}
	return true, nil
}

func fillDishDefaults(dish *models.Dish, now time.Time) {
	if dish.ID == "" {
		dish.ID = uuid.New().String()
	}
	if dish.Status == "" {
		dish.Status = models.DishStatusReady
	}
	if dish.Source == "" {
		dish.Source = models.SourceGemini
	}
	if dish.CreatedAt.IsZero() {
		dish.CreatedAt = now
	}
	if dish.UpdatedAt.IsZero() {
		dish.UpdatedAt = now
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDish(row rowScanner) (*models.Dish, error) {
	var (
		d       models.Dish
		signals string
		imageID sql.NullString
		tags    sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Subtitle, &signals, &d.Status, &d.Source, &imageID, &tags, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan dish: %w", err)
	}

	// Rows with unreadable signals are served with none rather than failing
	// the whole read.
	if err := json.Unmarshal([]byte(signals), &d.Signals); err != nil || d.Signals == nil {
		d.Signals = map[string]float64{}
	}
	if imageID.Valid && imageID.String != "" {
		id := imageID.String
		d.ImageID = &id
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &d.CategoryTags)
	}
	return &d, nil
}

func recordQuery(operation, table string, start time.Time, err *error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), *err)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bayanihan-data/povassess/types"
)

// AreaRepository handles persistence for areas.
type AreaRepository struct {
	db *sql.DB
}

func NewAreaRepository(db *sql.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

const areaColumns = `id, name, lng, lat, deleted, created_at, updated_at`

func scanArea(row interface{ Scan(...any) error }) (types.Area, error) {
	var area types.Area
	var lng, lat float64
	if err := row.Scan(
		&area.ID,
		&area.Name,
		&lng,
		&lat,
		&area.Deleted,
		&area.CreatedAt,
		&area.UpdatedAt,
	); err != nil {
		return types.Area{}, err
	}
	area.Location = types.NewGeoPoint(lng, lat)
	return area, nil
}

// List returns active areas, or soft-deleted ones when deleted is true.
func (r *AreaRepository) List(ctx context.Context, deleted bool) ([]types.Area, error) {
	const query = `
		SELECT ` + areaColumns + `
		FROM areas
		WHERE deleted = $1
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, deleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	areas := make([]types.Area, 0)
	for rows.Next() {
		area, err := scanArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return areas, nil
}

// Get returns an area by id regardless of its deleted flag.
func (r *AreaRepository) Get(ctx context.Context, id int) (types.Area, error) {
	const query = `
		SELECT ` + areaColumns + `
		FROM areas
		WHERE id = $1`
	area, err := scanArea(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Area{}, ErrNotFound
		}
		return types.Area{}, err
	}
	return area, nil
}

// FindByName returns the active area whose name matches case-insensitively.
func (r *AreaRepository) FindByName(ctx context.Context, name string) (types.Area, error) {
	const query = `
		SELECT ` + areaColumns + `
		FROM areas
		WHERE LOWER(name) = LOWER($1) AND NOT deleted`
	area, err := scanArea(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Area{}, ErrNotFound
		}
		return types.Area{}, err
	}
	return area, nil
}

func (r *AreaRepository) Create(ctx context.Context, area types.Area) (types.Area, error) {
	now := time.Now()
	area.CreatedAt = now
	area.UpdatedAt = now
	area.Deleted = false
	if area.Location.Type == "" {
		area.Location = types.NewGeoPoint(0, 0)
	}

	const query = `
		INSERT INTO areas (name, lng, lat, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		area.Name,
		area.Location.Coordinates[0],
		area.Location.Coordinates[1],
		area.CreatedAt,
		area.UpdatedAt,
	).Scan(&area.ID); err != nil {
		return types.Area{}, mapError(err)
	}
	return area, nil
}

// Update rewrites an active area's name and location.
func (r *AreaRepository) Update(ctx context.Context, area types.Area) (types.Area, error) {
	area.UpdatedAt = time.Now()

	const query = `
		UPDATE areas
		SET name = $1,
			lng = $2,
			lat = $3,
			updated_at = $4
		WHERE id = $5 AND NOT deleted
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		area.Name,
		area.Location.Coordinates[0],
		area.Location.Coordinates[1],
		area.UpdatedAt,
		area.ID,
	).Scan(&area.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Area{}, ErrNotFound
		}
		return types.Area{}, mapError(err)
	}
	return area, nil
}

// SetDeleted flips the deleted flag. It returns ErrNotFound when the area is
// missing or already in the requested state.
func (r *AreaRepository) SetDeleted(ctx context.Context, id int, deleted bool) error {
	const query = `
		UPDATE areas
		SET deleted = $1, updated_at = $2
		WHERE id = $3 AND deleted = $4`
	result, err := r.db.ExecContext(ctx, query, deleted, time.Now(), id, !deleted)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

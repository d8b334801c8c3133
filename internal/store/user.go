package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bayanihan-data/povassess/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, role, area_id, password_hash, deleted, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	var areaID sql.NullInt64
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&areaID,
		&user.PasswordHash,
		&user.Deleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	if areaID.Valid {
		id := int(areaID.Int64)
		user.AreaID = &id
	}
	return user, nil
}

func nullableID(id *int) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// GetByEmail looks a user up by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// List returns active users, or soft-deleted ones when deleted is true.
func (r *UserRepository) List(ctx context.Context, deleted bool) ([]types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE deleted = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, deleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Deleted = false

	const query = `
		INSERT INTO users (name, email, role, area_id, password_hash, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Role,
		nullableID(user.AreaID),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// Update rewrites an active user.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			role = $3,
			area_id = $4,
			password_hash = $5,
			updated_at = $6
		WHERE id = $7 AND NOT deleted`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Role,
		nullableID(user.AreaID),
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// SetDeleted flips the deleted flag. It returns ErrNotFound when the user is
// missing or already in the requested state.
func (r *UserRepository) SetDeleted(ctx context.Context, id int, deleted bool) error {
	const query = `
		UPDATE users
		SET deleted = $1, updated_at = $2
		WHERE id = $3 AND deleted = $4`
	result, err := r.db.ExecContext(ctx, query, deleted, time.Now(), id, !deleted)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// AssignAreaToUnassignedWorkers sets areaID on every active worker without
// an area and returns how many were updated.
func (r *UserRepository) AssignAreaToUnassignedWorkers(ctx context.Context, areaID int) (int, error) {
	const query = `
		UPDATE users
		SET area_id = $1, updated_at = $2
		WHERE role = 'worker' AND area_id IS NULL AND NOT deleted`
	result, err := r.db.ExecContext(ctx, query, areaID, time.Now())
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

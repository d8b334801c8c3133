package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bayanihan-data/povassess/types"
)

// ProgramRepository handles persistence for programs.
type ProgramRepository struct {
	db *sql.DB
}

func NewProgramRepository(db *sql.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = `id, name, description, start_date, end_date, created_by, created_at, updated_at`

func scanProgram(row interface{ Scan(...any) error }) (types.Program, error) {
	var p types.Program
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.StartDate,
		&p.EndDate,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return types.Program{}, err
	}
	return p, nil
}

// List returns programs, limited to one creator when createdBy is non-nil.
func (r *ProgramRepository) List(ctx context.Context, createdBy *int) ([]types.Program, error) {
	c := &conditions{}
	if createdBy != nil {
		c.add("created_by = ?", *createdBy)
	}
	query := `SELECT ` + programColumns + ` FROM programs` + c.where() + ` ORDER BY start_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programs := make([]types.Program, 0)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *ProgramRepository) Get(ctx context.Context, id int) (types.Program, error) {
	const query = `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	p, err := scanProgram(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Program{}, ErrNotFound
		}
		return types.Program{}, err
	}
	return p, nil
}

func (r *ProgramRepository) Create(ctx context.Context, p types.Program) (types.Program, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	const query = `
		INSERT INTO programs (name, description, start_date, end_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		p.Name,
		p.Description,
		p.StartDate,
		p.EndDate,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID); err != nil {
		return types.Program{}, mapError(err)
	}
	return p, nil
}

func (r *ProgramRepository) Update(ctx context.Context, p types.Program) (types.Program, error) {
	p.UpdatedAt = time.Now()

	const query = `
		UPDATE programs
		SET name = $1,
			description = $2,
			start_date = $3,
			end_date = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		p.Name,
		p.Description,
		p.StartDate,
		p.EndDate,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return types.Program{}, mapError(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Program{}, err
	}
	return p, nil
}

func (r *ProgramRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

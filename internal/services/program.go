package services

import (
	"context"
	"strings"
	"time"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/types"
)

const programConflict = "a program with this name already exists"

// ProgramRepository defines persistence operations for programs.
type ProgramRepository interface {
	List(ctx context.Context, createdBy *int) ([]types.Program, error)
	Get(ctx context.Context, id int) (types.Program, error)
	Create(ctx context.Context, program types.Program) (types.Program, error)
	Update(ctx context.Context, program types.Program) (types.Program, error)
	Delete(ctx context.Context, id int) error
}

// ProgramInput is the writable part of a program.
type ProgramInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// ProgramService encapsulates assistance program use-cases.
type ProgramService struct {
	repo ProgramRepository
}

func NewProgramService(repo ProgramRepository) *ProgramService {
	return &ProgramService{repo: repo}
}

// List returns the programs the actor may see. NGO staff only see their own.
func (s *ProgramService) List(ctx context.Context, actor policy.Actor) ([]types.Program, error) {
	owner, err := policy.ProgramOwner(actor)
	if err != nil {
		return nil, err
	}
	programs, err := s.repo.List(ctx, owner)
	if err != nil {
		return nil, storeError(err, "program", programConflict)
	}
	return programs, nil
}

func (s *ProgramService) Get(ctx context.Context, actor policy.Actor, id int) (types.Program, error) {
	program, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Program{}, storeError(err, "program", programConflict)
	}
	if err := policy.CanReadProgram(actor, program); err != nil {
		return types.Program{}, err
	}
	return program, nil
}

func (s *ProgramService) Create(ctx context.Context, actor policy.Actor, in ProgramInput) (types.Program, error) {
	if err := policy.CanCreatePrograms(actor); err != nil {
		return types.Program{}, err
	}
	program, err := buildProgram(in)
	if err != nil {
		return types.Program{}, err
	}
	program.CreatedBy = actor.ID
	created, err := s.repo.Create(ctx, program)
	if err != nil {
		return types.Program{}, storeError(err, "program", programConflict)
	}
	return created, nil
}

func (s *ProgramService) Update(ctx context.Context, actor policy.Actor, id int, in ProgramInput) (types.Program, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Program{}, storeError(err, "program", programConflict)
	}
	if err := policy.CanUpdateProgram(actor, existing); err != nil {
		return types.Program{}, err
	}
	program, err := buildProgram(in)
	if err != nil {
		return types.Program{}, err
	}
	program.ID = existing.ID
	program.CreatedBy = existing.CreatedBy
	program.CreatedAt = existing.CreatedAt
	updated, err := s.repo.Update(ctx, program)
	if err != nil {
		return types.Program{}, storeError(err, "program", programConflict)
	}
	return updated, nil
}

// Delete removes a program and, by cascade, its referrals.
func (s *ProgramService) Delete(ctx context.Context, actor policy.Actor, id int) error {
	if err := policy.CanDeleteProgram(actor); err != nil {
		return err
	}
	return storeError(s.repo.Delete(ctx, id), "program", programConflict)
}

func buildProgram(in ProgramInput) (types.Program, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.Program{}, apperr.Validation("name", "program name is required")
	}
	if in.StartDate.IsZero() {
		return types.Program{}, apperr.Validation("start_date", "start date is required")
	}
	if in.EndDate.IsZero() {
		return types.Program{}, apperr.Validation("end_date", "end date is required")
	}
	if in.EndDate.Before(in.StartDate) {
		return types.Program{}, apperr.Validation("end_date", "end date must not be before start date")
	}
	return types.Program{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}, nil
}

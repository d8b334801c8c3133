package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayanihan-data/povassess/internal/apperr"
)

func programInput(name string) ProgramInput {
	return ProgramInput{
		Name:        name,
		Description: "Conditional cash transfer",
		StartDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestProgramOwnershipScoping(t *testing.T) {
	programs := newFakePrograms()
	svc := NewProgramService(programs)
	ctx := context.Background()

	adminProgram, err := svc.Create(ctx, adminActor, programInput("4Ps"))
	require.NoError(t, err)
	ngoProgram, err := svc.Create(ctx, ngoActor, programInput("Livelihood"))
	require.NoError(t, err)
	assert.Equal(t, ngoActor.ID, ngoProgram.CreatedBy)

	visible, err := svc.List(ctx, ngoActor)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, ngoProgram.ID, visible[0].ID)

	all, err := svc.List(ctx, workerActor(7, 1))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Get(ctx, ngoActor, adminProgram.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	_, err = svc.Get(ctx, workerActor(7, 1), adminProgram.ID)
	assert.NoError(t, err)
}

func TestProgramCreateAndUpdateRights(t *testing.T) {
	programs := newFakePrograms()
	svc := NewProgramService(programs)
	ctx := context.Background()

	_, err := svc.Create(ctx, workerActor(7, 1), programInput("Feeding"))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	adminProgram, err := svc.Create(ctx, adminActor, programInput("4Ps"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, ngoActor, adminProgram.ID, programInput("4Ps Plus"))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	updated, err := svc.Update(ctx, adminActor, adminProgram.ID, programInput("4Ps Plus"))
	require.NoError(t, err)
	assert.Equal(t, "4Ps Plus", updated.Name)
	assert.Equal(t, adminActor.ID, updated.CreatedBy)

	_, err = svc.Create(ctx, ngoActor, programInput("4Ps Plus"))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestProgramValidation(t *testing.T) {
	svc := NewProgramService(newFakePrograms())
	ctx := context.Background()

	in := programInput(" ")
	_, err := svc.Create(ctx, adminActor, in)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "name", appErr.Field)

	in = programInput("4Ps")
	in.EndDate = in.StartDate.AddDate(0, 0, -1)
	_, err = svc.Create(ctx, adminActor, in)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "end_date", appErr.Field)

	in = programInput("4Ps")
	in.StartDate = time.Time{}
	_, err = svc.Create(ctx, adminActor, in)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "start_date", appErr.Field)
}

func TestProgramDeleteOpenToAnyRole(t *testing.T) {
	svc := NewProgramService(newFakePrograms())
	ctx := context.Background()
	p, err := svc.Create(ctx, adminActor, programInput("4Ps"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, workerActor(7, 1), p.ID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.Delete(ctx, adminActor, p.ID)))
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/types"
)

type userFixture struct {
	areas *fakeAreas
	users *fakeUsers
	svc   *UserService
}

func newUserFixture() userFixture {
	areas := newFakeAreas("Kapitolyo", "Pinagbuhatan")
	users := newFakeUsers()
	users.nextID = 100
	svc := NewUserService(users, areas, nil)
	svc.bcryptCost = bcrypt.MinCost
	return userFixture{areas: areas, users: users, svc: svc}
}

func (fx userFixture) bootstrap(t *testing.T, in UserInput) types.User {
	t.Helper()
	user, err := fx.svc.Bootstrap(context.Background(), in)
	require.NoError(t, err)
	return user
}

func TestBootstrapAndAuthenticate(t *testing.T) {
	fx := newUserFixture()
	created := fx.bootstrap(t, UserInput{Name: "Ada", Email: " Ada@Example.com ", Password: "correct horse", Role: types.RoleAdmin})
	assert.Equal(t, "ada@example.com", created.Email)
	assert.NotEqual(t, "correct horse", created.PasswordHash)

	user, err := fx.svc.Authenticate(context.Background(), "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = fx.svc.Authenticate(context.Background(), "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = fx.svc.Authenticate(context.Background(), "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, fx.users.SetDeleted(context.Background(), created.ID, true))
	_, err = fx.svc.Authenticate(context.Background(), "ada@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBootstrapValidation(t *testing.T) {
	fx := newUserFixture()
	ctx := context.Background()

	_, err := fx.svc.Bootstrap(ctx, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: types.RoleWorker})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "area_id", appErr.Field)

	_, err = fx.svc.Bootstrap(ctx, UserInput{Name: "W", Email: "w@example.com", Password: "short", Role: types.RoleAdmin})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "password", appErr.Field)

	_, err = fx.svc.Bootstrap(ctx, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: "root"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "role", appErr.Field)

	_, err = fx.svc.Bootstrap(ctx, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: types.RoleWorker, AreaID: intPtr(42)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	fx.bootstrap(t, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: types.RoleWorker, AreaID: intPtr(1)})
	_, err = fx.svc.Bootstrap(ctx, UserInput{Name: "W2", Email: "W@example.com", Password: "password1", Role: types.RoleAdmin})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateRequiresAdmin(t *testing.T) {
	fx := newUserFixture()
	in := UserInput{Name: "N", Email: "n@example.com", Password: "password1", Role: types.RoleNGOStaff}

	_, err := fx.svc.Create(context.Background(), ngoActor, in)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	created, err := fx.svc.Create(context.Background(), adminActor, in)
	require.NoError(t, err)
	assert.Equal(t, types.RoleNGOStaff, created.Role)
}

func TestWorkerAreaCannotBeCleared(t *testing.T) {
	fx := newUserFixture()
	worker := fx.bootstrap(t, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: types.RoleWorker, AreaID: intPtr(1)})

	_, err := fx.svc.Update(context.Background(), adminActor, worker.ID, UserUpdate{
		Name: "W", Email: "w@example.com", Role: types.RoleWorker, AreaID: nil,
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "area_id", appErr.Field)

	stored, err := fx.users.GetByID(context.Background(), worker.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AreaID)
	assert.Equal(t, 1, *stored.AreaID)
}

func TestAdminAreaCanBeCleared(t *testing.T) {
	fx := newUserFixture()
	admin := fx.bootstrap(t, UserInput{Name: "A", Email: "a@example.com", Password: "password1", Role: types.RoleAdmin, AreaID: intPtr(2)})

	updated, err := fx.svc.Update(context.Background(), adminActor, admin.ID, UserUpdate{
		Name: "A", Email: "a@example.com", Role: types.RoleAdmin, AreaID: nil,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AreaID)
	assert.Nil(t, updated.Area)
}

func TestSelfUpdateCannotChangeRoleOrArea(t *testing.T) {
	fx := newUserFixture()
	worker := fx.bootstrap(t, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: types.RoleWorker, AreaID: intPtr(1)})
	self := workerActor(worker.ID, 1)

	_, err := fx.svc.Update(context.Background(), self, worker.ID, UserUpdate{
		Name: "W", Email: "w@example.com", Role: types.RoleAdmin, AreaID: intPtr(1),
	})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = fx.svc.Update(context.Background(), self, worker.ID, UserUpdate{
		Name: "W", Email: "w@example.com", Role: types.RoleWorker, AreaID: intPtr(2),
	})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	updated, err := fx.svc.Update(context.Background(), self, worker.ID, UserUpdate{
		Name: "Wilma", Email: "w@example.com", Role: types.RoleWorker, AreaID: intPtr(1), Password: "new password",
	})
	require.NoError(t, err)
	assert.Equal(t, "Wilma", updated.Name)
	require.NotNil(t, updated.Area)
	assert.Equal(t, "Kapitolyo", updated.Area.Name)

	_, err = fx.svc.Authenticate(context.Background(), "w@example.com", "new password")
	assert.NoError(t, err)

	_, err = fx.svc.Update(context.Background(), workerActor(99, 1), worker.ID, UserUpdate{
		Name: "X", Email: "w@example.com", Role: types.RoleWorker, AreaID: intPtr(1),
	})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestGetUserSelfOrAdmin(t *testing.T) {
	fx := newUserFixture()
	ngo := fx.bootstrap(t, UserInput{Name: "N", Email: "n@example.com", Password: "password1", Role: types.RoleNGOStaff})

	_, err := fx.svc.Get(context.Background(), workerActor(50, 1), ngo.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	got, err := fx.svc.Get(context.Background(), adminActor, ngo.ID)
	require.NoError(t, err)
	assert.Equal(t, ngo.Email, got.Email)
}

func TestUserDeleteAndRecover(t *testing.T) {
	fx := newUserFixture()
	ctx := context.Background()
	ngo := fx.bootstrap(t, UserInput{Name: "N", Email: "n@example.com", Password: "password1", Role: types.RoleNGOStaff})

	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(fx.svc.Delete(ctx, ngoActor, ngo.ID)))
	require.NoError(t, fx.svc.Delete(ctx, adminActor, ngo.ID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(fx.svc.Delete(ctx, adminActor, ngo.ID)))

	deleted, err := fx.svc.List(ctx, adminActor, true)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	_, err = fx.svc.ResolveActor(ctx, ngo.ID, types.RoleNGOStaff)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, fx.svc.Recover(ctx, adminActor, ngo.ID))
	actor, err := fx.svc.ResolveActor(ctx, ngo.ID, types.RoleNGOStaff)
	require.NoError(t, err)
	assert.Equal(t, ngo.ID, actor.ID)

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(fx.svc.Delete(ctx, adminActor, adminActor.ID)))
}

func TestResolveActorTakesAreaFromRecord(t *testing.T) {
	fx := newUserFixture()
	worker := fx.bootstrap(t, UserInput{Name: "W", Email: "w@example.com", Password: "password1", Role: types.RoleWorker, AreaID: intPtr(2)})

	actor, err := fx.svc.ResolveActor(context.Background(), worker.ID, types.RoleWorker)
	require.NoError(t, err)
	require.NotNil(t, actor.AreaID)
	assert.Equal(t, 2, *actor.AreaID)
	assert.Equal(t, types.RoleWorker, actor.Role)

	_, err = fx.svc.ResolveActor(context.Background(), 999, types.RoleAdmin)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAssignAreaToUnassignedWorkers(t *testing.T) {
	fx := newUserFixture()
	ctx := context.Background()
	fx.users.items[10] = types.User{ID: 10, Name: "W1", Email: "w1@example.com", Role: types.RoleWorker}
	fx.users.items[11] = types.User{ID: 11, Name: "W2", Email: "w2@example.com", Role: types.RoleWorker, AreaID: intPtr(1)}
	fx.users.items[12] = types.User{ID: 12, Name: "N", Email: "n@example.com", Role: types.RoleNGOStaff}

	_, err := fx.svc.AssignAreaToUnassignedWorkers(ctx, ngoActor, 2)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = fx.svc.AssignAreaToUnassignedWorkers(ctx, adminActor, 77)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	updated, err := fx.svc.AssignAreaToUnassignedWorkers(ctx, adminActor, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 2, *fx.users.items[10].AreaID)
	assert.Equal(t, 1, *fx.users.items[11].AreaID)
	assert.Nil(t, fx.users.items[12].AreaID)
}

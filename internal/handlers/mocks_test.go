package handlers

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/report"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

// fakeAuth authenticates against a fixed set of accounts with one shared
// password.
type fakeAuth struct {
	users    map[int]types.User
	password string
}

func newFakeAuth(users ...types.User) *fakeAuth {
	f := &fakeAuth{users: map[int]types.User{}, password: "correct-horse"}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeAuth) Authenticate(_ context.Context, email, password string) (types.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) && !u.Deleted && password == f.password {
			return u, nil
		}
	}
	return types.User{}, services.ErrInvalidCredentials
}

func (f *fakeAuth) ResolveActor(_ context.Context, userID int, role types.Role) (policy.Actor, error) {
	u, ok := f.users[userID]
	if !ok || u.Deleted {
		return policy.Actor{}, apperr.NotFound("user")
	}
	return policy.Actor{ID: u.ID, Role: role, AreaID: u.AreaID}, nil
}

func (f *fakeAuth) Get(_ context.Context, actor policy.Actor, id int) (types.User, error) {
	if err := policy.CanViewUser(actor, id); err != nil {
		return types.User{}, err
	}
	u, ok := f.users[id]
	if !ok {
		return types.User{}, apperr.NotFound("user")
	}
	return u, nil
}

type mockHouseholds struct {
	mock.Mock
}

func (m *mockHouseholds) List(ctx context.Context, actor policy.Actor, q services.HouseholdQuery) (services.HouseholdPage, error) {
	args := m.Called(ctx, actor, q)
	return args.Get(0).(services.HouseholdPage), args.Error(1)
}

func (m *mockHouseholds) ListDeleted(ctx context.Context, actor policy.Actor, q services.HouseholdQuery) (services.HouseholdPage, error) {
	args := m.Called(ctx, actor, q)
	return args.Get(0).(services.HouseholdPage), args.Error(1)
}

func (m *mockHouseholds) Get(ctx context.Context, actor policy.Actor, id int) (types.Household, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(types.Household), args.Error(1)
}

func (m *mockHouseholds) Create(ctx context.Context, actor policy.Actor, h types.Household) (types.Household, error) {
	args := m.Called(ctx, actor, h)
	return args.Get(0).(types.Household), args.Error(1)
}

func (m *mockHouseholds) Update(ctx context.Context, actor policy.Actor, id int, h types.Household) (types.Household, error) {
	args := m.Called(ctx, actor, id, h)
	return args.Get(0).(types.Household), args.Error(1)
}

func (m *mockHouseholds) Delete(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockHouseholds) Recover(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockHouseholds) Purge(ctx context.Context, actor policy.Actor) (int, error) {
	args := m.Called(ctx, actor)
	return args.Int(0), args.Error(1)
}

type mockImporter struct {
	mock.Mock
}

func (m *mockImporter) Import(ctx context.Context, actor policy.Actor, filename string, data []byte) (services.ImportResult, error) {
	args := m.Called(ctx, actor, filename, data)
	return args.Get(0).(services.ImportResult), args.Error(1)
}

type mockAreas struct {
	mock.Mock
}

func (m *mockAreas) List(ctx context.Context, actor policy.Actor, deleted bool) ([]types.Area, error) {
	args := m.Called(ctx, actor, deleted)
	return args.Get(0).([]types.Area), args.Error(1)
}

func (m *mockAreas) Get(ctx context.Context, actor policy.Actor, id int) (types.Area, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(types.Area), args.Error(1)
}

func (m *mockAreas) Create(ctx context.Context, actor policy.Actor, in services.AreaInput) (types.Area, error) {
	args := m.Called(ctx, actor, in)
	return args.Get(0).(types.Area), args.Error(1)
}

func (m *mockAreas) Update(ctx context.Context, actor policy.Actor, id int, in services.AreaInput) (types.Area, error) {
	args := m.Called(ctx, actor, id, in)
	return args.Get(0).(types.Area), args.Error(1)
}

func (m *mockAreas) Delete(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockAreas) Recover(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockPrograms struct {
	mock.Mock
}

func (m *mockPrograms) List(ctx context.Context, actor policy.Actor) ([]types.Program, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).([]types.Program), args.Error(1)
}

func (m *mockPrograms) Get(ctx context.Context, actor policy.Actor, id int) (types.Program, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(types.Program), args.Error(1)
}

func (m *mockPrograms) Create(ctx context.Context, actor policy.Actor, in services.ProgramInput) (types.Program, error) {
	args := m.Called(ctx, actor, in)
	return args.Get(0).(types.Program), args.Error(1)
}

func (m *mockPrograms) Update(ctx context.Context, actor policy.Actor, id int, in services.ProgramInput) (types.Program, error) {
	args := m.Called(ctx, actor, id, in)
	return args.Get(0).(types.Program), args.Error(1)
}

func (m *mockPrograms) Delete(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockReferrals struct {
	mock.Mock
}

func (m *mockReferrals) List(ctx context.Context, actor policy.Actor, status types.ReferralStatus) ([]types.Referral, error) {
	args := m.Called(ctx, actor, status)
	return args.Get(0).([]types.Referral), args.Error(1)
}

func (m *mockReferrals) Get(ctx context.Context, actor policy.Actor, id int) (types.Referral, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(types.Referral), args.Error(1)
}

func (m *mockReferrals) Create(ctx context.Context, actor policy.Actor, in services.ReferralInput) (types.Referral, error) {
	args := m.Called(ctx, actor, in)
	return args.Get(0).(types.Referral), args.Error(1)
}

func (m *mockReferrals) UpdateStatus(ctx context.Context, actor policy.Actor, id int, status types.ReferralStatus, notes *string) (types.Referral, error) {
	args := m.Called(ctx, actor, id, status, notes)
	return args.Get(0).(types.Referral), args.Error(1)
}

func (m *mockReferrals) Delete(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) List(ctx context.Context, actor policy.Actor, deleted bool) ([]types.User, error) {
	args := m.Called(ctx, actor, deleted)
	return args.Get(0).([]types.User), args.Error(1)
}

func (m *mockUsers) Get(ctx context.Context, actor policy.Actor, id int) (types.User, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUsers) Create(ctx context.Context, actor policy.Actor, in services.UserInput) (types.User, error) {
	args := m.Called(ctx, actor, in)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUsers) Update(ctx context.Context, actor policy.Actor, id int, in services.UserUpdate) (types.User, error) {
	args := m.Called(ctx, actor, id, in)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUsers) Delete(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockUsers) Recover(ctx context.Context, actor policy.Actor, id int) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockUsers) AssignAreaToUnassignedWorkers(ctx context.Context, actor policy.Actor, areaID int) (int, error) {
	args := m.Called(ctx, actor, areaID)
	return args.Int(0), args.Error(1)
}

type mockReports struct {
	mock.Mock
}

func (m *mockReports) Summary(ctx context.Context, actor policy.Actor) (types.Report, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(types.Report), args.Error(1)
}

func (m *mockReports) Export(ctx context.Context, actor policy.Actor, format report.Format) (services.Export, error) {
	args := m.Called(ctx, actor, format)
	return args.Get(0).(services.Export), args.Error(1)
}

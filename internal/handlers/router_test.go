package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/bayanihan-data/povassess/internal/metrics"
	"github.com/bayanihan-data/povassess/internal/session"
	"github.com/bayanihan-data/povassess/types"
)

const testSecret = "test-secret"

var (
	adminUser   = types.User{ID: 1, Name: "Admin", Email: "admin@example.org", Role: types.RoleAdmin}
	ngoUser     = types.User{ID: 2, Name: "Staff", Email: "staff@example.org", Role: types.RoleNGOStaff}
	workerUser  = types.User{ID: 3, Name: "Worker", Email: "worker@example.org", Role: types.RoleWorker, AreaID: intPtr(2)}
	deletedUser = types.User{ID: 9, Name: "Gone", Email: "gone@example.org", Role: types.RoleAdmin, Deleted: true}
)

func intPtr(v int) *int { return &v }

type testAPI struct {
	router     http.Handler
	auth       *fakeAuth
	revoked    *session.MemoryList
	households *mockHouseholds
	importer   *mockImporter
	areas      *mockAreas
	programs   *mockPrograms
	referrals  *mockReferrals
	users      *mockUsers
	reports    *mockReports
}

func newTestAPI(t *testing.T, maxImportBytes int64) *testAPI {
	t.Helper()
	api := &testAPI{
		auth:       newFakeAuth(adminUser, ngoUser, workerUser, deletedUser),
		revoked:    session.NewMemoryList(),
		households: &mockHouseholds{},
		importer:   &mockImporter{},
		areas:      &mockAreas{},
		programs:   &mockPrograms{},
		referrals:  &mockReferrals{},
		users:      &mockUsers{},
		reports:    &mockReports{},
	}

	reg := prometheus.NewRegistry()
	api.router = NewRouter(Routes{
		Auth:           NewAuthHandler(api.auth, api.revoked, testSecret, time.Hour, nil),
		Households:     NewHouseholdHandler(api.households, api.importer, maxImportBytes, nil),
		Areas:          NewAreaHandler(api.areas, nil),
		Programs:       NewProgramHandler(api.programs, nil),
		Referrals:      NewReferralHandler(api.referrals, nil),
		Users:          NewUserHandler(api.users, nil),
		Reports:        NewReportHandler(api.reports, nil),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Metrics:        metrics.New(reg),
	})

	t.Cleanup(func() {
		api.households.AssertExpectations(t)
		api.importer.AssertExpectations(t)
		api.areas.AssertExpectations(t)
		api.programs.AssertExpectations(t)
		api.referrals.AssertExpectations(t)
		api.users.AssertExpectations(t)
		api.reports.AssertExpectations(t)
	})
	return api
}

func (api *testAPI) token(t *testing.T, u types.User) string {
	t.Helper()
	token, _, err := issueToken(u.ID, u.Role, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

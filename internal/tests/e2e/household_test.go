//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/config"
	"github.com/bayanihan-data/povassess/internal/db"
	"github.com/bayanihan-data/povassess/internal/server"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

const (
	serverPort    = 18080
	adminPassword = "testpass123!"
)

var adminEmail = fmt.Sprintf("admin_%d@example.org", time.Now().UnixNano())

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := bootstrapAdmin(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

type client struct {
	baseURL string
	token   string
}

func (c client) do(t *testing.T, method, path string, body any, want int, out any) {
	t.Helper()

	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.send(t, req, want, out)
}

func (c client) upload(t *testing.T, path, filename, content string, want int, out any) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.send(t, req, want, out)
}

func (c client) send(t *testing.T, req *http.Request, want int, out any) {
	t.Helper()

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equalf(t, want, resp.StatusCode, "%s %s: %s", req.Method, req.URL.Path, strings.TrimSpace(string(data)))
	if out != nil {
		if raw, ok := out.(*[]byte); ok {
			*raw = data
			return
		}
		require.NoError(t, json.Unmarshal(data, out))
	}
}

func login(t *testing.T, baseURL string) client {
	t.Helper()

	c := client{baseURL: baseURL}
	var auth struct {
		Token string `json:"token"`
	}
	c.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}, http.StatusOK, &auth)
	require.NotEmpty(t, auth.Token)
	c.token = auth.Token
	return c
}

func TestHouseholdLifecycle(t *testing.T) {
	c := login(t, fmt.Sprintf("http://localhost:%d", serverPort))

	var area types.Area
	c.do(t, http.MethodPost, "/areas", map[string]any{"name": "Kapitolyo"}, http.StatusCreated, &area)
	require.NotZero(t, area.ID)

	var created types.Household
	c.do(t, http.MethodPost, "/households", map[string]any{
		"head_name":             "Maria Santos",
		"address":               "12 Mabini St",
		"area_id":               area.ID,
		"family_income":         4000,
		"employment_status":     "Unemployed",
		"education_level":       "None",
		"housing_type":          "Informal Settler",
		"access_to_services":    map[string]bool{"water": false, "electricity": true, "sanitation": true},
		"government_assistance": []string{},
	}, http.StatusCreated, &created)
	assert.Equal(t, 100, created.PovertyScore)
	assert.Equal(t, types.RiskHigh, created.RiskLevel)

	var fetched types.Household
	c.do(t, http.MethodGet, fmt.Sprintf("/households/%d", created.ID), nil, http.StatusOK, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	require.NotNil(t, fetched.Area)
	assert.Equal(t, "Kapitolyo", fetched.Area.Name)

	csv := "barangay,householdHead,address,familyIncome,employmentStatus,educationLevel,housingType,water,electricity,sanitation,governmentAssistance\n" +
		"kapitolyo,Maria Santos,12 Mabini St,4000,Unemployed,None,Informal Settler,false,true,true,\n" +
		"San Antonio,Pedro Reyes,3 Rizal Ave,30000,Employed,College,Owned,true,true,true,\"4Ps, PhilHealth\"\n"
	var imported struct {
		Message  string `json:"message"`
		Inserted int    `json:"inserted"`
		Skipped  int    `json:"skipped"`
	}
	c.upload(t, "/households/import", "households.csv", csv, http.StatusOK, &imported)
	assert.Equal(t, 1, imported.Inserted)
	assert.Equal(t, 1, imported.Skipped)

	var page services.HouseholdPage
	c.do(t, http.MethodGet, "/households?riskLevel=High", nil, http.StatusOK, &page)
	assert.Equal(t, 1, page.Total)

	var summary types.Report
	c.do(t, http.MethodGet, "/reports/summary", nil, http.StatusOK, &summary)

	var report []byte
	c.do(t, http.MethodGet, "/reports/csv", nil, http.StatusOK, &report)
	assert.Contains(t, string(report), "Kapitolyo")

	c.do(t, http.MethodDelete, fmt.Sprintf("/households/%d", created.ID), nil, http.StatusNoContent, nil)
	c.do(t, http.MethodGet, fmt.Sprintf("/households/%d", created.ID), nil, http.StatusNotFound, nil)
	c.do(t, http.MethodPost, fmt.Sprintf("/households/%d/recover", created.ID), nil, http.StatusOK, nil)

	var purged struct {
		Removed int `json:"removed"`
	}
	c.do(t, http.MethodDelete, "/households", nil, http.StatusOK, &purged)
	assert.Equal(t, 2, purged.Removed)

	c.do(t, http.MethodPost, "/auth/logout", nil, http.StatusOK, nil)
	c.do(t, http.MethodGet, "/auth/me", nil, http.StatusUnauthorized, nil)
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "povassess")
	_ = os.Setenv("DB_PASSWORD", "povassess")
	_ = os.Setenv("DB_NAME", "povassess")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "povassess")
}

func bootstrapAdmin(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	users := services.NewUserService(store.NewUserRepository(conn), store.NewAreaRepository(conn), zap.NewNop())
	_, err = users.Bootstrap(ctx, services.UserInput{
		Name:     "E2E Admin",
		Email:    adminEmail,
		Password: adminPassword,
		Role:     types.RoleAdmin,
	})
	return err
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		conn, err := db.Open(pingCtx, cfg)
		cancel()
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

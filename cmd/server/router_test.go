package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/platform/database"
	"github.com/phrazzld/jobsearch-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: database.DriverSQLite,
			URL:    filepath.Join(t.TempDir(), "server.db"),
		},
	}

	stores, err := app.OpenStores(context.Background(), cfg.Database, log)
	require.NoError(t, err)

	a, err := newApplicationWithStores(cfg, log, stores)
	require.NoError(t, err)
	t.Cleanup(a.cleanup)
	return a
}

func TestRouter(t *testing.T) {
	t.Parallel()
	a := newTestApplication(t)
	srv := httptest.NewServer(a.setupRouter())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get("X-Trace-ID"), 32)

	resp, err = http.Post(srv.URL+"/api/tasks", "application/json",
		strings.NewReader(`{"type":"research","subject_key":"Acme"}`))
	require.NoError(t, err)
	var created api.CreateTaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/tasks/" + created.TaskID.String())
	require.NoError(t, err)
	var got api.TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	_ = resp.Body.Close()
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, "Acme", got.SubjectKey)

	resp, err = http.Get(srv.URL + "/api/companies/Nobody")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	http_helper "github.com/gruntwork-io/terratest/modules/http-helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/client"
	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/platform/database"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

type stubResearcher struct{}

func (stubResearcher) ResearchCompany(_ context.Context, content string) (*domain.Company, error) {
	return &domain.Company{Name: content, URL: "https://acme.test", Headquarters: "New York"}, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateReply(_ context.Context, c *domain.Company, _ string) (string, error) {
	return "Hi, thanks for reaching out about " + c.Name + ".", nil
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// TestServerEndToEnd runs the HTTP server and a worker daemon as separate
// components sharing one SQLite file, and drives them through the client.
func TestServerEndToEnd(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	port := freePort(t)
	cfg := &config.Config{
		Server: config.ServerConfig{Port: port, LogLevel: "info", ShutdownTimeout: 5 * time.Second},
		Database: config.DatabaseConfig{
			Driver: database.DriverSQLite,
			URL:    filepath.Join(t.TempDir(), "e2e.db"),
		},
		Worker: config.WorkerConfig{PollInterval: 20 * time.Millisecond},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverStores, err := app.OpenStores(ctx, cfg.Database, log)
	require.NoError(t, err)
	a, err := newApplicationWithStores(cfg, log, serverStores)
	require.NoError(t, err)

	serverDone := make(chan error, 1)
	go func() { serverDone <- a.Run(ctx) }()

	workerStores, err := app.OpenStores(ctx, cfg.Database, log)
	require.NoError(t, err)
	defer func() { _ = workerStores.Close() }()
	daemon, err := app.NewDaemon(workerStores,
		app.Capabilities{Researcher: stubResearcher{}, Generator: stubGenerator{}},
		cfg.Worker, log)
	require.NoError(t, err)

	workerDone := make(chan error, 1)
	go func() { workerDone <- daemon.Run(ctx) }()

	baseURL := "http://127.0.0.1:" + strconv.Itoa(port)
	http_helper.HttpGetWithRetryWithCustomValidation(t, baseURL+"/health", nil, 50, 100*time.Millisecond,
		func(status int, _ string) bool { return status == 200 })

	c, err := client.New(baseURL, client.WithPolling(20*time.Millisecond, 10*time.Second), client.WithLogger(log))
	require.NoError(t, err)

	id, err := c.Research(ctx, "Acme")
	require.NoError(t, err)
	done, err := c.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)

	company, err := c.GetCompany(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test", company.URL)

	_, err = c.UpsertCompany(ctx, "Acme", api.CompanyRequest{InitialMessage: "Hello from Acme, are you open to new roles?"})
	require.NoError(t, err)

	id, err = c.Reply(ctx, "Acme", "")
	require.NoError(t, err)
	done, err = c.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)

	company, err = c.GetCompany(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Hi, thanks for reaching out about Acme.", company.ReplyMessage)
	assert.Equal(t, "New York", company.Headquarters)

	cancel()
	require.NoError(t, <-serverDone)
	require.NoError(t, <-workerDone)
}

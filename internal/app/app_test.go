package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/platform/database"
	"github.com/phrazzld/jobsearch-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResearcher struct{}

func (stubResearcher) ResearchCompany(_ context.Context, content string) (*domain.Company, error) {
	return &domain.Company{Name: content, Type: "SaaS", EngSize: domain.IntPtr(25)}, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateReply(_ context.Context, c *domain.Company, _ string) (string, error) {
	return "Thanks, " + c.Name + "!", nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStoresUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := NewStores("mysql", nil, discard())
	assert.Error(t, err)
}

func TestDaemonConfig(t *testing.T) {
	t.Parallel()
	cfg := DaemonConfig(config.WorkerConfig{
		PollInterval:     time.Second,
		ErrorBackoff:     5 * time.Second,
		WriteTimeout:     time.Minute,
		StaleTaskTimeout: time.Hour,
	})
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.StaleTaskTimeout)
}

func TestGeminiCapabilitiesRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := GeminiCapabilities(context.Background(), config.LLMConfig{ModelName: "m"}, discard())
	assert.Error(t, err)
}

// TestSQLiteEndToEnd runs the full enqueue, claim, execute and poll cycle
// against a SQLite file shared by two independent handles, the way the
// server and worker processes share it.
func TestSQLiteEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver: database.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "jobsearch.db"),
	}

	server, err := OpenStores(ctx, cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	worker, err := OpenStores(ctx, cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })

	daemon, err := NewDaemon(worker, Capabilities{Researcher: stubResearcher{}, Generator: stubGenerator{}},
		config.WorkerConfig{}, discard())
	require.NoError(t, err)

	created, err := server.Tasks.Create(ctx, task.TypeResearch, "Acme", nil)
	require.NoError(t, err)

	processed, err := daemon.Once(ctx, task.TypeResearch)
	require.NoError(t, err)
	require.True(t, processed)

	done, err := server.Tasks.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)

	var result domain.Company
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.Equal(t, "SaaS", result.Type)

	company, err := server.Companies.Get(ctx, "Acme")
	require.NoError(t, err)
	require.NotNil(t, company.EngSize)
	assert.Equal(t, 25, *company.EngSize)

	// generate_message needs an initial message; without one the task fails
	// and the company is left untouched.
	replyTask, err := server.Tasks.Create(ctx, task.TypeGenerateMessage, "Acme", nil)
	require.NoError(t, err)
	_, err = daemon.Once(ctx, task.TypeGenerateMessage)
	require.NoError(t, err)

	failed, err := server.Tasks.Get(ctx, replyTask.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
}

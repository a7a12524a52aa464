package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// writeConfig writes a config file pointing at a fresh SQLite database and
// returns the config path and the database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobsearch.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("database:\n  driver: sqlite\n  url: %s\nclient:\n  poll_interval: 10ms\n  max_wait: 5s\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	return cfgPath, dbPath
}

// execute runs the CLI with args and returns what it printed to stdout.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeAPI serves a single task that completes with the given status after
// the first poll.
type fakeAPI struct {
	mu     sync.Mutex
	id     uuid.UUID
	final  task.Status
	polls  int
	posted []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost:
			f.posted = append(f.posted, r.URL.Path)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(api.CreateTaskResponse{TaskID: f.id, Status: task.StatusPending})
		case r.URL.Path == "/api/tasks/"+f.id.String():
			f.polls++
			resp := api.TaskResponse{ID: f.id, Type: task.TypeResearch, SubjectKey: "Acme", Status: task.StatusRunning}
			if f.polls > 1 {
				resp.Status = f.final
				if f.final == task.StatusFailed {
					resp.Error = "capability error: quota exceeded"
				} else {
					resp.Result = json.RawMessage(`{"name":"Acme"}`)
				}
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			assert.Failf(t, "unexpected request", "%s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeAPI) snapshot() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls, append([]string(nil), f.posted...)
}

func newFakeAPI(t *testing.T, final task.Status) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{id: uuid.New(), final: final}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return f, srv
}

func TestResearchCommand(t *testing.T) {
	t.Parallel()
	cfgPath, _ := writeConfig(t)

	t.Run("without wait prints the queued task", func(t *testing.T) {
		t.Parallel()
		f, srv := newFakeAPI(t, task.StatusCompleted)

		out, err := execute(t, nil, "--config", cfgPath, "--server", srv.URL, "research", "Acme")
		require.NoError(t, err)

		var got api.CreateTaskResponse
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, f.id, got.TaskID)
		assert.Equal(t, task.StatusPending, got.Status)
		_, posted := f.snapshot()
		assert.Equal(t, []string{"/api/companies/Acme/research"}, posted)
	})

	t.Run("wait polls until completed", func(t *testing.T) {
		t.Parallel()
		f, srv := newFakeAPI(t, task.StatusCompleted)

		out, err := execute(t, nil, "--config", cfgPath, "--server", srv.URL, "research", "Acme", "--wait")
		require.NoError(t, err)

		var got api.TaskResponse
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, task.StatusCompleted, got.Status)
		assert.JSONEq(t, `{"name":"Acme"}`, string(got.Result))
		polls, _ := f.snapshot()
		assert.GreaterOrEqual(t, polls, 2)
	})

	t.Run("wait reports a failed task as an error", func(t *testing.T) {
		t.Parallel()
		_, srv := newFakeAPI(t, task.StatusFailed)

		out, err := execute(t, nil, "--config", cfgPath, "--server", srv.URL, "reply", "Acme", "--wait")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Contains(t, out, `"status": "failed"`)
	})
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()
	cfgPath, _ := writeConfig(t)
	f, srv := newFakeAPI(t, task.StatusCompleted)

	out, err := execute(t, nil, "--config", cfgPath, "--server", srv.URL, "status", f.id.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "running"`)

	_, err = execute(t, nil, "--config", cfgPath, "--server", srv.URL, "status", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task id")
}

func TestParseCompanyFields(t *testing.T) {
	t.Parallel()

	patch, err := parseCompanyFields([]string{"url=https://acme.test", "eng_size=40", "notes=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test", patch.URL)
	require.NotNil(t, patch.EngSize)
	assert.Equal(t, 40, *patch.EngSize)
	assert.Equal(t, "a=b", patch.Notes)

	tests := []struct {
		name   string
		fields []string
		errMsg string
	}{
		{"no fields", nil, "at least one --field"},
		{"missing equals", []string{"url"}, "expected key=value"},
		{"unknown key", []string{"color=blue"}, "invalid company field"},
		{"non-numeric size", []string{"total_size=lots"}, "must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseCompanyFields(tt.fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCompaniesImport(t *testing.T) {
	t.Parallel()
	cfgPath, dbPath := writeConfig(t)

	input := `[{"name":"Acme","url":"https://acme.test"},{"name":"Globex","headquarters":"Springfield"}]`
	out, err := execute(t, strings.NewReader(input), "--config", cfgPath, "companies", "import", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 companies.")

	_, err = execute(t, strings.NewReader(`[{"name":"  ","notes":"no name"}]`), "--config", cfgPath, "companies", "import", "-")
	require.Error(t, err)

	out, err = execute(t, strings.NewReader(`[{"name":"  "},{}]`), "--config", cfgPath, "companies", "import", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 companies.")

	yamlPath := filepath.Join(t.TempDir(), "companies.yaml")
	yamlInput := "- name: Acme\n  notes: met at the meetup\n  eng_size: 40\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlInput), 0o600))
	out, err = execute(t, nil, "--config", cfgPath, "companies", "import", yamlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 companies.")

	_, err = execute(t, strings.NewReader("[]"), "--config", cfgPath, "companies", "import", "--format", "toml", "-")
	require.Error(t, err)

	stores, err := app.OpenStores(context.Background(), config.DatabaseConfig{Driver: "sqlite", URL: dbPath},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = stores.Close() }()

	companies, err := stores.Companies.List(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 2)

	acme, err := stores.Companies.Get(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test", acme.URL)
	assert.Equal(t, "met at the meetup", acme.Notes)
	require.NotNil(t, acme.EngSize)
	assert.Equal(t, 40, *acme.EngSize)
}

func TestMigrateCommand(t *testing.T) {
	t.Parallel()
	cfgPath, _ := writeConfig(t)

	_, err := execute(t, nil, "--config", cfgPath, "migrate", "up")
	require.NoError(t, err)

	_, err = execute(t, nil, "--config", cfgPath, "migrate", "version")
	require.NoError(t, err)

	_, err = execute(t, nil, "--config", cfgPath, "migrate", "sideways")
	require.Error(t, err)
}

func TestWorkerRequiresAPIKey(t *testing.T) {
	t.Setenv(config.EnvPrefix+"_LLM_GEMINI_API_KEY", "")
	cfgPath, _ := writeConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", cfgPath, "worker", "--once"})
	err := root.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM generator")
}

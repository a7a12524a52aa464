package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/api/shared"
	"github.com/phrazzld/jobsearch-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL,
		WithPolling(5*time.Millisecond, 2*time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New("localhost:8080")
	assert.Error(t, err)

	c, err := New("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestEnqueue(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tasks", r.URL.Path)

		var req api.CreateTaskRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "research", req.Type)
		assert.Equal(t, "Acme", req.SubjectKey)

		writeJSON(w, http.StatusAccepted, api.CreateTaskResponse{TaskID: id, Status: task.StatusPending})
	}))

	got, err := c.Enqueue(context.Background(), task.TypeResearch, "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestShorthandRoutes(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	var (
		mu    sync.Mutex
		paths []string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.EscapedPath())
		mu.Unlock()
		writeJSON(w, http.StatusAccepted, api.CreateTaskResponse{TaskID: id, Status: task.StatusPending})
	}))

	_, err := c.Research(context.Background(), "Acme Robotics")
	require.NoError(t, err)
	_, err = c.Reply(context.Background(), "Acme", "be brief")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/api/companies/Acme%20Robotics/research",
		"/api/companies/Acme/reply",
	}, paths)
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, shared.ErrorResponse{Error: "Task not found", TraceID: "abc"})
	}))

	_, err := c.Status(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Task not found", apiErr.Message)
	assert.Equal(t, "abc", apiErr.TraceID)
}

func TestWait(t *testing.T) {
	t.Parallel()

	t.Run("polls until terminal", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		var polls atomic.Int32

		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := polls.Add(1)
			resp := api.TaskResponse{ID: id, Type: task.TypeResearch, SubjectKey: "Acme"}
			switch {
			case n == 1:
				resp.Status = task.StatusPending
			case n == 2:
				writeJSON(w, http.StatusInternalServerError, shared.ErrorResponse{Error: "An unexpected error occurred"})
				return
			case n < 4:
				resp.Status = task.StatusRunning
			default:
				resp.Status = task.StatusCompleted
				resp.Result = json.RawMessage(`{"name":"Acme"}`)
			}
			writeJSON(w, http.StatusOK, resp)
		}))

		got, err := c.Wait(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, got.Status)
		assert.JSONEq(t, `{"name":"Acme"}`, string(got.Result))
		assert.Equal(t, int32(4), polls.Load(), "server errors are retried")
	})

	t.Run("returns failed task", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.TaskResponse{Status: task.StatusFailed, Error: "boom"})
		}))

		got, err := c.Wait(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, task.StatusFailed, got.Status)
		assert.Equal(t, "boom", got.Error)
	})

	t.Run("unknown task stops immediately", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, shared.ErrorResponse{Error: "Task not found"})
		}))

		_, err := c.Wait(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("max wait", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.TaskResponse{Status: task.StatusRunning})
		}))
		t.Cleanup(srv.Close)

		c, err := New(srv.URL, WithPolling(5*time.Millisecond, 50*time.Millisecond),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)

		_, err = c.Wait(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrWaitTimeout)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.TaskResponse{Status: task.StatusPending})
		}))

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, err := c.Wait(ctx, uuid.New())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

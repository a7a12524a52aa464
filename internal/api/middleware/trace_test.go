package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/jobsearch-api/internal/api/shared"
	"github.com/phrazzld/jobsearch-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates trace id and request logger", func(t *testing.T) {
		t.Parallel()
		buf, log := logger.NewTestLogger(t)

		var traceID string
		handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
			logger.FromContext(r.Context()).Info("inside handler")
			w.WriteHeader(http.StatusTeapot)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

		assert.Equal(t, http.StatusTeapot, w.Code)
		require.Len(t, traceID, 32)

		entries, err := buf.GetLogEntries()
		require.NoError(t, err)
		var sawHandler, sawCompletion bool
		for _, e := range entries {
			assert.Equal(t, traceID, e["trace_id"])
			switch e["msg"] {
			case "inside handler":
				sawHandler = true
			case "request completed":
				sawCompletion = true
				assert.Equal(t, float64(http.StatusTeapot), e["status"])
			}
		}
		assert.True(t, sawHandler)
		assert.True(t, sawCompletion)
	})

	t.Run("reuses client trace id", func(t *testing.T) {
		t.Parallel()
		_, log := logger.NewTestLogger(t)

		var traceID string
		handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(shared.TraceIDHeader, "client-trace-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "client-trace-1", traceID)
	})
}

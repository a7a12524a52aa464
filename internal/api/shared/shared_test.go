package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/jobsearch-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	assert.Len(t, GetTraceID(traced), 32)
	assert.Empty(t, GetTraceID(ctx), "original context should remain unchanged")

	assert.Equal(t, "abc", GetTraceID(WithTraceID(ctx, " abc ")))
	assert.Len(t, GetTraceID(WithTraceID(ctx, "")), 32)
	assert.Len(t, GetTraceID(WithTraceID(ctx, strings.Repeat("x", 100))), 32)

	assert.Empty(t, GetTraceID(context.WithValue(ctx, TraceIDKey, 123)))
	assert.NotEqual(t, NewTraceID(), NewTraceID())
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type target struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid json", body: `{"name":"Acme"}`},
		{name: "invalid json", body: `{"name":"Acme",}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
		{name: "unknown field", body: `{"name":"Acme","owner":"x"}`, wantErr: true},
		{name: "trailing data", body: `{"name":"Acme"}{"name":"Globex"}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var got target
			err := DecodeJSON(req, &got)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Acme", got.Name)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	type req struct {
		Name string `validate:"required"`
	}
	assert.NoError(t, ValidateRequest(&req{Name: "Acme"}))
	assert.Error(t, ValidateRequest(&req{}))
}

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithTraceID(req.Context(), "trace-1"))
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusAccepted, map[string]string{"status": "pending"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "trace-1", w.Header().Get(TraceIDHeader))
	assert.JSONEq(t, `{"status":"pending"}`, w.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	ctx, buf := logger.NewLogCaptureContext(t)
	ctx = WithTraceID(ctx, "trace-2")
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	secret := errors.New("dial postgres://admin:hunter2@db:5432/jobs failed")
	RespondWithErrorAndLog(w, req, http.StatusInternalServerError, "An unexpected error occurred", secret)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "An unexpected error occurred", resp.Error)
	assert.Equal(t, "trace-2", resp.TraceID)
	assert.NotContains(t, w.Body.String(), "hunter2")

	assert.Contains(t, buf.String(), "API error response")
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.NotContains(t, buf.String(), "hunter2", "logged errors must be redacted")
}

func TestRespondWithErrorAndLog_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		code  int
		opts  []ResponseOption
		level string
	}{
		{name: "client error", code: http.StatusNotFound, level: "DEBUG"},
		{name: "elevated client error", code: http.StatusBadRequest, opts: []ResponseOption{WithElevatedLogLevel()}, level: "WARN"},
		{name: "rate limited", code: http.StatusTooManyRequests, level: "WARN"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx, buf := logger.NewLogCaptureContext(t)
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

			RespondWithErrorAndLog(httptest.NewRecorder(), req, tc.code, "msg", errors.New("boom"), tc.opts...)
			assert.Contains(t, buf.String(), `"level":"`+tc.level+`"`)
		})
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/api/shared"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// Default polling settings for Wait.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 10 * time.Minute
)

var (
	// ErrNotFound is matched by APIErrors with status 404.
	ErrNotFound = errors.New("not found")

	// ErrWaitTimeout is returned by Wait when MaxWait elapses before the
	// task is terminal. The task keeps running.
	ErrWaitTimeout = errors.New("timed out waiting for task")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("api error %d: %s (trace_id %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is reports whether the error matches ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the jobsearch API server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPolling sets how often Wait polls and how long it waits in total.
// Non-positive values keep the defaults.
func WithPolling(interval, maxWait time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if maxWait > 0 {
			c.maxWait = maxWait
		}
	}
}

// WithLogger sets the logger used for polling progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api_client")
	return c, nil
}

// Enqueue creates a task and returns its id.
func (c *Client) Enqueue(
	ctx context.Context,
	taskType task.Type,
	subjectKey string,
	params json.RawMessage,
) (uuid.UUID, error) {
	var resp api.CreateTaskResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks", api.CreateTaskRequest{
		Type:       string(taskType),
		SubjectKey: subjectKey,
		Params:     params,
	}, &resp)
	return resp.TaskID, err
}

// Research enqueues a research task for the named company.
func (c *Client) Research(ctx context.Context, name string) (uuid.UUID, error) {
	var resp api.CreateTaskResponse
	err := c.do(ctx, http.MethodPost, companyPath(name)+"/research", nil, &resp)
	return resp.TaskID, err
}

// Reply enqueues a generate_message task for the named company.
func (c *Client) Reply(ctx context.Context, name, extraContext string) (uuid.UUID, error) {
	var resp api.CreateTaskResponse
	err := c.do(ctx, http.MethodPost, companyPath(name)+"/reply", api.ReplyRequest{Context: extraContext}, &resp)
	return resp.TaskID, err
}

// Status fetches the current state of a task.
func (c *Client) Status(ctx context.Context, id uuid.UUID) (*api.TaskResponse, error) {
	var resp api.TaskResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+id.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTasks lists recent tasks matching filter.
func (c *Client) ListTasks(ctx context.Context, filter task.ListFilter) ([]api.TaskResponse, error) {
	q := url.Values{}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.SubjectKey != "" {
		q.Set("subject_key", filter.SubjectKey)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.TaskListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// ListCompanies lists every company.
func (c *Client) ListCompanies(ctx context.Context) ([]*domain.Company, error) {
	var resp api.CompanyListResponse
	if err := c.do(ctx, http.MethodGet, "/api/companies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Companies, nil
}

// GetCompany fetches one company.
func (c *Client) GetCompany(ctx context.Context, name string) (*domain.Company, error) {
	var company domain.Company
	if err := c.do(ctx, http.MethodGet, companyPath(name), nil, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// UpsertCompany merges patch into the named company.
func (c *Client) UpsertCompany(ctx context.Context, name string, patch api.CompanyRequest) (*domain.Company, error) {
	var company domain.Company
	if err := c.do(ctx, http.MethodPut, companyPath(name), patch, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// Wait polls the task until it is completed or failed, ctx is done, or
// MaxWait elapses. A failed task is returned without error; callers check
// Status.
func (c *Client) Wait(ctx context.Context, id uuid.UUID) (*api.TaskResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		t, err := c.Status(ctx, id)
		switch {
		case err == nil && t.Status.IsTerminal():
			return t, nil
		case err == nil:
			c.logger.Debug("task not finished yet", "task_id", id, "status", t.Status)
		case isClientError(err):
			return nil, err
		default:
			c.logger.Warn("failed to poll task status, retrying", "task_id", id, "error", err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w %s after %s", ErrWaitTimeout, id, c.maxWait)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// isClientError reports whether err is a 4xx response, which polling
// cannot fix.
func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

func companyPath(name string) string {
	return "/api/companies/" + url.PathEscape(name)
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errResp shared.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.TraceID = errResp.TraceID
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

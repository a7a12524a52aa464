package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", errInvalidID, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", errInvalidID, paramName)
	}
	return id, nil
}

// getPathName extracts a company name path parameter. Names may contain
// escaped characters such as spaces or slashes.
func getPathName(r *http.Request, paramName string) string {
	name := chi.URLParam(r, paramName)
	// chi matches against RawPath when the request carries one, leaving the
	// parameter escaped; otherwise it was already decoded into URL.Path.
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	return domain.NormalizeName(name)
}

// parseTaskFilter reads the type, status, subject_key and limit query
// parameters of a task listing.
func parseTaskFilter(r *http.Request) (task.ListFilter, error) {
	q := r.URL.Query()
	filter := task.ListFilter{
		SubjectKey: q.Get("subject_key"),
	}

	if v := q.Get("type"); v != "" {
		t, err := task.ParseType(v)
		if err != nil {
			return filter, err
		}
		filter.Type = t
	}

	if v := q.Get("status"); v != "" {
		s, err := task.ParseStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = s
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("%w: limit must be a positive integer", errInvalidQuery)
		}
		filter.Limit = limit
	}

	return filter, nil
}

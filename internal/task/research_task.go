package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/generation"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

// ResearchHandler executes research tasks. It researches the subject company
// and merges the findings into the company repository.
type ResearchHandler struct {
	companies  store.CompanyStore
	researcher generation.Researcher
	logger     *slog.Logger
}

// NewResearchHandler creates a ResearchHandler.
func NewResearchHandler(
	companies store.CompanyStore,
	researcher generation.Researcher,
	logger *slog.Logger,
) *ResearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResearchHandler{
		companies:  companies,
		researcher: researcher,
		logger:     logger.With("handler", string(TypeResearch)),
	}
}

// Handle implements Handler. The task result is the research record that was
// merged, encoded as JSON.
func (h *ResearchHandler) Handle(ctx context.Context, t *Task) (json.RawMessage, error) {
	name := domain.NormalizeName(t.SubjectKey)
	if name == "" {
		return nil, NewCapabilityError(t.Type, domain.ErrEmptyCompanyName)
	}

	content := name
	existing, err := h.companies.Get(ctx, name)
	switch {
	case err == nil:
		if existing.InitialMessage != "" {
			content = existing.InitialMessage
		}
	case errors.Is(err, store.ErrCompanyNotFound):
		// First research for this company creates it.
	default:
		return nil, fmt.Errorf("failed to load company %q: %w", name, err)
	}

	h.logger.Debug("researching company",
		"task_id", t.ID,
		"company", name,
		"seeded_from_message", content != name)

	found, err := h.researcher.ResearchCompany(ctx, content)
	if err != nil {
		return nil, NewCapabilityError(t.Type, err)
	}
	if found == nil {
		return nil, NewCapabilityError(t.Type, generation.ErrInvalidResponse)
	}

	record := found.ResearchRecord()
	record.Name = name
	if err := record.Validate(); err != nil {
		return nil, NewCapabilityError(t.Type, fmt.Errorf("%w: %w", generation.ErrInvalidResponse, err))
	}

	if _, err := h.companies.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save research for %q: %w", name, err)
	}

	result, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode research result: %w", err)
	}
	return result, nil
}

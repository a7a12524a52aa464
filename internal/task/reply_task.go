package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/generation"
	"github.com/phrazzld/jobsearch-api/internal/store"
)

// ReplyParams are the optional parameters of a generate_message task.
type ReplyParams struct {
	// Context holds extra instructions for the reply, e.g. "decline politely".
	Context string `json:"context,omitempty"`
}

// ReplyResult is the result payload of a completed generate_message task.
type ReplyResult struct {
	ReplyMessage string `json:"reply_message"`
}

// ReplyHandler executes generate_message tasks. It drafts a reply to the
// company's recruiter message and stores it on the company.
type ReplyHandler struct {
	companies store.CompanyStore
	generator generation.MessageGenerator
	logger    *slog.Logger
}

// NewReplyHandler creates a ReplyHandler.
func NewReplyHandler(
	companies store.CompanyStore,
	generator generation.MessageGenerator,
	logger *slog.Logger,
) *ReplyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplyHandler{
		companies: companies,
		generator: generator,
		logger:    logger.With("handler", string(TypeGenerateMessage)),
	}
}

// Handle implements Handler.
func (h *ReplyHandler) Handle(ctx context.Context, t *Task) (json.RawMessage, error) {
	var params ReplyParams
	if err := t.DecodeParams(&params); err != nil {
		return nil, NewCapabilityError(t.Type, err)
	}

	name := domain.NormalizeName(t.SubjectKey)
	company, err := h.companies.Get(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrCompanyNotFound) {
			return nil, NewCapabilityError(t.Type,
				fmt.Errorf("%w: company %q does not exist", generation.ErrMissingInput, name))
		}
		return nil, fmt.Errorf("failed to load company %q: %w", name, err)
	}
	if strings.TrimSpace(company.InitialMessage) == "" {
		return nil, NewCapabilityError(t.Type,
			fmt.Errorf("%w: company %q has no initial message to reply to", generation.ErrMissingInput, name))
	}

	h.logger.Debug("generating reply",
		"task_id", t.ID,
		"company", name,
		"has_context", params.Context != "")

	reply, err := h.generator.GenerateReply(ctx, company, params.Context)
	if err != nil {
		return nil, NewCapabilityError(t.Type, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, NewCapabilityError(t.Type,
			fmt.Errorf("%w: empty reply", generation.ErrInvalidResponse))
	}

	patch := &domain.Company{Name: name, ReplyMessage: reply}
	if _, err := h.companies.Upsert(ctx, patch); err != nil {
		return nil, fmt.Errorf("failed to save reply for %q: %w", name, err)
	}

	result, err := json.Marshal(ReplyResult{ReplyMessage: reply})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply result: %w", err)
	}
	return result, nil
}

// RegisterHandlers binds the research and generate_message handlers to a
// new registry.
func RegisterHandlers(
	companies store.CompanyStore,
	researcher generation.Researcher,
	generator generation.MessageGenerator,
	logger *slog.Logger,
) (*Registry, error) {
	registry := NewRegistry()
	if err := registry.Register(TypeResearch, NewResearchHandler(companies, researcher, logger)); err != nil {
		return nil, err
	}
	if err := registry.Register(TypeGenerateMessage, NewReplyHandler(companies, generator, logger)); err != nil {
		return nil, err
	}
	return registry, nil
}

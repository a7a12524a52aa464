package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/generation"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"google.golang.org/genai"
)

// contentGenerator is the part of the genai client the Generator uses.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator researches companies and drafts recruiter replies with Gemini.
type Generator struct {
	logger         *slog.Logger
	models         contentGenerator
	model          string
	researchPrompt *template.Template
	replyPrompt    *template.Template
	maxRetries     int
	baseDelay      time.Duration
}

var (
	_ generation.Researcher       = (*Generator)(nil)
	_ generation.MessageGenerator = (*Generator)(nil)
)

// NewGenerator creates a Generator backed by the Gemini API.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, cfg, client.Models)
}

// newGenerator wires a Generator around any contentGenerator.
func newGenerator(logger *slog.Logger, cfg config.LLMConfig, models contentGenerator) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	researchPrompt, err := loadTemplate("research", cfg.ResearchPromptPath)
	if err != nil {
		return nil, err
	}
	replyPrompt, err := loadTemplate("reply", cfg.ReplyPromptPath)
	if err != nil {
		return nil, err
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		logger.Warn("invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	delaySeconds := cfg.RetryDelaySeconds
	if delaySeconds < 1 {
		logger.Warn("invalid retry delay value, using default", "retry_delay_seconds", 2)
		delaySeconds = 2
	}

	return &Generator{
		logger:         logger.With("component", "gemini"),
		models:         models,
		model:          cfg.ModelName,
		researchPrompt: researchPrompt,
		replyPrompt:    replyPrompt,
		maxRetries:     maxRetries,
		baseDelay:      time.Duration(delaySeconds) * time.Second,
	}, nil
}

// ResearchCompany implements generation.Researcher.
func (g *Generator) ResearchCompany(ctx context.Context, content string) (*domain.Company, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyInput
	}

	prompt, err := executeTemplate(g.researchPrompt, researchPromptData{
		Content:   content,
		IsMessage: looksLikeMessage(content),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}

	text, err := g.generateWithRetry(ctx, prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	company, err := parseResearch(text)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "company research finished",
		"company", company.Name,
		"response_length", len(text))
	return company, nil
}

// GenerateReply implements generation.MessageGenerator.
func (g *Generator) GenerateReply(ctx context.Context, company *domain.Company, extraContext string) (string, error) {
	if company == nil || strings.TrimSpace(company.InitialMessage) == "" {
		return "", fmt.Errorf("%w: %w", generation.ErrMissingInput, ErrEmptyInput)
	}

	prompt, err := executeTemplate(g.replyPrompt, replyPromptData{
		Company: company,
		Context: strings.TrimSpace(extraContext),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}

	text, err := g.generateWithRetry(ctx, prompt, nil)
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(text)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", generation.ErrInvalidResponse)
	}
	return reply, nil
}

// generateWithRetry calls the model with exponential backoff and jitter
// between attempts:
//
//	delay = baseDelay * 2^attempt * (0.5 + rand[0, 0.5))
//
// Permanent errors (blocked content, malformed responses, 4xx) are returned
// immediately.
func (g *Generator) generateWithRetry(
	ctx context.Context,
	prompt string,
	genConfig *genai.GenerateContentConfig,
) (string, error) {
	for attempt := 0; ; attempt++ {
		g.logger.DebugContext(ctx, "making Gemini API call",
			"attempt", attempt+1,
			"max_attempts", g.maxRetries+1,
			"prompt_length", len(prompt))

		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
		if err == nil {
			return responseText(resp)
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
		if !isTransient(err) {
			g.logger.WarnContext(ctx, "permanent Gemini API error, not retrying", "error", err)
			return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}
		if attempt >= g.maxRetries {
			g.logger.WarnContext(ctx, "maximum retry attempts reached",
				"max_retries", g.maxRetries,
				"error", err)
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, g.maxRetries, err)
		}

		backoff := float64(g.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))
		g.logger.InfoContext(ctx, "retrying Gemini API call after delay",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// isTransient reports whether a failed call may succeed if retried.
// API errors are transient only for rate limiting and server errors; any
// other error (network, timeout) is assumed transient.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// responseText extracts the text of the first candidate, rejecting blocked
// and empty responses.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" &&
		string(fb.BlockReason) != "BLOCKED_REASON_UNSPECIFIED" {
		return "", fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return text.String(), nil
}

// parseResearch decodes a research response. Markdown code fences around
// the JSON are tolerated.
func parseResearch(text string) (*domain.Company, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	text = strings.TrimSpace(text)

	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// integer checks require.
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	validator, err := compiledResearchSchema()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}
	if err := validator.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: response does not match research schema: %v", generation.ErrInvalidResponse, err)
	}

	var schema researchSchema
	if err := json.Unmarshal([]byte(text), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return schema.toCompany(), nil
}

// looksLikeMessage distinguishes a recruiter message from a bare company name.
func looksLikeMessage(content string) bool {
	return strings.Contains(content, "\n") || len(strings.Fields(content)) > 6
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/generation"
	"github.com/phrazzld/jobsearch-api/internal/platform/gemini"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// DaemonConfig converts worker settings into a task.DaemonConfig.
func DaemonConfig(cfg config.WorkerConfig) task.DaemonConfig {
	return task.DaemonConfig{
		PollInterval:           cfg.PollInterval,
		ErrorBackoff:           cfg.ErrorBackoff,
		WriteTimeout:           cfg.WriteTimeout,
		StaleTaskTimeout:       cfg.StaleTaskTimeout,
		StaleTaskCheckInterval: cfg.StaleTaskCheckInterval,
	}
}

// Capabilities bundles the research and reply implementations the daemon
// dispatches to.
type Capabilities struct {
	Researcher generation.Researcher
	Generator  generation.MessageGenerator
}

// GeminiCapabilities builds both capabilities on one Gemini client.
func GeminiCapabilities(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (Capabilities, error) {
	g, err := gemini.NewGenerator(ctx, logger, cfg)
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	return Capabilities{Researcher: g, Generator: g}, nil
}

// NewDaemon registers the task handlers and builds the worker daemon.
func NewDaemon(
	stores *Stores,
	caps Capabilities,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) (*task.Daemon, error) {
	registry, err := task.RegisterHandlers(stores.Companies, caps.Researcher, caps.Generator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register task handlers: %w", err)
	}
	return task.NewDaemon(stores.Tasks, registry, DaemonConfig(cfg), logger), nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/client"
	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/platform/logger"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// env is what a subcommand needs after global flags are applied.
type env struct {
	cfg *config.Config
	log *slog.Logger
}

// load reads configuration and builds a logger writing to stderr, keeping
// stdout for command output.
func (o *options) load(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.serverURL != "" {
		cfg.Client.BaseURL = o.serverURL
	}

	level := "warn"
	if o.verbose {
		level = cfg.Server.LogLevel
	}
	log, err := loggerAt(level, cmd)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func loggerAt(level string, cmd *cobra.Command) (*slog.Logger, error) {
	log, err := logger.SetupWithWriter(level, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}
	return log, nil
}

// client builds an API client from the loaded configuration.
func (e *env) client() (*client.Client, error) {
	c, err := client.New(e.cfg.Client.BaseURL,
		client.WithPolling(e.cfg.Client.PollInterval, e.cfg.Client.MaxWait),
		client.WithLogger(e.log))
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportTask prints a freshly queued task, or waits for it and prints the
// final state. A task that ends in failed is returned as an error.
func reportTask(cmd *cobra.Command, c *client.Client, id uuid.UUID, wait bool) error {
	if !wait {
		return printJSON(cmd.OutOrStdout(), api.CreateTaskResponse{TaskID: id, Status: task.StatusPending})
	}
	return waitAndPrint(cmd, c, id)
}

func waitAndPrint(cmd *cobra.Command, c *client.Client, id uuid.UUID) error {
	t, err := c.Wait(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("waiting for task %s: %w", id, err)
	}
	if err := printJSON(cmd.OutOrStdout(), t); err != nil {
		return err
	}
	if t.Status == task.StatusFailed {
		return fmt.Errorf("task %s failed: %s", t.ID, t.Error)
	}
	return nil
}

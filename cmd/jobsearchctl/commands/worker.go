package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

func newWorkerCmd(opts *options) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the task worker in the foreground",
		Long: `Run the worker daemon against the configured database until
interrupted. With --once, process at most one pending task of each type
and exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			caps, err := app.GeminiCapabilities(ctx, e.cfg.LLM, e.log)
			if err != nil {
				return err
			}
			stores, err := app.OpenStores(ctx, e.cfg.Database, e.log)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			daemon, err := app.NewDaemon(stores, caps, e.cfg.Worker, e.log)
			if err != nil {
				return err
			}
			if !once {
				return daemon.Run(ctx)
			}

			for _, taskType := range task.KnownTypes() {
				processed, err := daemon.Once(ctx, taskType)
				if err != nil {
					return fmt.Errorf("processing %s task: %w", taskType, err)
				}
				if processed {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Processed one %s task.\n", taskType)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No pending %s tasks.\n", taskType)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Process at most one task of each type, then exit")
	return cmd
}

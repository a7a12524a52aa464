// Package commands implements the jobsearchctl CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// options holds the global flags shared by every subcommand.
type options struct {
	configPath string
	serverURL  string
	verbose    bool
}

// NewRootCmd builds the jobsearchctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "jobsearchctl",
		Short: "Research companies and draft recruiter replies",
		Long: `jobsearchctl talks to the jobsearch API to queue company research and
recruiter-reply tasks and to poll them until they finish.

Database commands (migrate, companies import, worker) connect directly to
the configured database instead of going through the API.`,
		Version:       Version,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (default ./config.yaml if present)")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "API base URL, overrides client.base_url")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level instead of warn")

	root.AddCommand(
		newResearchCmd(opts),
		newReplyCmd(opts),
		newStatusCmd(opts),
		newTasksCmd(opts),
		newCompaniesCmd(opts),
		newMigrateCmd(opts),
		newWorkerCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

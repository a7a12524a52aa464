package commands

import (
	"github.com/spf13/cobra"

	"github.com/phrazzld/jobsearch-api/internal/platform/database"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|status|version|reset>",
		Short: "Run database migrations",
		Long: `Apply or inspect the embedded schema migrations for the configured
database driver. The server and worker apply pending migrations on start,
so this is mainly for inspection and rollbacks.`,
		ValidArgs: []string{
			database.MigrateUp,
			database.MigrateDown,
			database.MigrateStatus,
			database.MigrateVersion,
			database.MigrateReset,
		},
		Args: cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			// Migration progress is the output here, so log at info.
			if !opts.verbose {
				e.log, err = loggerAt("info", cmd)
				if err != nil {
					return err
				}
			}

			db, err := database.Open(cmd.Context(), e.cfg.Database.Driver, e.cfg.Database.URL, e.log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return database.Migrate(cmd.Context(), db, e.cfg.Database.Driver, args[0], e.log)
		},
	}
}

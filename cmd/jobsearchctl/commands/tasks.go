package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phrazzld/jobsearch-api/internal/task"
)

func newResearchCmd(opts *options) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "research <company>",
		Short: "Queue company research",
		Long: `Queue a research task for a company. The worker researches the company
and merges its findings into the stored record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			id, err := c.Research(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("queueing research: %w", err)
			}
			return reportTask(cmd, c, id, wait)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the task to finish")
	return cmd
}

func newReplyCmd(opts *options) *cobra.Command {
	var (
		wait         bool
		extraContext string
	)
	cmd := &cobra.Command{
		Use:   "reply <company>",
		Short: "Queue a recruiter reply draft",
		Long: `Queue a generate_message task that drafts a reply to the company's
stored recruiter message.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			id, err := c.Reply(cmd.Context(), args[0], extraContext)
			if err != nil {
				return fmt.Errorf("queueing reply: %w", err)
			}
			return reportTask(cmd, c, id, wait)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the task to finish")
	cmd.Flags().StringVar(&extraContext, "context", "", "Extra instructions for the reply")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show a task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			if wait {
				return waitAndPrint(cmd, c, id)
			}
			t, err := c.Status(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("fetching task: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the task to finish")
	return cmd
}

func newTasksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect tasks",
	}
	cmd.AddCommand(newTasksListCmd(opts))
	return cmd
}

func newTasksListCmd(opts *options) *cobra.Command {
	var (
		taskType string
		status   string
		subject  string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			tasks, err := c.ListTasks(cmd.Context(), task.ListFilter{
				Type:       task.Type(taskType),
				Status:     task.Status(status),
				SubjectKey: subject,
				Limit:      limit,
			})
			if err != nil {
				return fmt.Errorf("listing tasks: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), tasks)
			}

			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tTYPE\tSUBJECT\tSTATUS\tUPDATED")
			for _, t := range tasks {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Type, t.SubjectKey, t.Status, t.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&taskType, "type", "", "Only tasks of this type")
	cmd.Flags().StringVar(&status, "status", "", "Only tasks in this status")
	cmd.Flags().StringVar(&subject, "subject", "", "Only tasks for this company")
	cmd.Flags().IntVarP(&limit, "limit", "n", task.DefaultListLimit, "Maximum number of tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

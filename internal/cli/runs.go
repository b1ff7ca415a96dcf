package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	TraceID  string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List execution runs, newest first",
		Long: `List recorded execution runs, optionally filtered to one trace.

Examples:
  captrail runs --db ./trail.db
  captrail runs --db ./trail.db --trace 0192d7e2-53a1-7cc0-b428-91f3a2c4e001`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "filter to one trace id")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	st, err := openStore(opts.Database, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runs, err := st.ListRuns(ctx, opts.TraceID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), runs, opts.TraceID)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  trace=%s  actions=%d  %s .. %s\n",
			run.ID, run.TraceID, run.ActionsCount, run.StartedAt, run.FinishedAt)
		if opts.Verbose && run.Summary != "" {
			fmt.Fprintf(w, "    %s\n", run.Summary)
		}
	}
	return nil
}

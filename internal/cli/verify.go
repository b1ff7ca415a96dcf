package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	TraceID  string
	RunID    string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run post-execution checks for a trace",
		Long: `Re-check a trace against the trail: links present, trace evidence
recorded, snapshot artifact recorded. Appends a new verification row;
history is never overwritten.

Exits 1 when the verification fails.

Examples:
  captrail verify --db ./trail.db --trace 0192d7e2-53a1-7cc0-b428-91f3a2c4e001
  captrail verify --db ./trail.db --trace 0192d7e2-... --run 8f41c0de-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "trace id (required)")
	_ = cmd.MarkFlagRequired("trace")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run for the trace)")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
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

	runID := opts.RunID
	if runID == "" {
		runs, err := st.ListRuns(ctx, opts.TraceID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if len(runs) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("no runs recorded for trace %s", opts.TraceID))
		}
		runID = runs[0].ID
	}

	result, err := verify.New(st).Verify(ctx, opts.TraceID, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "verification errored", err)
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), result, opts.TraceID); err != nil {
			return err
		}
	} else {
		printVerification(cmd, result)
	}

	if result.Status == record.VerificationFailing {
		return NewExitError(ExitFailure, fmt.Sprintf("verification failing for trace %s", opts.TraceID))
	}
	return nil
}

func printVerification(cmd *cobra.Command, result *record.VerificationResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Verification %s (run %s): %s\n", result.ID, result.RunID, result.Status)
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "  - [%s] %s\n", issue.Code, issue.Message)
	}
}

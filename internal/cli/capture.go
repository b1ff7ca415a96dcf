package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/captrail/internal/capture"
	"github.com/roach88/captrail/internal/executor"
	"github.com/roach88/captrail/internal/observe"
	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/planctx"
	"github.com/roach88/captrail/internal/snapshot"
	"github.com/roach88/captrail/internal/verify"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	Database   string
	DryRun     bool
	NoReceipt  bool
	TraceID    string
	PlannerCmd string
}

// CaptureSummary is the command's output payload.
type CaptureSummary struct {
	TraceID            string   `json:"trace_id"`
	RunID              string   `json:"run_id"`
	ActionsCount       int      `json:"actions_count"`
	NotesWritten       int      `json:"notes_written"`
	TasksCreated       int      `json:"tasks_created"`
	TasksClosed        int      `json:"tasks_closed"`
	IssuesCreated      int      `json:"issues_created"`
	IssuesUpdated      int      `json:"issues_updated"`
	Warnings           []string `json:"warnings"`
	ReceiptPath        string   `json:"receipt_path,omitempty"`
	ReceiptSkipped     string   `json:"receipt_skipped,omitempty"`
	VerificationStatus string   `json:"verification_status"`
	SnapshotPath       string   `json:"snapshot_path,omitempty"`
	SnapshotError      string   `json:"snapshot_error,omitempty"`
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture <text>",
		Short: "Run the full capture workflow for one piece of text",
		Long: `Plan, execute, append the receipt, verify, and snapshot one capture.

Without --planner the text becomes a single inbox note. With --planner the
given command receives the text on stdin and must print plan JSON on
stdout; the plan is schema-validated before execution.

Examples:
  captrail capture --db ./trail.db "remember to rotate the backup key"
  captrail capture --db ./trail.db --dry-run "draft release notes"
  captrail capture --db ./trail.db --planner "plan-gen --profile inbox" "triage this"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "plan and record, but skip all external calls")
	cmd.Flags().BoolVar(&opts.NoReceipt, "no-receipt", false, "skip the receipt write-back")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "use this trace id instead of a generated one")
	cmd.Flags().StringVar(&opts.PlannerCmd, "planner", "", "external planning command (text on stdin, plan JSON on stdout)")

	return cmd
}

func runCapture(opts *CaptureOptions, text string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DryRun {
		cfg.DryRun = true
	}

	st, err := openStore(opts.Database, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	notes, tasks, issues := buildConnectors(cfg)

	var planner capture.Planner
	if opts.PlannerCmd != "" {
		planner = &capture.CommandPlanner{Command: strings.Fields(opts.PlannerCmd)}
	} else {
		planner = &capture.InboxPlanner{}
	}
	if opts.TraceID != "" {
		planner = &pinnedTracePlanner{inner: planner, traceID: opts.TraceID}
	}

	exec := executor.New(st, executor.Connectors{Notes: notes, Tasks: tasks, Issues: issues}, cfg)
	svc := capture.New(
		planner,
		exec,
		verify.New(st),
		snapshot.NewRecorder(st, cfg.EvalsDir),
		observe.NewRecorder(st),
		planctx.New(st, cfg),
		notes,
		cfg,
	)
	svc.NoReceipt = opts.NoReceipt

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, runErr := svc.Run(ctx, text)
	if result == nil {
		return WrapExitError(ExitFailure, "capture failed before execution", runErr)
	}

	summary := summarize(result)
	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), summary, summary.TraceID); err != nil {
			return err
		}
	} else {
		printCaptureSummary(cmd, summary)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "capture completed with a connector failure", runErr)
	}
	return nil
}

// pinnedTracePlanner overrides the generated plan's trace id, for
// re-capture under a known trace.
type pinnedTracePlanner struct {
	inner   capture.Planner
	traceID string
}

func (p *pinnedTracePlanner) GeneratePlan(ctx context.Context, text string) (*plan.Plan, error) {
	generated, err := p.inner.GeneratePlan(ctx, text)
	if err != nil {
		return nil, err
	}
	generated.TraceID = p.traceID
	return generated, nil
}

func summarize(result *capture.Result) CaptureSummary {
	summary := CaptureSummary{
		TraceID:        result.Plan.TraceID,
		RunID:          result.Run.ID,
		ActionsCount:   result.Run.ActionsCount,
		NotesWritten:   len(result.Execution.Notes),
		TasksCreated:   len(result.Execution.CreatedTasks),
		TasksClosed:    len(result.Execution.ClosedTasks),
		IssuesCreated:  len(result.Execution.CreatedIssues),
		IssuesUpdated:  len(result.Execution.UpdatedIssues),
		Warnings:       result.Execution.Warnings,
		ReceiptPath:    result.ReceiptPath,
		ReceiptSkipped: result.ReceiptSkip,
		SnapshotPath:   result.Snapshot.Path,
	}
	if result.Verification != nil {
		summary.VerificationStatus = result.Verification.Status
	}
	if result.Snapshot.Err != nil {
		summary.SnapshotError = result.Snapshot.Err.Error()
	}
	return summary
}

func printCaptureSummary(cmd *cobra.Command, s CaptureSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Trace: %s\n", s.TraceID)
	fmt.Fprintf(w, "Run:   %s (%d actions)\n", s.RunID, s.ActionsCount)
	fmt.Fprintf(w, "Wrote: %d notes, %d tasks created, %d closed, %d issues created, %d updated\n",
		s.NotesWritten, s.TasksCreated, s.TasksClosed, s.IssuesCreated, s.IssuesUpdated)
	if s.ReceiptPath != "" {
		fmt.Fprintf(w, "Receipt: %s\n", s.ReceiptPath)
	}
	if s.ReceiptSkipped != "" {
		fmt.Fprintf(w, "Receipt skipped: %s\n", s.ReceiptSkipped)
	}
	fmt.Fprintf(w, "Verification: %s\n", s.VerificationStatus)
	if s.SnapshotPath != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", s.SnapshotPath)
	}
	if s.SnapshotError != "" {
		fmt.Fprintf(w, "Snapshot failed: %s\n", s.SnapshotError)
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

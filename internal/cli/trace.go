package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/captrail/internal/contract"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/snapshot"
	"github.com/roach88/captrail/internal/store"
)

// TraceAuditOptions holds flags for the trace command.
type TraceAuditOptions struct {
	*RootOptions
	Database string
	TraceID  string
	EvalsDir string
}

// TraceReport is the audit view of one trace: the latest snapshot when
// one exists, always backed by what the database itself holds.
type TraceReport struct {
	TraceID       string                       `json:"trace_id"`
	Event         *record.EventEnvelope        `json:"event,omitempty"`
	Runs          []record.RunRecord           `json:"runs"`
	Links         []record.DetailSourceLink    `json:"links"`
	Verifications []record.VerificationResult  `json:"verifications"`
	Evidence      []record.Evidence            `json:"evidence"`
	Snapshot      *contract.TraceResponse      `json:"snapshot,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceAuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Audit one trace end to end",
		Long: `Show everything the trail holds for one trace: the anchoring event,
every run, the links it left behind, verification history, evidence, and
the latest snapshot artifact (re-validated on read).

Examples:
  captrail trace --db ./trail.db --trace 0192d7e2-53a1-7cc0-b428-91f3a2c4e001
  captrail trace --db ./trail.db --trace 0192d7e2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "trace id (required)")
	_ = cmd.MarkFlagRequired("trace")
	cmd.Flags().StringVar(&opts.EvalsDir, "evals-dir", "", "snapshot directory (default from config)")

	return cmd
}

func runTraceAudit(opts *TraceAuditOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.EvalsDir != "" {
		cfg.EvalsDir = opts.EvalsDir
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

	report, err := buildTraceReport(ctx, st, cfg.EvalsDir, opts.TraceID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build trace report", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), report, opts.TraceID)
	}
	printTraceReport(cmd, report)
	return nil
}

func buildTraceReport(ctx context.Context, st *store.Store, evalsDir, traceID string) (*TraceReport, error) {
	report := &TraceReport{TraceID: traceID}

	var err error
	if report.Event, err = st.LatestEvent(ctx, traceID); err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if report.Runs, err = st.ListRuns(ctx, traceID); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if report.Links, err = st.ListLinks(ctx, traceID); err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	if report.Verifications, err = st.ListVerifications(ctx, traceID); err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	if report.Evidence, err = st.ListEvidence(ctx, traceID, ""); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}

	// Snapshot load failures surface in the report, not as command
	// errors: a corrupt snapshot is exactly what an audit should show.
	snap, err := snapshot.NewRecorder(st, evalsDir).LoadLatest(traceID)
	if err != nil {
		return report, nil
	}
	report.Snapshot = snap
	return report, nil
}

func printTraceReport(cmd *cobra.Command, report *TraceReport) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace: %s\n\n", report.TraceID)

	fmt.Fprintln(w, "=== Event ===")
	if report.Event == nil {
		fmt.Fprintln(w, "  (no event ingested)")
	} else {
		fmt.Fprintf(w, "  %s  source=%s  type=%s  occurred=%s\n",
			report.Event.EventID, report.Event.Source, report.Event.Type, report.Event.OccurredAt)
	}

	fmt.Fprintln(w, "\n=== Runs ===")
	if len(report.Runs) == 0 {
		fmt.Fprintln(w, "  (no runs)")
	}
	for _, run := range report.Runs {
		fmt.Fprintf(w, "  %s  actions=%d  %s .. %s\n", run.ID, run.ActionsCount, run.StartedAt, run.FinishedAt)
	}

	fmt.Fprintln(w, "\n=== Links ===")
	if len(report.Links) == 0 {
		fmt.Fprintln(w, "  (no links)")
	}
	for _, link := range report.Links {
		fmt.Fprintf(w, "  %-14s %s\n", link.SourceType, link.ExternalID)
	}

	fmt.Fprintln(w, "\n=== Verifications ===")
	if len(report.Verifications) == 0 {
		fmt.Fprintln(w, "  (no verifications)")
	}
	for _, vr := range report.Verifications {
		fmt.Fprintf(w, "  %s  %s  issues=%d\n", vr.CreatedAt, vr.Status, len(vr.Issues))
	}

	fmt.Fprintln(w, "\n=== Evidence ===")
	if len(report.Evidence) == 0 {
		fmt.Fprintln(w, "  (no evidence)")
	}
	for _, ev := range report.Evidence {
		fmt.Fprintf(w, "  %-11s %-15s %s\n", ev.Kind, ev.Status, ev.Reference)
	}

	fmt.Fprintln(w, "\n=== Snapshot ===")
	if report.Snapshot == nil {
		fmt.Fprintln(w, "  (no valid snapshot)")
		return
	}
	snap := report.Snapshot
	fmt.Fprintf(w, "  run=%s state=%s\n", snap.Run.RunID, snap.Run.State)
	fmt.Fprintf(w, "  links: note=%q tasks=%d issues=%d\n", snap.Links.NotePath, len(snap.Links.TaskIDs), len(snap.Links.IssueIDs))
	for _, eval := range snap.Evaluations {
		fmt.Fprintf(w, "  eval %s: %s (score %d)\n", eval.EvalID, eval.Verdict, eval.OverallScore)
	}
}

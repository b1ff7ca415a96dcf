package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/captrail/internal/planctx"
	"github.com/roach88/captrail/internal/record"
)

// ContextOptions holds flags for the context command.
type ContextOptions struct {
	*RootOptions
	Database string
	TraceID  string
	Rebuild  bool
}

// NewContextCommand creates the context command.
func NewContextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the planning context for a trace",
		Long: `Show the derived planning context for a trace: workflow, source,
capabilities, and environment defaults the planner would see.

With --rebuild the context is recomputed from the latest event and the
current configuration, replacing the cached row.

Examples:
  captrail context --db ./trail.db --trace 0192d7e2-53a1-7cc0-b428-91f3a2c4e001
  captrail context --db ./trail.db --trace 0192d7e2-... --rebuild`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContext(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "trace id (required)")
	_ = cmd.MarkFlagRequired("trace")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "recompute from the latest event and current config")

	return cmd
}

func runContext(opts *ContextOptions, cmd *cobra.Command) error {
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

	svc := planctx.New(st, cfg)
	var pc *record.PlanningContext
	if opts.Rebuild {
		pc, err = svc.Rebuild(ctx, opts.TraceID)
	} else {
		pc, err = svc.PlanningContext(ctx, opts.TraceID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load planning context", err)
	}
	if pc == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("no planning context for trace %s (no events ingested)", opts.TraceID))
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), pc, opts.TraceID)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Trace:        %s\n", pc.TraceID)
	fmt.Fprintf(w, "Workflow:     %s\n", pc.Workflow)
	fmt.Fprintf(w, "Source:       %s\n", pc.Source)
	fmt.Fprintf(w, "Event type:   %s\n", pc.EventType)
	fmt.Fprintf(w, "Capabilities: %s\n", strings.Join(pc.Capabilities, ", "))
	fmt.Fprintf(w, "Defaults:     team=%s project=%s assignee=%s\n",
		orUnset(pc.Defaults.TeamID), orUnset(pc.Defaults.ProjectID), orUnset(pc.Defaults.AssigneeID))
	fmt.Fprintf(w, "Created:      %s\n", pc.CreatedAt)
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

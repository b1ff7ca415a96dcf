package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// LinksOptions holds flags for the links command.
type LinksOptions struct {
	*RootOptions
	Database string
	TraceID  string
}

// NewLinksCommand creates the links command.
func NewLinksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "links",
		Short: "List the cross-system links for a trace",
		Long: `List every external artifact a trace left behind: notes written,
tasks created, issues created.

Example:
  captrail links --db ./trail.db --trace 0192d7e2-53a1-7cc0-b428-91f3a2c4e001`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "trace id (required)")
	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

func runLinks(opts *LinksOptions, cmd *cobra.Command) error {
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

	links, err := st.ListLinks(ctx, opts.TraceID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list links", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), links, opts.TraceID)
	}

	w := cmd.OutOrStdout()
	if len(links) == 0 {
		fmt.Fprintf(w, "No links for trace: %s\n", opts.TraceID)
		return nil
	}
	for _, link := range links {
		fmt.Fprintf(w, "%-14s %s", link.SourceType, link.ExternalID)
		if link.URI != "" {
			fmt.Fprintf(w, "  (%s)", link.URI)
		}
		fmt.Fprintln(w)
	}
	return nil
}

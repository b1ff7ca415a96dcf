package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/captrail/internal/planctx"
	"github.com/roach88/captrail/internal/record"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
	File     string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest an inbound event envelope",
		Long: `Validate and persist an inbound event, and upsert the planning
context for its trace.

The event is read from --file, or from stdin when --file is "-" or
omitted. Re-ingesting an event with the same event id updates it in
place.

Examples:
  captrail ingest --db ./trail.db --file event.json
  cat event.json | captrail ingest --db ./trail.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")
	cmd.Flags().StringVar(&opts.File, "file", "", "path to event JSON (default stdin)")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	data, err := readEventInput(opts.File, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event", err)
	}

	var ev record.EventEnvelope
	if err := json.Unmarshal(data, &ev); err != nil {
		return WrapExitError(ExitFailure, "event is not valid JSON", err)
	}

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

	stored, err := planctx.New(st, cfg).Ingest(ctx, &ev)
	if err != nil {
		var ingestErr *planctx.IngestError
		if errors.As(err, &ingestErr) {
			return WrapExitError(ExitFailure, "event rejected", err)
		}
		return WrapExitError(ExitCommandError, "failed to ingest event", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), stored, stored.TraceID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested event %s (trace %s, source %s, type %s)\n",
		stored.EventID, stored.TraceID, stored.Source, stored.Type)
	return nil
}

func readEventInput(file string, stdin io.Reader) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/captrail/internal/config"
)

// DoctorOptions holds flags for the doctor command.
type DoctorOptions struct {
	*RootOptions
	Database string
}

// DoctorCheck is one configuration check result. Tokens and paths are
// reported as present/absent, never echoed.
type DoctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// DoctorReport is the doctor command's output payload.
type DoctorReport struct {
	Capabilities []string      `json:"capabilities"`
	Checks       []DoctorCheck `json:"checks"`
	DryRun       bool          `json:"dry_run"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DoctorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report which capabilities the current config enables",
		Long: `Check the effective configuration: which connectors are configured,
whether the vault and database paths exist, and whether telemetry and
snapshot recording are enabled.

Example:
  captrail doctor --db ./trail.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trail database")

	return cmd
}

func runDoctor(opts *DoctorOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	report := buildDoctorReport(cfg, opts.Database)

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), report, "")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Capabilities: %v\n", report.Capabilities)
	if report.DryRun {
		fmt.Fprintln(w, "Dry-run is enabled: external calls will be skipped.")
	}
	for _, check := range report.Checks {
		mark := "ok"
		if !check.OK {
			mark = "--"
		}
		fmt.Fprintf(w, "  [%s] %-18s %s\n", mark, check.Name, check.Detail)
	}
	return nil
}

func buildDoctorReport(cfg *config.Config, dbFlag string) DoctorReport {
	report := DoctorReport{
		Capabilities: cfg.Capabilities(),
		DryRun:       cfg.DryRun,
	}

	add := func(name string, ok bool, detail string) {
		report.Checks = append(report.Checks, DoctorCheck{Name: name, OK: ok, Detail: detail})
	}

	if cfg.VaultPath == "" {
		add("note_vault", false, "vault path not configured")
	} else if info, err := os.Stat(cfg.VaultPath); err != nil || !info.IsDir() {
		add("note_vault", false, "vault path is not a directory")
	} else {
		add("note_vault", true, "vault directory present")
	}

	if cfg.TodoistToken == "" {
		add("task_tracker", false, "todoist token not configured")
	} else {
		add("task_tracker", true, "todoist token present")
	}

	if cfg.LinearToken == "" {
		add("issue_tracker", false, "linear token not configured")
	} else {
		add("issue_tracker", true, "linear token present")
	}

	dbPath := dbFlag
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		add("database", false, "no database path configured")
	} else if _, err := os.Stat(dbPath); err != nil {
		add("database", true, "will be created on first write")
	} else {
		add("database", true, "database file present")
	}

	if cfg.TelemetryEndpoint == "" {
		add("telemetry", false, "no endpoint; trace evidence will record missing_config")
	} else {
		add("telemetry", true, "endpoint configured")
	}

	add("snapshots", true, fmt.Sprintf("writing under %s", cfg.EvalsDir))

	return report
}

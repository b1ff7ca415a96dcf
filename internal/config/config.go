// Package config loads the explicit runtime configuration object.
//
// Config is constructed once at process start and passed by reference to
// every component that needs it. There is no package-level state; tests
// build Config literals directly.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/captrail/internal/record"
)

// Capability names reported in planning contexts.
const (
	CapabilityNoteVault    = "note_vault"
	CapabilityTaskTracker  = "task_tracker"
	CapabilityIssueTracker = "issue_tracker"
)

// Config holds every externally-supplied setting: connector credentials,
// environment defaults, and execution mode flags.
type Config struct {
	// Note vault (filesystem).
	VaultPath string `yaml:"vault_path"`

	// Task tracker.
	TodoistToken         string   `yaml:"todoist_token"`
	TodoistProjectID     string   `yaml:"todoist_default_project_id"`
	TodoistDefaultLabels []string `yaml:"todoist_default_labels"`

	// Issue tracker.
	LinearToken      string `yaml:"linear_token"`
	LinearTeamID     string `yaml:"linear_default_team_id"`
	LinearAssigneeID string `yaml:"linear_default_assignee_id"`

	// Execution.
	DryRun     bool     `yaml:"dry_run"`
	GlobalTags []string `yaml:"global_tags"`

	// Storage and artifacts.
	DBPath   string `yaml:"db_path"`
	EvalsDir string `yaml:"evals_dir"`

	// Telemetry endpoint for trace-span evidence. Empty means spans are
	// not exported and trace evidence is recorded as missing_config.
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`
}

// Load builds a Config from an optional YAML file overlaid with
// environment variables. Environment variables win.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overlayEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() *Config {
	cfg := &Config{}
	overlayEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func overlayEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString(&cfg.VaultPath, "CAPTRAIL_VAULT_PATH")
	setString(&cfg.TodoistToken, "CAPTRAIL_TODOIST_TOKEN")
	setString(&cfg.TodoistProjectID, "CAPTRAIL_TODOIST_PROJECT_ID")
	setString(&cfg.LinearToken, "CAPTRAIL_LINEAR_TOKEN")
	setString(&cfg.LinearTeamID, "CAPTRAIL_LINEAR_TEAM_ID")
	setString(&cfg.LinearAssigneeID, "CAPTRAIL_LINEAR_ASSIGNEE_ID")
	setString(&cfg.DBPath, "CAPTRAIL_DB_PATH")
	setString(&cfg.EvalsDir, "CAPTRAIL_EVALS_DIR")
	setString(&cfg.TelemetryEndpoint, "CAPTRAIL_TELEMETRY_ENDPOINT")

	if v, ok := os.LookupEnv("CAPTRAIL_DRY_RUN"); ok {
		cfg.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := os.LookupEnv("CAPTRAIL_GLOBAL_TAGS"); ok {
		cfg.GlobalTags = splitList(v)
	}
	if v, ok := os.LookupEnv("CAPTRAIL_TODOIST_LABELS"); ok {
		cfg.TodoistDefaultLabels = splitList(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.EvalsDir == "" {
		cfg.EvalsDir = "data/evals"
	}
	if cfg.GlobalTags == nil {
		cfg.GlobalTags = []string{}
	}
	if cfg.TodoistDefaultLabels == nil {
		cfg.TodoistDefaultLabels = []string{}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Capabilities reports which external systems are configured, in a fixed
// order. Consumed by the planning context so planners only emit actions
// the executor can dispatch.
func (c *Config) Capabilities() []string {
	var caps []string
	if c.VaultPath != "" {
		caps = append(caps, CapabilityNoteVault)
	}
	if c.TodoistToken != "" {
		caps = append(caps, CapabilityTaskTracker)
	}
	if c.LinearToken != "" {
		caps = append(caps, CapabilityIssueTracker)
	}
	if caps == nil {
		caps = []string{}
	}
	return caps
}

// Defaults returns the environment-default ids the executor's resolver
// applies to actions that left them unset.
func (c *Config) Defaults() record.EnvironmentDefaults {
	return record.EnvironmentDefaults{
		TeamID:     c.LinearTeamID,
		ProjectID:  c.TodoistProjectID,
		AssigneeID: c.LinearAssigneeID,
	}
}

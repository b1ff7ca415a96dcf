package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_YAMLFileWithDefaults(t *testing.T) {
	path := writeConfigFile(t, `
vault_path: /home/me/vault
todoist_token: tok-td
todoist_default_project_id: proj-1
linear_token: tok-ln
linear_default_team_id: team-1
global_tags: [captured, inbox]
db_path: /home/me/.captrail/trail.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/home/me/vault", cfg.VaultPath)
	assert.Equal(t, "tok-td", cfg.TodoistToken)
	assert.Equal(t, []string{"captured", "inbox"}, cfg.GlobalTags)
	assert.Equal(t, "/home/me/.captrail/trail.db", cfg.DBPath)
	// Unset fields pick up defaults.
	assert.Equal(t, "data/evals", cfg.EvalsDir)
	assert.NotNil(t, cfg.TodoistDefaultLabels)
	assert.Empty(t, cfg.TodoistDefaultLabels)
	assert.False(t, cfg.DryRun)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	path := writeConfigFile(t, `
vault_path: /from/file
todoist_token: file-token
`)
	t.Setenv("CAPTRAIL_VAULT_PATH", "/from/env")
	t.Setenv("CAPTRAIL_DRY_RUN", "true")
	t.Setenv("CAPTRAIL_GLOBAL_TAGS", " alpha , ,beta ")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.VaultPath)
	assert.Equal(t, "file-token", cfg.TodoistToken, "unset env vars leave file values alone")
	assert.True(t, cfg.DryRun)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.GlobalTags)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CAPTRAIL_LINEAR_TOKEN", "ln-tok")
	t.Setenv("CAPTRAIL_EVALS_DIR", "/tmp/evals")
	t.Setenv("CAPTRAIL_DRY_RUN", "1")

	cfg := FromEnv()
	assert.Equal(t, "ln-tok", cfg.LinearToken)
	assert.Equal(t, "/tmp/evals", cfg.EvalsDir)
	assert.True(t, cfg.DryRun)
}

func TestCapabilities_FixedOrder(t *testing.T) {
	cfg := &Config{VaultPath: "/v", TodoistToken: "t", LinearToken: "l"}
	assert.Equal(t, []string{CapabilityNoteVault, CapabilityTaskTracker, CapabilityIssueTracker}, cfg.Capabilities())

	cfg = &Config{LinearToken: "l"}
	assert.Equal(t, []string{CapabilityIssueTracker}, cfg.Capabilities())

	assert.Equal(t, []string{}, (&Config{}).Capabilities())
}

func TestDefaults_MapsTrackerIDs(t *testing.T) {
	cfg := &Config{
		LinearTeamID:     "team-1",
		TodoistProjectID: "proj-1",
		LinearAssigneeID: "user-1",
	}
	d := cfg.Defaults()
	assert.Equal(t, "team-1", d.TeamID)
	assert.Equal(t, "proj-1", d.ProjectID)
	assert.Equal(t, "user-1", d.AssigneeID)
}

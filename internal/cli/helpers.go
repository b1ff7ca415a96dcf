package cli

import (
	"fmt"

	"github.com/roach88/captrail/internal/config"
	"github.com/roach88/captrail/internal/connector"
	"github.com/roach88/captrail/internal/store"
)

// loadConfig builds the effective Config: YAML file when --config is set,
// environment variables on top, then the command's own flags applied by
// the caller.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.FromEnv(), nil
}

// openStore opens the SQLite trail database, falling back to the
// configured path when the --db flag is empty.
func openStore(dbFlag string, cfg *config.Config) (*store.Store, error) {
	path := dbFlag
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no database path: pass --db or set CAPTRAIL_DB_PATH")
	}
	return store.Open(path)
}

// buildConnectors wires the connectors the config enables. Missing
// configuration yields nil interfaces; the executor records skips for
// those instead of failing.
func buildConnectors(cfg *config.Config) (connector.NoteStore, connector.TaskTracker, connector.IssueTracker) {
	var notes connector.NoteStore
	var tasks connector.TaskTracker
	var issues connector.IssueTracker

	if cfg.VaultPath != "" {
		notes = connector.NewVault(cfg.VaultPath)
	}
	if cfg.TodoistToken != "" {
		tasks = connector.NewTodoist(cfg.TodoistToken)
	}
	if cfg.LinearToken != "" {
		issues = connector.NewLinear(cfg.LinearToken)
	}
	return notes, tasks, issues
}

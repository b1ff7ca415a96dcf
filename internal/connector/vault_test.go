package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultUpsert_WritesAndReplaces(t *testing.T) {
	root := t.TempDir()
	v := NewVault(root)
	ctx := context.Background()

	ref, err := v.Upsert(ctx, "Projects/Q1 Roadmap.md", "# Roadmap\n")
	require.NoError(t, err)
	assert.Equal(t, "Projects/Q1 Roadmap.md", ref.NotePath)
	assert.Contains(t, ref.URI, "obsidian://open?")
	assert.Contains(t, ref.URI, "Q1+Roadmap.md")

	data, err := os.ReadFile(filepath.Join(root, "Projects", "Q1 Roadmap.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Roadmap\n", string(data))

	// A second upsert replaces, never appends.
	_, err = v.Upsert(ctx, "Projects/Q1 Roadmap.md", "# Roadmap v2\n")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(root, "Projects", "Q1 Roadmap.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Roadmap v2\n", string(data))
}

func TestVaultAppend_CreatesAndSeparatesWithNewline(t *testing.T) {
	root := t.TempDir()
	v := NewVault(root)
	ctx := context.Background()

	_, err := v.Append(ctx, "inbox/today.md", "first block")
	require.NoError(t, err)
	_, err = v.Append(ctx, "inbox/today.md", "second block\n")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "inbox", "today.md"))
	require.NoError(t, err)
	assert.Equal(t, "\nfirst block\n\nsecond block\n", string(data))
}

func TestVaultResolve_RejectsEscapes(t *testing.T) {
	v := NewVault(t.TempDir())
	ctx := context.Background()

	for _, path := range []string{
		"../outside.md",
		"..",
		"notes/../../outside.md",
		"/etc/passwd",
	} {
		_, err := v.Upsert(ctx, path, "x")
		require.Error(t, err, "path %q must be rejected", path)
		assert.Contains(t, err.Error(), "escapes the vault")
	}

	// Interior .. that stays inside the vault is fine after cleaning.
	_, err := v.Upsert(ctx, "notes/sub/../kept.md", "x")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(v.root, "notes", "kept.md"))
	require.NoError(t, statErr)
}

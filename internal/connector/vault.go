package connector

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Vault is a filesystem-backed note store rooted at a local vault
// directory. Note paths are vault-relative ("Projects/Q1 Roadmap.md").
type Vault struct {
	root string
}

// NewVault creates a note store over the vault directory at root.
func NewVault(root string) *Vault {
	return &Vault{root: root}
}

// Upsert writes or replaces the note at path, creating parent directories
// as needed.
func (v *Vault) Upsert(ctx context.Context, path, markdown string) (NoteRef, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return NoteRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return NoteRef{}, fmt.Errorf("create note directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(markdown), 0o644); err != nil {
		return NoteRef{}, fmt.Errorf("write note %s: %w", path, err)
	}
	return NoteRef{NotePath: path, URI: openURI(path)}, nil
}

// Append adds markdown to the end of the note at path, creating it if
// absent. A newline separates the existing content from the appended
// block.
func (v *Vault) Append(ctx context.Context, path, markdown string) (NoteRef, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return NoteRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return NoteRef{}, fmt.Errorf("create note directory: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return NoteRef{}, fmt.Errorf("open note %s: %w", path, err)
	}
	defer f.Close()

	block := markdown
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	if _, err := f.WriteString("\n" + block); err != nil {
		return NoteRef{}, fmt.Errorf("append note %s: %w", path, err)
	}
	return NoteRef{NotePath: path, URI: openURI(path)}, nil
}

// resolve maps a vault-relative note path to an absolute filesystem path,
// rejecting escapes above the vault root.
func (v *Vault) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("note path %q escapes the vault", path)
	}
	return filepath.Join(v.root, cleaned), nil
}

// openURI builds a best-effort obsidian-style open link for the note.
func openURI(path string) string {
	return fmt.Sprintf("obsidian://open?path=%s&file=%s",
		url.QueryEscape(path), url.QueryEscape(filepath.Base(path)))
}

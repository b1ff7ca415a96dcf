package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/captrail/internal/plan"
)

// CommandPlanner shells out to an external planning command. The captured
// text goes to the command's stdin; the command must print a plan JSON
// object to stdout, which is schema-validated before use.
type CommandPlanner struct {
	Command []string
}

func (p *CommandPlanner) GeneratePlan(ctx context.Context, text string) (*plan.Plan, error) {
	if len(p.Command) == 0 {
		return nil, fmt.Errorf("planner command not configured")
	}

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("planner command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	validated, err := plan.Validate(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("planner output rejected: %w", err)
	}
	return validated, nil
}

// InboxPlanner is the zero-dependency fallback: every capture becomes one
// note.upsert into a dated inbox note. It keeps the capture path usable
// without any external planning command.
type InboxPlanner struct {
	// Folder is the vault-relative directory for inbox notes, default
	// "inbox".
	Folder string

	now func() time.Time
}

func (p *InboxPlanner) GeneratePlan(ctx context.Context, text string) (*plan.Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to capture")
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	folder := p.Folder
	if folder == "" {
		folder = "inbox"
	}

	traceID := NewTraceID()
	title := noteTitle(text)
	notePath := fmt.Sprintf("%s/%s-%s.md", folder, now().UTC().Format("2006-01-02"), slug(title))

	return &plan.Plan{
		Version:    plan.Version,
		TraceID:    traceID,
		UserIntent: text,
		Assumptions: []string{
			"no planning command configured; captured verbatim to the inbox",
		},
		Actions: []plan.Action{
			plan.NoteUpsert{
				Type:     plan.TypeNoteUpsert,
				NotePath: notePath,
				Title:    title,
				Markdown: text + "\n",
			},
		},
		ReceiptSummary: fmt.Sprintf("captured to %s", notePath),
	}, nil
}

// NewTraceID mints a time-ordered trace id. UUIDv7 keeps ids sortable by
// creation time, which the snapshot directory listing relies on.
func NewTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func noteTitle(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	const maxTitle = 60
	if len(line) > maxTitle {
		line = strings.TrimSpace(line[:maxTitle])
	}
	return line
}

func slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

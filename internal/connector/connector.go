// Package connector defines the capability interfaces the executor calls
// and the thin clients that implement them: a filesystem note vault, a
// Todoist REST client, and a Linear GraphQL client.
//
// The executor depends only on the interfaces; tests substitute fakes.
package connector

import "context"

// NoteRef identifies one written note.
type NoteRef struct {
	NotePath string `json:"note_path"`
	URI      string `json:"uri,omitempty"`
}

// NoteStore writes markdown notes to the note vault.
type NoteStore interface {
	// Upsert writes or replaces the note at path.
	Upsert(ctx context.Context, path, markdown string) (NoteRef, error)
	// Append adds markdown to the end of the note at path, creating it
	// if absent.
	Append(ctx context.Context, path, markdown string) (NoteRef, error)
}

// CreateTaskInput is the tracker-facing task creation request.
// DueDate carries date-only values (YYYY-MM-DD); DueDatetime carries full
// timestamps. At most one of the two is set - the distinction changes the
// tracker's scheduling semantics and must be preserved.
type CreateTaskInput struct {
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	DueDatetime string   `json:"due_datetime,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Task is one created task.
type Task struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// TaskTracker creates and closes tasks.
type TaskTracker interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (Task, error)
	CloseTask(ctx context.Context, taskID string) error
}

// CreateIssueInput is the tracker-facing issue creation request.
type CreateIssueInput struct {
	TeamID      string   `json:"teamId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssigneeID  string   `json:"assigneeId,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Issue is one created issue.
type Issue struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// IssuePatch is a partial update applied to an existing issue.
type IssuePatch struct {
	StateID     string `json:"stateId,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// IssueTracker creates and updates issues.
type IssueTracker interface {
	CreateIssue(ctx context.Context, input CreateIssueInput) (Issue, error)
	UpdateIssue(ctx context.Context, issueID string, patch IssuePatch) error
}

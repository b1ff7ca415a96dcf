// Package plan defines the schema-closed plan model and its validator.
//
// A plan is a deterministic execution recipe for one trace: an ordered,
// non-empty list of actions, each targeting exactly one external system.
// Raw planner output is validated against an embedded CUE schema before it
// is decoded into the Go sum type, so malformed plans never reach the
// executor.
package plan

import "encoding/json"

// Version is the plan schema version literal.
const Version = "1.0.0"

// Action type tags. The set is closed; the CUE schema, the Action sum
// type, and the executor dispatch all cover exactly these variants.
const (
	TypeNoteUpsert        = "note.upsert"
	TypeNoteAppendReceipt = "note.append_receipt"
	TypeTaskCreate        = "task.create"
	TypeTaskClose         = "task.close"
	TypeIssueCreate       = "issue.create"
	TypeIssueUpdate       = "issue.update"
)

// Action is one deterministic unit of work targeting exactly one external
// system. Implementations are the closed set of variant structs below.
type Action interface {
	// ActionType returns the variant's type tag.
	ActionType() string
}

// NoteUpsert writes or replaces one note in the note vault.
type NoteUpsert struct {
	Type     string   `json:"type"`
	NotePath string   `json:"notePath"`
	Title    string   `json:"title"`
	Markdown string   `json:"markdown"`
	Tags     []string `json:"tags"`
}

func (a NoteUpsert) ActionType() string { return TypeNoteUpsert }

// NoteAppendReceipt appends receipt markdown to an existing note.
type NoteAppendReceipt struct {
	Type            string `json:"type"`
	NotePath        string `json:"notePath"`
	ReceiptMarkdown string `json:"receiptMarkdown"`
}

func (a NoteAppendReceipt) ActionType() string { return TypeNoteAppendReceipt }

// TaskCreate creates one task in the task tracker.
//
// Due accepts either a date-only string (YYYY-MM-DD) or a full datetime;
// the executor routes each form to the matching tracker field.
// An empty ProjectID means "use the environment default project".
type TaskCreate struct {
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Due         string   `json:"due,omitempty"`
	Priority    int      `json:"priority,omitempty"` // 1..4, 0 = unset
	ProjectID   string   `json:"projectId,omitempty"`
	Labels      []string `json:"labels"`
}

func (a TaskCreate) ActionType() string { return TypeTaskCreate }

// TaskClose closes one existing task in the task tracker.
type TaskClose struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}

func (a TaskClose) ActionType() string { return TypeTaskClose }

// IssueCreate creates one issue in the issue tracker.
//
// Empty TeamID/AssigneeID mean "use the environment default".
type IssueCreate struct {
	Type        string   `json:"type"`
	TeamID      string   `json:"teamId,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssigneeID  string   `json:"assigneeId,omitempty"`
	Labels      []string `json:"labels"`
}

func (a IssueCreate) ActionType() string { return TypeIssueCreate }

// IssuePatch is a partial update to an existing issue.
type IssuePatch struct {
	StateID     string `json:"stateId,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// IssueUpdate applies a partial patch to one existing issue.
type IssueUpdate struct {
	Type    string     `json:"type"`
	IssueID string     `json:"issueId"`
	Patch   IssuePatch `json:"patch"`
}

func (a IssueUpdate) ActionType() string { return TypeIssueUpdate }

// Plan is a validated, schema-closed execution recipe for one trace.
// Produced once by the planner, consumed once by the executor, never
// mutated.
type Plan struct {
	Version        string   `json:"version"`
	TraceID        string   `json:"traceId"`
	UserIntent     string   `json:"userIntent"`
	Assumptions    []string `json:"assumptions"`
	Actions        []Action `json:"actions"`
	ReceiptSummary string   `json:"receiptSummary"`
}

// RawActions marshals every action back to its tagged-union JSON form,
// as carried on the wire contract.
func (p *Plan) RawActions() ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(p.Actions))
	for _, a := range p.Actions {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		raw = append(raw, json.RawMessage(b))
	}
	return raw, nil
}

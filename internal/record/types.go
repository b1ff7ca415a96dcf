package record

// Source types for detail source links. Each value names the external
// system that owns the linked artifact.
const (
	SourceNoteVault    = "note_vault"
	SourceTaskTracker  = "task_tracker"
	SourceIssueTracker = "issue_tracker"
)

// NoteMutation records one note written to the note vault.
type NoteMutation struct {
	NotePath string `json:"note_path"`
	URI      string `json:"uri,omitempty"`
}

// CreatedTask records one task created in the task tracker.
type CreatedTask struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// CreatedIssue records one issue created in the issue tracker.
type CreatedIssue struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ExecutionResult is the outcome of running one plan. Buckets only ever
// grow during a single execution pass and are never mutated after the
// executor returns.
type ExecutionResult struct {
	TraceID       string         `json:"trace_id"`
	Notes         []NoteMutation `json:"notes"`
	CreatedTasks  []CreatedTask  `json:"created_tasks"`
	ClosedTasks   []string       `json:"closed_tasks"`
	CreatedIssues []CreatedIssue `json:"created_issues"`
	UpdatedIssues []string       `json:"updated_issues"`
	Warnings      []string       `json:"warnings"`
}

// NewExecutionResult returns a result with empty (non-nil) buckets.
func NewExecutionResult(traceID string) *ExecutionResult {
	return &ExecutionResult{
		TraceID:       traceID,
		Notes:         []NoteMutation{},
		CreatedTasks:  []CreatedTask{},
		ClosedTasks:   []string{},
		CreatedIssues: []CreatedIssue{},
		UpdatedIssues: []string{},
		Warnings:      []string{},
	}
}

// Warn appends a non-fatal skip reason.
func (r *ExecutionResult) Warn(message string) {
	r.Warnings = append(r.Warnings, message)
}

// RunRecord is the durable row describing one execution.
// One run <-> one plan <-> one execution result.
type RunRecord struct {
	ID           string `json:"id"`
	TraceID      string `json:"trace_id"`
	UserIntent   string `json:"user_intent"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	Summary      string `json:"summary,omitempty"`
	ActionsCount int    `json:"actions_count"`
}

// ActionRecord is the durable row describing one action inside a run.
type ActionRecord struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	ActionType string `json:"action_type"`
	Payload    string `json:"payload"` // action as JSON
	Status     string `json:"status"`
}

// DetailSourceLink is one cross-system correlation edge: a trace bound to
// an external artifact id. Derived deterministically from ExecutionResult
// contents, one link per artifact actually created.
type DetailSourceLink struct {
	ID         string            `json:"id"`
	TraceID    string            `json:"trace_id"`
	SourceType string            `json:"source_type"` // note_vault | task_tracker | issue_tracker
	ExternalID string            `json:"external_id"`
	URI        string            `json:"uri,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

// Verification statuses.
const (
	VerificationPassing = "passing"
	VerificationFailing = "failing"
)

// VerificationIssue is one named post-condition failure.
type VerificationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VerificationResult is one point-in-time verification pass over a run.
// Multiple passes per trace are retained as history.
type VerificationResult struct {
	ID        string              `json:"id"`
	TraceID   string              `json:"trace_id"`
	RunID     string              `json:"run_id"`
	Status    string              `json:"status"` // passing | failing
	Issues    []VerificationIssue `json:"issues"`
	CreatedAt string              `json:"created_at"`
}

// Evidence kinds and statuses for the append-only observability ledger.
const (
	EvidenceTraceSpan = "trace_span"
	EvidenceArtifact  = "artifact"

	EvidenceRecorded      = "recorded"
	EvidenceMissingConfig = "missing_config"
	EvidenceFailed        = "failed"
)

// Evidence is one recorded proof that an auxiliary observability step
// occurred (trace emission, artifact capture).
type Evidence struct {
	ID        string            `json:"id"`
	TraceID   string            `json:"trace_id"`
	Kind      string            `json:"kind"`   // trace_span | artifact
	Reference string            `json:"reference"`
	Status    string            `json:"status"` // recorded | missing_config | failed
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// EnvironmentDefaults holds the environment-supplied fallback ids the
// planner does not know. Empty string means "not configured".
type EnvironmentDefaults struct {
	TeamID     string `json:"default_team_id,omitempty"`
	ProjectID  string `json:"default_project_id,omitempty"`
	AssigneeID string `json:"default_assignee_id,omitempty"`
}

// PlanningContext is the derived, non-authoritative planner input for one
// trace. Keyed by trace id; recomputed from the latest event plus current
// environment, last write wins.
type PlanningContext struct {
	TraceID      string              `json:"trace_id"`
	Workflow     string              `json:"workflow"`
	Source       string              `json:"source"`
	EventType    string              `json:"event_type"`
	Capabilities []string            `json:"capabilities"`
	Defaults     EnvironmentDefaults `json:"environment_defaults"`
	CreatedAt    string              `json:"created_at"`
}

// Package executor walks a validated plan's action list, dispatches each
// action to the matching external capability, and produces an immutable
// execution result.
//
// Partial success is the normal case, not an error state: an action whose
// connector is not configured, or whose required default cannot be
// resolved, is skipped with a warning. A connector call that fails aborts
// the remaining actions and propagates - already-completed actions are
// still persisted. Action-level granularity, no automatic retry;
// plan-level atomicity is not guaranteed.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/captrail/internal/config"
	"github.com/roach88/captrail/internal/connector"
	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

// Connectors bundles the external capabilities. A nil field means the
// corresponding system is not configured.
type Connectors struct {
	Notes  connector.NoteStore
	Tasks  connector.TaskTracker
	Issues connector.IssueTracker
}

// CallError reports a failed connector call. Remaining actions in the
// plan were not attempted.
type CallError struct {
	ActionIndex int
	ActionType  string
	Err         error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("action %d (%s): connector call failed: %v", e.ActionIndex, e.ActionType, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Executor runs plans against the configured connectors and records every
// run in the store before returning.
type Executor struct {
	store  *store.Store
	conns  Connectors
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an Executor. The config supplies environment defaults,
// global tags, and the dry-run flag.
func New(st *store.Store, conns Connectors, cfg *config.Config) *Executor {
	return &Executor{
		store:  st,
		conns:  conns,
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Execute runs the plan's actions strictly in order and returns the
// collected result. The result has always been durably recorded (run row,
// action records, derived links, one transaction) by the time Execute
// returns - including the partial result accompanying a CallError.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (*record.ExecutionResult, record.RunRecord, error) {
	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	result := record.NewExecutionResult(p.TraceID)
	res := resolver{defaults: e.cfg.Defaults()}

	var callErr error
	for i, action := range p.Actions {
		if err := ctx.Err(); err != nil {
			callErr = fmt.Errorf("context cancelled: %w", err)
			break
		}
		if err := e.dispatch(ctx, i, action, res, result); err != nil {
			callErr = &CallError{ActionIndex: i, ActionType: action.ActionType(), Err: err}
			break
		}
	}

	finishedAt := time.Now().UTC().Format(time.RFC3339Nano)
	run, recordErr := e.store.RecordRun(ctx, p, result, startedAt, finishedAt)
	if recordErr != nil {
		if callErr != nil {
			return result, record.RunRecord{}, fmt.Errorf("record run after %v: %w", callErr, recordErr)
		}
		return result, record.RunRecord{}, recordErr
	}

	if callErr != nil {
		return result, run, callErr
	}
	return result, run, nil
}

// dispatch routes one action to its connector. The switch is exhaustive
// over the closed action set; a new variant is a compile-visible gap here.
func (e *Executor) dispatch(ctx context.Context, idx int, action plan.Action, res resolver, result *record.ExecutionResult) error {
	switch a := action.(type) {
	case plan.NoteUpsert:
		return e.noteUpsert(ctx, a, result)
	case plan.NoteAppendReceipt:
		return e.noteAppendReceipt(ctx, a, result)
	case plan.TaskCreate:
		return e.taskCreate(ctx, a, res, result)
	case plan.TaskClose:
		return e.taskClose(ctx, a, result)
	case plan.IssueCreate:
		return e.issueCreate(ctx, a, res, result)
	case plan.IssueUpdate:
		return e.issueUpdate(ctx, a, result)
	default:
		// Unreachable for validator-produced plans.
		result.Warn(fmt.Sprintf("action %d: unsupported action type %q skipped", idx, action.ActionType()))
		return nil
	}
}

func (e *Executor) noteUpsert(ctx context.Context, a plan.NoteUpsert, result *record.ExecutionResult) error {
	markdown := renderNote(a, unionTags(e.cfg.GlobalTags, a.Tags))

	if e.cfg.DryRun {
		e.logger.Info("dry-run: would upsert note", "note_path", a.NotePath)
		result.Warn(fmt.Sprintf("dry-run: skipped note.upsert for %s", a.NotePath))
		return nil
	}
	if e.conns.Notes == nil {
		result.Warn(fmt.Sprintf("note.upsert for %s skipped: no note vault configured", a.NotePath))
		return nil
	}

	ref, err := e.conns.Notes.Upsert(ctx, a.NotePath, markdown)
	if err != nil {
		return err
	}
	result.Notes = append(result.Notes, record.NoteMutation{NotePath: ref.NotePath, URI: ref.URI})
	return nil
}

func (e *Executor) noteAppendReceipt(ctx context.Context, a plan.NoteAppendReceipt, result *record.ExecutionResult) error {
	if e.cfg.DryRun {
		e.logger.Info("dry-run: would append receipt", "note_path", a.NotePath)
		result.Warn(fmt.Sprintf("dry-run: skipped note.append_receipt for %s", a.NotePath))
		return nil
	}
	if e.conns.Notes == nil {
		result.Warn(fmt.Sprintf("note.append_receipt for %s skipped: no note vault configured", a.NotePath))
		return nil
	}

	ref, err := e.conns.Notes.Append(ctx, a.NotePath, a.ReceiptMarkdown)
	if err != nil {
		return err
	}
	result.Notes = append(result.Notes, record.NoteMutation{NotePath: ref.NotePath, URI: ref.URI})
	return nil
}

func (e *Executor) taskCreate(ctx context.Context, a plan.TaskCreate, res resolver, result *record.ExecutionResult) error {
	input := connector.CreateTaskInput{
		Content:     a.Content,
		Description: a.Description,
		ProjectID:   res.projectID(a.ProjectID),
		Priority:    a.Priority,
		Labels:      unionTags(e.cfg.TodoistDefaultLabels, e.cfg.GlobalTags, a.Labels),
	}
	routeDue(a.Due, &input)

	if e.cfg.DryRun {
		e.logger.Info("dry-run: would create task", "content", a.Content)
		result.Warn(fmt.Sprintf("dry-run: skipped task.create for %q", a.Content))
		return nil
	}
	if e.conns.Tasks == nil {
		result.Warn(fmt.Sprintf("task.create for %q skipped: no task tracker configured", a.Content))
		return nil
	}

	task, err := e.conns.Tasks.CreateTask(ctx, input)
	if err != nil {
		return err
	}
	result.CreatedTasks = append(result.CreatedTasks, record.CreatedTask{ID: task.ID, Content: task.Content, URL: task.URL})
	return nil
}

func (e *Executor) taskClose(ctx context.Context, a plan.TaskClose, result *record.ExecutionResult) error {
	if e.cfg.DryRun {
		e.logger.Info("dry-run: would close task", "task_id", a.TaskID)
		result.Warn(fmt.Sprintf("dry-run: skipped task.close for %s", a.TaskID))
		return nil
	}
	if e.conns.Tasks == nil {
		result.Warn(fmt.Sprintf("task.close for %s skipped: no task tracker configured", a.TaskID))
		return nil
	}

	if err := e.conns.Tasks.CloseTask(ctx, a.TaskID); err != nil {
		return err
	}
	result.ClosedTasks = append(result.ClosedTasks, a.TaskID)
	return nil
}

func (e *Executor) issueCreate(ctx context.Context, a plan.IssueCreate, res resolver, result *record.ExecutionResult) error {
	teamID := res.teamID(a.TeamID)
	if teamID == "" {
		result.Warn(fmt.Sprintf("issue.create %q skipped: no team id in action and no default team configured", a.Title))
		return nil
	}

	input := connector.CreateIssueInput{
		TeamID:      teamID,
		Title:       a.Title,
		Description: issueDescription(a.Description, result.TraceID),
		AssigneeID:  res.assigneeID(a.AssigneeID),
		Labels:      unionTags(e.cfg.GlobalTags, a.Labels),
	}

	if e.cfg.DryRun {
		e.logger.Info("dry-run: would create issue", "title", a.Title)
		result.Warn(fmt.Sprintf("dry-run: skipped issue.create for %q", a.Title))
		return nil
	}
	if e.conns.Issues == nil {
		result.Warn(fmt.Sprintf("issue.create for %q skipped: no issue tracker configured", a.Title))
		return nil
	}

	issue, err := e.conns.Issues.CreateIssue(ctx, input)
	if err != nil {
		return err
	}
	result.CreatedIssues = append(result.CreatedIssues, record.CreatedIssue{ID: issue.ID, Title: issue.Title, URL: issue.URL})
	return nil
}

func (e *Executor) issueUpdate(ctx context.Context, a plan.IssueUpdate, result *record.ExecutionResult) error {
	if e.cfg.DryRun {
		e.logger.Info("dry-run: would update issue", "issue_id", a.IssueID)
		result.Warn(fmt.Sprintf("dry-run: skipped issue.update for %s", a.IssueID))
		return nil
	}
	if e.conns.Issues == nil {
		result.Warn(fmt.Sprintf("issue.update for %s skipped: no issue tracker configured", a.IssueID))
		return nil
	}

	patch := connector.IssuePatch{
		StateID:     a.Patch.StateID,
		Title:       a.Patch.Title,
		Description: a.Patch.Description,
	}
	if err := e.conns.Issues.UpdateIssue(ctx, a.IssueID, patch); err != nil {
		return err
	}
	result.UpdatedIssues = append(result.UpdatedIssues, a.IssueID)
	return nil
}

// renderNote builds the markdown body written to the vault: title
// heading, optional tag line, then the note body.
func renderNote(a plan.NoteUpsert, tags []string) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(a.Title)
	b.WriteString("\n\n")

	if len(tags) > 0 {
		hashed := make([]string, len(tags))
		for i, tag := range tags {
			hashed[i] = "#" + strings.ReplaceAll(tag, " ", "-")
		}
		b.WriteString("Tags: ")
		b.WriteString(strings.Join(hashed, " "))
		b.WriteString("\n\n")
	}

	b.WriteString(strings.TrimSpace(a.Markdown))
	b.WriteString("\n")
	return b.String()
}

// issueDescription appends the trace trailer to an issue description so
// the external artifact can be traced back to its capture.
func issueDescription(description, traceID string) string {
	trailer := fmt.Sprintf("---\ntraceId: %s\nsource: captrail", traceID)
	description = strings.TrimSpace(description)
	if description == "" {
		return trailer
	}
	return description + "\n\n" + trailer
}

package executor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/captrail/internal/config"
	"github.com/roach88/captrail/internal/connector"
	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

// fakeNotes records note writes in memory.
type fakeNotes struct {
	upserts map[string]string
	appends map[string]string
	err     error
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{upserts: map[string]string{}, appends: map[string]string{}}
}

func (f *fakeNotes) Upsert(_ context.Context, path, markdown string) (connector.NoteRef, error) {
	if f.err != nil {
		return connector.NoteRef{}, f.err
	}
	f.upserts[path] = markdown
	return connector.NoteRef{NotePath: path, URI: "obsidian://open?file=" + path}, nil
}

func (f *fakeNotes) Append(_ context.Context, path, markdown string) (connector.NoteRef, error) {
	if f.err != nil {
		return connector.NoteRef{}, f.err
	}
	f.appends[path] += markdown
	return connector.NoteRef{NotePath: path}, nil
}

// fakeTasks records created and closed tasks, failing on demand.
type fakeTasks struct {
	created []connector.CreateTaskInput
	closed  []string
	err     error
}

func (f *fakeTasks) CreateTask(_ context.Context, input connector.CreateTaskInput) (connector.Task, error) {
	if f.err != nil {
		return connector.Task{}, f.err
	}
	f.created = append(f.created, input)
	return connector.Task{ID: "task-1", Content: input.Content, URL: "https://tasks.example/1"}, nil
}

func (f *fakeTasks) CloseTask(_ context.Context, taskID string) error {
	if f.err != nil {
		return f.err
	}
	f.closed = append(f.closed, taskID)
	return nil
}

type fakeIssues struct {
	created []connector.CreateIssueInput
	updated map[string]connector.IssuePatch
	err     error
}

func newFakeIssues() *fakeIssues {
	return &fakeIssues{updated: map[string]connector.IssuePatch{}}
}

func (f *fakeIssues) CreateIssue(_ context.Context, input connector.CreateIssueInput) (connector.Issue, error) {
	if f.err != nil {
		return connector.Issue{}, f.err
	}
	f.created = append(f.created, input)
	return connector.Issue{ID: "ISS-1", Title: input.Title, URL: "https://issues.example/ISS-1"}, nil
}

func (f *fakeIssues) UpdateIssue(_ context.Context, issueID string, patch connector.IssuePatch) error {
	if f.err != nil {
		return f.err
	}
	f.updated[issueID] = patch
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "trail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func notePlan(traceID string) *plan.Plan {
	return &plan.Plan{
		Version:    plan.Version,
		TraceID:    traceID,
		UserIntent: "write one note",
		Actions: []plan.Action{
			plan.NoteUpsert{
				Type:     plan.TypeNoteUpsert,
				NotePath: "inbox/idea.md",
				Title:    "Idea",
				Markdown: "the idea",
				Tags:     []string{"inbox"},
			},
		},
		ReceiptSummary: "1 note",
	}
}

func TestExecute_DryRunSkipsEverythingWithOneWarningPerAction(t *testing.T) {
	st := openTestStore(t)
	notes := newFakeNotes()
	cfg := &config.Config{DryRun: true}

	exec := New(st, Connectors{Notes: notes}, cfg)
	result, run, err := exec.Execute(context.Background(), notePlan("trace-exec-dry1"))
	require.NoError(t, err)

	assert.Empty(t, notes.upserts, "dry-run must not touch the vault")
	assert.Empty(t, result.Notes)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "dry-run")
	assert.Contains(t, result.Warnings[0], "note.upsert")

	// The run is still recorded, with zero links.
	runs, err := st.ListRuns(context.Background(), "trace-exec-dry1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	links, err := st.ListLinks(context.Background(), "trace-exec-dry1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExecute_NoteUpsertWritesRenderedMarkdown(t *testing.T) {
	st := openTestStore(t)
	notes := newFakeNotes()
	cfg := &config.Config{GlobalTags: []string{"captured"}}

	exec := New(st, Connectors{Notes: notes}, cfg)
	result, _, err := exec.Execute(context.Background(), notePlan("trace-exec-note"))
	require.NoError(t, err)

	require.Len(t, result.Notes, 1)
	assert.Equal(t, "inbox/idea.md", result.Notes[0].NotePath)

	body := notes.upserts["inbox/idea.md"]
	assert.True(t, strings.HasPrefix(body, "# Idea\n\n"), "note starts with title heading: %q", body)
	assert.Contains(t, body, "#captured")
	assert.Contains(t, body, "#inbox")
	assert.Contains(t, body, "the idea")
}

func TestExecute_TaskCreateRoutesDateOnlyDue(t *testing.T) {
	st := openTestStore(t)
	tasks := &fakeTasks{}
	cfg := &config.Config{TodoistProjectID: "proj-default"}

	p := &plan.Plan{
		Version:    plan.Version,
		TraceID:    "trace-exec-due1",
		UserIntent: "schedule two tasks",
		Actions: []plan.Action{
			plan.TaskCreate{Type: plan.TypeTaskCreate, Content: "date only", Due: "2026-02-01"},
			plan.TaskCreate{Type: plan.TypeTaskCreate, Content: "datetime", Due: "2026-02-01T09:30:00Z"},
		},
		ReceiptSummary: "2 tasks",
	}

	exec := New(st, Connectors{Tasks: tasks}, cfg)
	_, _, err := exec.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, tasks.created, 2)
	assert.Equal(t, "2026-02-01", tasks.created[0].DueDate)
	assert.Empty(t, tasks.created[0].DueDatetime)
	assert.Empty(t, tasks.created[1].DueDate)
	assert.Equal(t, "2026-02-01T09:30:00Z", tasks.created[1].DueDatetime)

	// Empty project id resolves to the environment default.
	assert.Equal(t, "proj-default", tasks.created[0].ProjectID)
}

func TestExecute_TagUnionIsDedupedAndSorted(t *testing.T) {
	st := openTestStore(t)
	tasks := &fakeTasks{}
	cfg := &config.Config{
		GlobalTags:           []string{"captured", "inbox"},
		TodoistDefaultLabels: []string{"inbox"},
	}

	p := &plan.Plan{
		Version:    plan.Version,
		TraceID:    "trace-exec-tags",
		UserIntent: "one task",
		Actions: []plan.Action{
			plan.TaskCreate{Type: plan.TypeTaskCreate, Content: "tagged", Labels: []string{"alpha", "captured"}},
		},
		ReceiptSummary: "1 task",
	}

	exec := New(st, Connectors{Tasks: tasks}, cfg)
	_, _, err := exec.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, tasks.created, 1)
	assert.Equal(t, []string{"alpha", "captured", "inbox"}, tasks.created[0].Labels)
}

func TestExecute_MissingConnectorSkipsWithWarning(t *testing.T) {
	st := openTestStore(t)
	cfg := &config.Config{}

	exec := New(st, Connectors{}, cfg)
	result, _, err := exec.Execute(context.Background(), notePlan("trace-exec-noconn"))
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no note vault configured")
	assert.Empty(t, result.Notes)
}

func TestExecute_IssueCreateWithoutTeamSkips(t *testing.T) {
	st := openTestStore(t)
	issues := newFakeIssues()
	cfg := &config.Config{} // no default team

	p := &plan.Plan{
		Version:    plan.Version,
		TraceID:    "trace-exec-team",
		UserIntent: "file an issue",
		Actions: []plan.Action{
			plan.IssueCreate{Type: plan.TypeIssueCreate, Title: "No team anywhere"},
		},
		ReceiptSummary: "1 issue",
	}

	exec := New(st, Connectors{Issues: issues}, cfg)
	result, _, err := exec.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Empty(t, issues.created)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no team id")
}

func TestExecute_IssueCreateAppendsTraceTrailer(t *testing.T) {
	st := openTestStore(t)
	issues := newFakeIssues()
	cfg := &config.Config{LinearTeamID: "team-default", LinearAssigneeID: "user-default"}

	p := &plan.Plan{
		Version:    plan.Version,
		TraceID:    "trace-exec-trailer",
		UserIntent: "file an issue",
		Actions: []plan.Action{
			plan.IssueCreate{Type: plan.TypeIssueCreate, Title: "Importer bug", Description: "Importer drops rows."},
		},
		ReceiptSummary: "1 issue",
	}

	exec := New(st, Connectors{Issues: issues}, cfg)
	result, _, err := exec.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, issues.created, 1)
	created := issues.created[0]
	assert.Equal(t, "team-default", created.TeamID)
	assert.Equal(t, "user-default", created.AssigneeID)
	assert.Contains(t, created.Description, "traceId: trace-exec-trailer")
	assert.Contains(t, created.Description, "source: captrail")
	require.Len(t, result.CreatedIssues, 1)
	assert.Equal(t, "ISS-1", result.CreatedIssues[0].ID)
}

func TestExecute_ConnectorFailureAbortsButPersistsPartialRun(t *testing.T) {
	st := openTestStore(t)
	notes := newFakeNotes()
	tasks := &fakeTasks{err: errors.New("todoist: 503")}
	cfg := &config.Config{}

	p := &plan.Plan{
		Version:    plan.Version,
		TraceID:    "trace-exec-fail",
		UserIntent: "note then task then issue",
		Actions: []plan.Action{
			plan.NoteUpsert{Type: plan.TypeNoteUpsert, NotePath: "inbox/a.md", Title: "A", Markdown: "a"},
			plan.TaskCreate{Type: plan.TypeTaskCreate, Content: "will fail"},
			plan.IssueCreate{Type: plan.TypeIssueCreate, TeamID: "team-1", Title: "never reached"},
		},
		ReceiptSummary: "3 actions",
	}

	issues := newFakeIssues()
	exec := New(st, Connectors{Notes: notes, Tasks: tasks, Issues: issues}, cfg)
	result, run, err := exec.Execute(context.Background(), p)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, 1, callErr.ActionIndex)
	assert.Equal(t, plan.TypeTaskCreate, callErr.ActionType)

	// The note before the failure succeeded; the issue after it was
	// never attempted.
	require.Len(t, result.Notes, 1)
	assert.Empty(t, issues.created)

	// The partial run and its links are durable.
	require.NotEmpty(t, run.ID)
	links, lerr := st.ListLinks(context.Background(), "trace-exec-fail")
	require.NoError(t, lerr)
	require.Len(t, links, 1)
	assert.Equal(t, record.SourceNoteVault, links[0].SourceType)
}

func TestExecute_TaskCloseAndIssueUpdateProduceNoLinks(t *testing.T) {
	st := openTestStore(t)
	tasks := &fakeTasks{}
	issues := newFakeIssues()
	cfg := &config.Config{}

	p := &plan.Plan{
		Version:    plan.Version,
		TraceID:    "trace-exec-mut",
		UserIntent: "close and update",
		Actions: []plan.Action{
			plan.TaskClose{Type: plan.TypeTaskClose, TaskID: "task-77"},
			plan.IssueUpdate{Type: plan.TypeIssueUpdate, IssueID: "ISS-9", Patch: plan.IssuePatch{StateID: "done"}},
		},
		ReceiptSummary: "2 mutations",
	}

	exec := New(st, Connectors{Tasks: tasks, Issues: issues}, cfg)
	result, _, err := exec.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"task-77"}, result.ClosedTasks)
	assert.Equal(t, []string{"ISS-9"}, result.UpdatedIssues)
	assert.Equal(t, connector.IssuePatch{StateID: "done"}, issues.updated["ISS-9"])

	// Mutating existing artifacts leaves no detail source links: nothing
	// new was created.
	links, err := st.ListLinks(context.Background(), "trace-exec-mut")
	require.NoError(t, err)
	assert.Empty(t, links)
}

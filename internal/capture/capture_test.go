package capture

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
	"github.com/roach88/captrail/internal/executor"
	"github.com/roach88/captrail/internal/observe"
	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/planctx"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/snapshot"
	"github.com/roach88/captrail/internal/store"
	"github.com/roach88/captrail/internal/verify"
)

// fixedPlanner returns a canned plan regardless of input text.
type fixedPlanner struct {
	plan *plan.Plan
	err  error
}

func (p *fixedPlanner) GeneratePlan(context.Context, string) (*plan.Plan, error) {
	return p.plan, p.err
}

type memoryNotes struct {
	upserts   map[string]string
	appends   map[string]string
	err       error
	appendErr error
}

func newMemoryNotes() *memoryNotes {
	return &memoryNotes{upserts: map[string]string{}, appends: map[string]string{}}
}

func (m *memoryNotes) Upsert(_ context.Context, path, markdown string) (connector.NoteRef, error) {
	if m.err != nil {
		return connector.NoteRef{}, m.err
	}
	m.upserts[path] = markdown
	return connector.NoteRef{NotePath: path}, nil
}

func (m *memoryNotes) Append(_ context.Context, path, markdown string) (connector.NoteRef, error) {
	if m.err != nil {
		return connector.NoteRef{}, m.err
	}
	if m.appendErr != nil {
		return connector.NoteRef{}, m.appendErr
	}
	m.appends[path] += markdown
	return connector.NoteRef{NotePath: path}, nil
}

type stubTasks struct{ err error }

func (s *stubTasks) CreateTask(_ context.Context, input connector.CreateTaskInput) (connector.Task, error) {
	if s.err != nil {
		return connector.Task{}, s.err
	}
	return connector.Task{ID: "task-1", Content: input.Content}, nil
}

func (s *stubTasks) CloseTask(context.Context, string) error { return s.err }

func capturePlan(traceID string) *plan.Plan {
	return &plan.Plan{
		Version:    plan.Version,
		TraceID:    traceID,
		UserIntent: "capture an idea",
		Actions: []plan.Action{
			plan.NoteUpsert{Type: plan.TypeNoteUpsert, NotePath: "inbox/idea.md", Title: "Idea", Markdown: "the idea"},
		},
		ReceiptSummary: "1 note",
	}
}

type fixture struct {
	service *Service
	store   *store.Store
	notes   *memoryNotes
	cfg     *config.Config
}

func newFixture(t *testing.T, planner Planner, notes *memoryNotes, tasks connector.TaskTracker) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "trail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		VaultPath:         "/vault",
		EvalsDir:          filepath.Join(t.TempDir(), "evals"),
		TelemetryEndpoint: "https://telemetry.internal/v1/spans",
	}

	var noteStore connector.NoteStore
	if notes != nil {
		noteStore = notes
	}
	exec := executor.New(st, executor.Connectors{Notes: noteStore, Tasks: tasks}, cfg)
	svc := New(
		planner,
		exec,
		verify.New(st),
		snapshot.NewRecorder(st, cfg.EvalsDir),
		observe.NewRecorder(st),
		planctx.New(st, cfg),
		noteStore,
		cfg,
	)
	return &fixture{service: svc, store: st, notes: notes, cfg: cfg}
}

func TestRun_HappyPathEndToEnd(t *testing.T) {
	notes := newMemoryNotes()
	f := newFixture(t, &fixedPlanner{plan: capturePlan("trace-cap-0001")}, notes, nil)
	ctx := context.Background()

	result, err := f.service.Run(ctx, "remember the idea")
	require.NoError(t, err)

	// The note was written and the receipt appended to it.
	assert.Contains(t, notes.upserts, "inbox/idea.md")
	assert.Equal(t, "inbox/idea.md", result.ReceiptPath)
	assert.Empty(t, result.ReceiptSkip)
	appended := notes.appends["inbox/idea.md"]
	assert.Contains(t, appended, "## Receipt")
	assert.Contains(t, appended, "trace-cap-0001")

	// The anchoring event was ingested.
	ev, err := f.store.LatestEvent(ctx, "trace-cap-0001")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "manual", ev.Source)
	assert.Equal(t, "capture.text", ev.Type)

	// Snapshot written, and the whole trail verifies clean.
	require.True(t, result.Snapshot.OK())
	assert.True(t, strings.HasPrefix(result.Snapshot.Path, f.cfg.EvalsDir))
	require.NotNil(t, result.Verification)
	assert.Equal(t, record.VerificationPassing, result.Verification.Status)
}

func TestRun_PlannerFailureWritesNothing(t *testing.T) {
	notes := newMemoryNotes()
	f := newFixture(t, &fixedPlanner{err: errors.New("planner offline")}, notes, nil)

	result, err := f.service.Run(context.Background(), "anything")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, notes.upserts)

	runs, lerr := f.store.ListRuns(context.Background(), "")
	require.NoError(t, lerr)
	assert.Empty(t, runs)
}

func TestRun_DryRunSkipsReceiptWithReason(t *testing.T) {
	notes := newMemoryNotes()
	f := newFixture(t, &fixedPlanner{plan: capturePlan("trace-cap-0002")}, notes, nil)
	f.cfg.DryRun = true

	result, err := f.service.Run(context.Background(), "dry idea")
	require.NoError(t, err)

	assert.Empty(t, notes.upserts)
	assert.Empty(t, notes.appends)
	assert.Equal(t, SkipDryRun, result.ReceiptSkip)
	require.Len(t, result.Execution.Warnings, 1)
	assert.Contains(t, result.Execution.Warnings[0], "dry-run")

	// Nothing external was created, so the trail cannot verify clean.
	assert.Equal(t, record.VerificationFailing, result.Verification.Status)
}

func TestRun_NoReceiptFlag(t *testing.T) {
	notes := newMemoryNotes()
	f := newFixture(t, &fixedPlanner{plan: capturePlan("trace-cap-0003")}, notes, nil)
	f.service.NoReceipt = true

	result, err := f.service.Run(context.Background(), "idea")
	require.NoError(t, err)

	assert.Equal(t, SkipDisabled, result.ReceiptSkip)
	assert.Empty(t, notes.appends)
	// The note itself is still written; only the receipt stage is off.
	assert.Contains(t, notes.upserts, "inbox/idea.md")
}

func TestRun_ConnectorFailureStillSnapshotsAndVerifies(t *testing.T) {
	notes := newMemoryNotes()
	p := capturePlan("trace-cap-0004")
	p.Actions = append(p.Actions, plan.TaskCreate{Type: plan.TypeTaskCreate, Content: "will fail"})
	p.ReceiptSummary = "1 note, 1 task"

	f := newFixture(t, &fixedPlanner{plan: p}, notes, &stubTasks{err: errors.New("todoist: 503")})

	result, err := f.service.Run(context.Background(), "idea plus task")
	require.Error(t, err, "the connector failure propagates")
	require.NotNil(t, result, "the partial result is still returned")

	assert.Equal(t, SkipExecutionFail, result.ReceiptSkip)
	require.True(t, result.Snapshot.OK(), "snapshot still records the partial run")

	payload, lerr := snapshot.NewRecorder(f.store, f.cfg.EvalsDir).LoadLatest("trace-cap-0004")
	require.NoError(t, lerr)
	require.NotNil(t, payload)
	assert.Equal(t, "FAILED", payload.Run.State)
	require.Len(t, payload.Evaluations, 1)
	assert.Equal(t, "FAIL", payload.Evaluations[0].Verdict)

	// The note written before the failure is durable and linked.
	links, lerr := f.store.ListLinks(context.Background(), "trace-cap-0004")
	require.NoError(t, lerr)
	require.Len(t, links, 1)
	assert.Equal(t, record.SourceNoteVault, links[0].SourceType)
}

func TestRun_ReceiptAppendFailureIsWarningNotError(t *testing.T) {
	notes := newMemoryNotes()
	notes.appendErr = errors.New("vault: read-only")
	f := newFixture(t, &fixedPlanner{plan: capturePlan("trace-cap-0005")}, notes, nil)

	result, err := f.service.Run(context.Background(), "idea")
	require.NoError(t, err)

	assert.Contains(t, notes.upserts, "inbox/idea.md")
	assert.Empty(t, result.ReceiptPath)
	assert.Empty(t, result.ReceiptSkip)
	require.NotEmpty(t, result.Execution.Warnings)
	assert.Contains(t, result.Execution.Warnings[len(result.Execution.Warnings)-1], "failed to append receipt")
}

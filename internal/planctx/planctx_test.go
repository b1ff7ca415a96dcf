package planctx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/captrail/internal/config"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

func testService(t *testing.T, cfg *config.Config) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "trail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, cfg), st
}

func testEvent(traceID string) *record.EventEnvelope {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return &record.EventEnvelope{
		EventID:    uuid.NewString(),
		TraceID:    traceID,
		Source:     "obsidian",
		Type:       "note.captured",
		OccurredAt: now,
		ReceivedAt: now,
		Context:    record.EventContext{UserID: "local", Workflow: "capture"},
	}
}

func TestIngest_RejectsInvalidEnvelope(t *testing.T) {
	svc, _ := testService(t, &config.Config{})

	ev := testEvent("trace-pc-0001")
	ev.Source = "carrier-pigeon"
	ev.OccurredAt = ""

	_, err := svc.Ingest(context.Background(), ev)
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.GreaterOrEqual(t, len(ingestErr.Violations), 2, "all violations reported together")
}

func TestIngest_UpsertsContextAsSideEffect(t *testing.T) {
	cfg := &config.Config{
		VaultPath:    "/vault",
		TodoistToken: "tok",
	}
	svc, st := testService(t, cfg)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, testEvent("trace-pc-0002"))
	require.NoError(t, err)

	pc, err := st.PlanningContext(ctx, "trace-pc-0002")
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, "capture", pc.Workflow)
	assert.Equal(t, "obsidian", pc.Source)
	assert.Equal(t, "note.captured", pc.EventType)
	assert.Equal(t, []string{"note_vault", "task_tracker"}, pc.Capabilities)
}

func TestIngest_SameEventTwiceYieldsOneContext(t *testing.T) {
	svc, st := testService(t, &config.Config{VaultPath: "/vault"})
	ctx := context.Background()

	ev := testEvent("trace-pc-0003")
	_, err := svc.Ingest(ctx, ev)
	require.NoError(t, err)
	first, err := st.PlanningContext(ctx, ev.TraceID)
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, ev)
	require.NoError(t, err)
	second, err := st.PlanningContext(ctx, ev.TraceID)
	require.NoError(t, err)

	require.NotNil(t, second)
	assert.Equal(t, first.TraceID, second.TraceID)
	assert.Equal(t, first.Capabilities, second.Capabilities)
	assert.Equal(t, first.Defaults, second.Defaults)

	events, err := st.ListEvents(ctx, ev.TraceID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPlanningContext_NilWithoutEvents(t *testing.T) {
	svc, _ := testService(t, &config.Config{})

	pc, err := svc.PlanningContext(context.Background(), "trace-pc-none")
	require.NoError(t, err)
	assert.Nil(t, pc)
}

func TestRebuild_PicksUpConfigChanges(t *testing.T) {
	cfg := &config.Config{VaultPath: "/vault"}
	svc, _ := testService(t, cfg)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, testEvent("trace-pc-0004"))
	require.NoError(t, err)

	// A tracker token shows up later; rebuild must reflect it.
	cfg.LinearToken = "tok"
	cfg.LinearTeamID = "team-9"

	pc, err := svc.Rebuild(ctx, "trace-pc-0004")
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Contains(t, pc.Capabilities, "issue_tracker")
	assert.Equal(t, "team-9", pc.Defaults.TeamID)
}

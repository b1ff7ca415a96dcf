// Package snapshot assembles and persists the full wire-contract
// artifact for a trace: event + plan + run + links + evaluation, one file
// per snapshot under a trace-scoped directory.
//
// Snapshotting is best-effort by design: any assembly or write failure is
// logged and returned as a structured Outcome, never propagated, so the
// capture workflow that triggered it cannot be aborted by a recording
// problem.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/captrail/internal/contract"
	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

// ErrNoEvent marks a snapshot requested for a trace with no ingested
// event. A snapshot without its originating event is invalid, so assembly
// fails fast and no file is written.
var ErrNoEvent = errors.New("no event ingested for trace")

// Input bundles everything a snapshot captures. Verification is optional:
// the capture workflow snapshots before its verification pass so the
// verifier can check for the artifact, and supplies Failed instead.
type Input struct {
	Plan         *plan.Plan
	Execution    *record.ExecutionResult
	Verification *record.VerificationResult
	Run          record.RunRecord
	Links        []record.DetailSourceLink

	// Failed marks a run aborted by a connector failure.
	Failed bool
}

// Outcome reports the snapshot attempt. Err is set (and Path empty) when
// the snapshot was not written; callers can assert on it without the
// failure ever aborting their workflow.
type Outcome struct {
	Path string
	Err  error
}

// OK reports whether the snapshot file was written.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Recorder writes snapshot artifacts under a base directory.
type Recorder struct {
	store  *store.Store
	dir    string
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing under dir.
func NewRecorder(st *store.Store, dir string) *Recorder {
	return &Recorder{store: st, dir: dir, logger: slog.Default()}
}

// Record assembles the versioned contract payload and writes it as one
// file: <dir>/<traceID>/<unix_ms>-<uuid>.json. The millisecond prefix
// gives snapshots natural chronological ordering; the random suffix makes
// each name unique. Files are never overwritten.
func (r *Recorder) Record(ctx context.Context, input Input) Outcome {
	path, err := r.record(ctx, input)
	if err != nil {
		r.logger.Warn("failed to record evaluation snapshot", "trace_id", input.Plan.TraceID, "error", err)
		return Outcome{Err: err}
	}
	return Outcome{Path: path}
}

func (r *Recorder) record(ctx context.Context, input Input) (string, error) {
	event, err := r.store.LatestEvent(ctx, input.Plan.TraceID)
	if err != nil {
		return "", fmt.Errorf("look up event: %w", err)
	}
	if event == nil {
		return "", fmt.Errorf("%w: %s", ErrNoEvent, input.Plan.TraceID)
	}

	payload, err := buildTraceResponse(input, event)
	if err != nil {
		return "", err
	}
	if violations := payload.Validate(); len(violations) > 0 {
		return "", fmt.Errorf("snapshot payload violates contract: %v", violations[0])
	}

	traceDir := filepath.Join(r.dir, input.Plan.TraceID)
	if err := os.MkdirAll(traceDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s.json", time.Now().UnixMilli(), uuid.NewString())
	path := filepath.Join(traceDir, name)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadLatest re-reads and re-validates the newest snapshot for a trace.
// Returns nil when no snapshot exists. This is the replay path: the file
// on disk must still satisfy the contract it was written under.
func (r *Recorder) LoadLatest(traceID string) (*contract.TraceResponse, error) {
	dir := filepath.Join(r.dir, traceID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	latest := names[len(names)-1]

	data, err := os.ReadFile(filepath.Join(dir, latest))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", latest, err)
	}

	var payload contract.TraceResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", latest, err)
	}
	if violations := payload.Validate(); len(violations) > 0 {
		return nil, fmt.Errorf("snapshot %s violates contract: %v", latest, violations[0])
	}
	return &payload, nil
}

func buildTraceResponse(input Input, event *record.EventEnvelope) (*contract.TraceResponse, error) {
	rawActions, err := input.Plan.RawActions()
	if err != nil {
		return nil, fmt.Errorf("encode plan actions: %w", err)
	}

	source := event.Source
	if !contract.EventSources[source] {
		source = "manual"
	}

	return &contract.TraceResponse{
		Event: contract.Event{
			Version:    contract.Version,
			EventID:    event.EventID,
			Source:     source,
			Type:       event.Type,
			OccurredAt: event.OccurredAt,
			ReceivedAt: event.ReceivedAt,
			TraceID:    event.TraceID,
			Payload:    event.Payload,
			Context: contract.EventContext{
				UserID:      event.Context.UserID,
				WorkspaceID: event.Context.WorkspaceID,
				Workflow:    event.Context.Workflow,
				Priority:    event.Context.Priority,
			},
		},
		Plan: contract.Plan{
			Version:        contract.Version,
			TraceID:        input.Plan.TraceID,
			UserIntent:     input.Plan.UserIntent,
			Assumptions:    input.Plan.Assumptions,
			Actions:        rawActions,
			ReceiptSummary: input.Plan.ReceiptSummary,
		},
		Run: contract.ExecutionRun{
			Version:    contract.Version,
			RunID:      input.Run.ID,
			TraceID:    input.Run.TraceID,
			PlanID:     planID(input.Plan.TraceID),
			State:      runState(input),
			StartedAt:  input.Run.StartedAt,
			FinishedAt: input.Run.FinishedAt,
			RetryCount: 0,
		},
		Links:       buildLinkGraph(input.Plan.TraceID, input.Links),
		Evaluations: []contract.EvalReport{buildEvalReport(input)},
	}, nil
}

func runState(input Input) string {
	if input.Failed {
		return "FAILED"
	}
	return "DONE"
}

func planID(traceID string) string {
	return traceID + "-plan"
}

func buildLinkGraph(traceID string, links []record.DetailSourceLink) contract.LinkGraph {
	graph := contract.LinkGraph{
		Version:  contract.Version,
		TraceID:  traceID,
		TaskIDs:  []string{},
		IssueIDs: []string{},
	}
	for _, link := range links {
		switch link.SourceType {
		case record.SourceNoteVault:
			if graph.NotePath == "" {
				graph.NotePath = link.ExternalID
			}
		case record.SourceTaskTracker:
			graph.TaskIDs = append(graph.TaskIDs, link.ExternalID)
		case record.SourceIssueTracker:
			graph.IssueIDs = append(graph.IssueIDs, link.ExternalID)
		}
	}
	return graph
}

// buildEvalReport derives the per-category scores coarsely from the
// overall verdict: every category gets 5 on pass and 1 on fail. The
// verdict comes from the verification when one is supplied, otherwise
// from whether the run completed.
func buildEvalReport(input Input) contract.EvalReport {
	traceID := input.Plan.TraceID
	passing := !input.Failed
	if input.Verification != nil {
		passing = passing && input.Verification.Status == record.VerificationPassing
	}
	score := 1
	verdict := "FAIL"
	if passing {
		score = 5
		verdict = "PASS"
	}
	return contract.EvalReport{
		Version:      contract.Version,
		EvalID:       uuid.NewString(),
		TraceID:      traceID,
		PlanID:       planID(traceID),
		OverallScore: score,
		Verdict:      verdict,
		CategoryScores: contract.CategoryScores{
			IntentAlignment:         score,
			ActionMinimalism:        score,
			DeterminismIdempotency:  score,
			DetailSourceCorrectness: score,
			CrossSystemIntegrity:    score,
			VerificationCoverage:    score,
			FailureHandlingClarity:  score,
		},
		Flags: contract.EvalFlags{
			FatalSchema:    !passing,
			FatalConnector: !passing,
		},
	}
}

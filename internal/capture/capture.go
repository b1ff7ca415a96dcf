// Package capture orchestrates the end-to-end workflow for one captured
// thought: plan, execute, append the receipt, verify, and snapshot. Each
// stage after planning is recoverable - a failed receipt append or
// snapshot is surfaced on the result, never allowed to lose the run that
// already happened.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

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

// Planner turns free-form captured text into a validated plan.
// Implementations own trace id assignment.
type Planner interface {
	GeneratePlan(ctx context.Context, text string) (*plan.Plan, error)
}

// Receipt skip reasons, recorded on the result when no receipt was
// appended.
const (
	SkipDryRun        = "dry_run_enabled"
	SkipNoConnector   = "missing_note_connector"
	SkipNoNoteAction  = "no_note_action"
	SkipExecutionFail = "execution_failed"
	SkipDisabled      = "receipt_disabled"
)

// Result is the outcome of one capture workflow.
type Result struct {
	Plan         *plan.Plan
	Execution    *record.ExecutionResult
	Run          record.RunRecord
	Verification *record.VerificationResult
	Snapshot     snapshot.Outcome
	ReceiptPath  string
	ReceiptSkip  string
}

// Service wires the capture workflow stages together.
type Service struct {
	// NoReceipt disables the receipt write-back stage entirely.
	NoReceipt bool

	planner   Planner
	executor  *executor.Executor
	verifier  *verify.Verifier
	snapshots *snapshot.Recorder
	evidence  *observe.Recorder
	events    *planctx.Service
	notes     connector.NoteStore
	cfg       *config.Config
	logger    *slog.Logger
}

// New creates a capture Service. notes may be nil when no vault is
// configured; the receipt stage then records a skip instead of failing.
func New(planner Planner, exec *executor.Executor, verifier *verify.Verifier, snapshots *snapshot.Recorder, evidence *observe.Recorder, events *planctx.Service, notes connector.NoteStore, cfg *config.Config) *Service {
	return &Service{
		planner:   planner,
		executor:  exec,
		verifier:  verifier,
		snapshots: snapshots,
		evidence:  evidence,
		events:    events,
		notes:     notes,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// Run executes the full capture workflow for one piece of text. A
// planning failure aborts before anything is written. Once execution has
// started, every later stage runs against whatever was persisted, and a
// connector failure is returned only after verification and snapshot
// have recorded the partial run.
func (s *Service) Run(ctx context.Context, text string) (*Result, error) {
	p, err := s.planner.GeneratePlan(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	s.logger.Info("plan generated", "trace_id", p.TraceID, "actions", len(p.Actions))

	// Every capture is anchored by an ingested event: it is what the
	// snapshot correlates against, and what rebuilds the planning
	// context later.
	if _, err := s.events.Ingest(ctx, captureEvent(p, text)); err != nil {
		return nil, fmt.Errorf("ingest capture event: %w", err)
	}

	result, run, execErr := s.executor.Execute(ctx, p)
	out := &Result{Plan: p, Execution: result, Run: run}

	if execErr != nil {
		s.logger.Error("execution failed", "trace_id", p.TraceID, "error", execErr)
		out.ReceiptSkip = SkipExecutionFail
	} else {
		out.ReceiptPath, out.ReceiptSkip = s.appendReceipt(ctx, p, result)
	}

	if _, err := s.evidence.RecordTraceSpan(ctx, p.TraceID, s.cfg.TelemetryEndpoint); err != nil {
		return out, fmt.Errorf("record trace evidence: %w", err)
	}

	// Snapshot before verification so the verifier sees the artifact
	// evidence it checks for.
	out.Snapshot = s.snapshots.Record(ctx, snapshot.Input{
		Plan:      p,
		Execution: result,
		Run:       run,
		Links:     store.BuildLinks(result, run.FinishedAt),
		Failed:    execErr != nil,
	})
	if out.Snapshot.OK() {
		if _, err := s.evidence.RecordArtifact(ctx, p.TraceID, out.Snapshot.Path); err != nil {
			return out, fmt.Errorf("record artifact evidence: %w", err)
		}
	} else {
		if _, err := s.evidence.RecordArtifactFailure(ctx, p.TraceID, out.Snapshot.Err); err != nil {
			return out, fmt.Errorf("record artifact evidence: %w", err)
		}
	}

	verification, err := s.verifier.Verify(ctx, p.TraceID, run.ID)
	if err != nil {
		return out, fmt.Errorf("verify trace %s: %w", p.TraceID, err)
	}
	out.Verification = verification

	return out, execErr
}

// captureEvent builds the synthetic manual event that anchors a local
// capture in the trail.
func captureEvent(p *plan.Plan, text string) *record.EventEnvelope {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	payload, _ := json.Marshal(map[string]string{"text": text})
	return &record.EventEnvelope{
		EventID:    uuid.NewString(),
		TraceID:    p.TraceID,
		Source:     "manual",
		Type:       "capture.text",
		OccurredAt: now,
		ReceivedAt: now,
		Payload:    payload,
		Context: record.EventContext{
			UserID:   "local",
			Workflow: "capture",
		},
	}
}

// appendReceipt adds the execution receipt to the plan's target note.
// Returns the note path written, or a skip reason when nothing was
// appended.
func (s *Service) appendReceipt(ctx context.Context, p *plan.Plan, result *record.ExecutionResult) (string, string) {
	if s.NoReceipt {
		return "", SkipDisabled
	}
	target := receiptTarget(p)
	if target == "" {
		return "", SkipNoNoteAction
	}
	if s.cfg.DryRun {
		s.logger.Info("dry-run: skipped receipt append", "trace_id", p.TraceID, "note_path", target)
		return "", SkipDryRun
	}
	if s.notes == nil {
		return "", SkipNoConnector
	}

	ref, err := s.notes.Append(ctx, target, "\n"+renderReceipt(p, result))
	if err != nil {
		// The run itself succeeded; a failed receipt is a warning,
		// not a workflow failure.
		s.logger.Warn("failed to append receipt", "trace_id", p.TraceID, "note_path", target, "error", err)
		result.Warn(fmt.Sprintf("failed to append receipt to %s: %v", target, err))
		return "", ""
	}
	return ref.NotePath, ""
}

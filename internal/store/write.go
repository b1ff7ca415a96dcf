package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/record"
)

// RecordRun persists one execution: the run row, one action record per
// plan action, and every link derived from the result - in a single
// transaction. A reader never observes a run without its complete
// action/link set.
func (s *Store) RecordRun(ctx context.Context, p *plan.Plan, result *record.ExecutionResult, startedAt, finishedAt string) (record.RunRecord, error) {
	run := record.RunRecord{
		ID:           uuid.NewString(),
		TraceID:      result.TraceID,
		UserIntent:   p.UserIntent,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Summary:      p.ReceiptSummary,
		ActionsCount: len(p.Actions),
	}

	links := BuildLinks(result, time.Now().UTC().Format(time.RFC3339Nano))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return record.RunRecord{}, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_runs
		(id, trace_id, plan_user_intent, started_at, finished_at, summary, actions_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.TraceID,
		run.UserIntent,
		run.StartedAt,
		run.FinishedAt,
		nullable(run.Summary),
		run.ActionsCount,
	)
	if err != nil {
		return record.RunRecord{}, fmt.Errorf("record run: insert run: %w", err)
	}

	for _, action := range p.Actions {
		payload, err := json.Marshal(action)
		if err != nil {
			return record.RunRecord{}, fmt.Errorf("record run: marshal action: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO action_records
			(id, run_id, action_type, payload, status)
			VALUES (?, ?, ?, ?, ?)
		`,
			uuid.NewString(),
			run.ID,
			action.ActionType(),
			string(payload),
			"success",
		)
		if err != nil {
			return record.RunRecord{}, fmt.Errorf("record run: insert action: %w", err)
		}
	}

	for _, link := range links {
		metadata, err := marshalMetadata(link.Metadata)
		if err != nil {
			return record.RunRecord{}, fmt.Errorf("record run: marshal link metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO detail_source_links
			(id, trace_id, source_type, external_id, uri, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			link.ID,
			link.TraceID,
			link.SourceType,
			link.ExternalID,
			nullable(link.URI),
			metadata,
			link.CreatedAt,
		)
		if err != nil {
			return record.RunRecord{}, fmt.Errorf("record run: insert link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return record.RunRecord{}, fmt.Errorf("record run: commit: %w", err)
	}

	return run, nil
}

// BuildLinks derives the detail source links from an execution result:
// exactly one link per artifact actually created, zero otherwise. Pure
// except for id generation.
func BuildLinks(result *record.ExecutionResult, createdAt string) []record.DetailSourceLink {
	var links []record.DetailSourceLink

	for _, note := range result.Notes {
		links = append(links, record.DetailSourceLink{
			ID:         uuid.NewString(),
			TraceID:    result.TraceID,
			SourceType: record.SourceNoteVault,
			ExternalID: note.NotePath,
			URI:        note.URI,
			CreatedAt:  createdAt,
		})
	}
	for _, task := range result.CreatedTasks {
		links = append(links, record.DetailSourceLink{
			ID:         uuid.NewString(),
			TraceID:    result.TraceID,
			SourceType: record.SourceTaskTracker,
			ExternalID: task.ID,
			URI:        task.URL,
			Metadata:   map[string]string{"content": task.Content},
			CreatedAt:  createdAt,
		})
	}
	for _, issue := range result.CreatedIssues {
		links = append(links, record.DetailSourceLink{
			ID:         uuid.NewString(),
			TraceID:    result.TraceID,
			SourceType: record.SourceIssueTracker,
			ExternalID: issue.ID,
			URI:        issue.URL,
			Metadata:   map[string]string{"title": issue.Title},
			CreatedAt:  createdAt,
		})
	}

	return links
}

// UpsertEvent inserts or replaces an event envelope keyed by event id.
func (s *Store) UpsertEvent(ctx context.Context, ev *record.EventEnvelope) error {
	contextJSON, err := json.Marshal(ev.Context)
	if err != nil {
		return fmt.Errorf("upsert event: marshal context: %w", err)
	}

	var payload any
	if len(ev.Payload) > 0 {
		payload = string(ev.Payload)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events
		(event_id, trace_id, source, type, occurred_at, received_at, payload, context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			trace_id=excluded.trace_id,
			source=excluded.source,
			type=excluded.type,
			occurred_at=excluded.occurred_at,
			received_at=excluded.received_at,
			payload=excluded.payload,
			context=excluded.context
	`,
		ev.EventID,
		ev.TraceID,
		ev.Source,
		ev.Type,
		ev.OccurredAt,
		ev.ReceivedAt,
		payload,
		string(contextJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// UpsertPlanningContext inserts or replaces the planning context for a
// trace. Trace id is the natural key; last write wins.
func (s *Store) UpsertPlanningContext(ctx context.Context, pc *record.PlanningContext) error {
	snapshot, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("upsert planning context: marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO planning_contexts
		(trace_id, workflow, source, event_type, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id) DO UPDATE SET
			workflow=excluded.workflow,
			source=excluded.source,
			event_type=excluded.event_type,
			snapshot=excluded.snapshot,
			created_at=excluded.created_at
	`,
		pc.TraceID,
		pc.Workflow,
		pc.Source,
		pc.EventType,
		string(snapshot),
		pc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert planning context: %w", err)
	}
	return nil
}

// InsertVerification appends one verification result row. Results are
// history, never overwritten; repeated verification of the same run
// produces multiple rows by design.
func (s *Store) InsertVerification(ctx context.Context, vr *record.VerificationResult) error {
	issues, err := json.Marshal(vr.Issues)
	if err != nil {
		return fmt.Errorf("insert verification: marshal issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_results
		(id, trace_id, run_id, status, issues, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		vr.ID,
		vr.TraceID,
		vr.RunID,
		vr.Status,
		string(issues),
		vr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

// InsertEvidence appends one row to the observability evidence ledger.
func (s *Store) InsertEvidence(ctx context.Context, ev *record.Evidence) error {
	metadata, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return fmt.Errorf("insert evidence: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO observability_evidence
		(id, trace_id, kind, reference, status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.TraceID,
		ev.Kind,
		ev.Reference,
		ev.Status,
		metadata,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/captrail/internal/record"
)

// ListRuns returns execution run records, newest first. An empty traceID
// returns runs across all traces.
func (s *Store) ListRuns(ctx context.Context, traceID string) ([]record.RunRecord, error) {
	query := `
		SELECT id, trace_id, plan_user_intent, started_at, finished_at, summary, actions_count
		FROM execution_runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
	`
	args := []any{}
	if traceID != "" {
		query = `
			SELECT id, trace_id, plan_user_intent, started_at, finished_at, summary, actions_count
			FROM execution_runs
			WHERE trace_id = ?
			ORDER BY started_at DESC, id COLLATE BINARY ASC
		`
		args = append(args, traceID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []record.RunRecord{}
	for rows.Next() {
		var run record.RunRecord
		var summary sql.NullString
		if err := rows.Scan(&run.ID, &run.TraceID, &run.UserIntent, &run.StartedAt, &run.FinishedAt, &summary, &run.ActionsCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Summary = summary.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListActions returns the action records for one run in insertion order.
func (s *Store) ListActions(ctx context.Context, runID string) ([]record.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, action_type, payload, status
		FROM action_records
		WHERE run_id = ?
		ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []record.ActionRecord{}
	for rows.Next() {
		var a record.ActionRecord
		if err := rows.Scan(&a.ID, &a.RunID, &a.ActionType, &a.Payload, &a.Status); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// ListLinks returns the detail source links for a trace, oldest first.
func (s *Store) ListLinks(ctx context.Context, traceID string) ([]record.DetailSourceLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace_id, source_type, external_id, uri, metadata, created_at
		FROM detail_source_links
		WHERE trace_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []record.DetailSourceLink{}
	for rows.Next() {
		var link record.DetailSourceLink
		var uri, metadata sql.NullString
		if err := rows.Scan(&link.ID, &link.TraceID, &link.SourceType, &link.ExternalID, &uri, &metadata, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		link.URI = uri.String
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &link.Metadata); err != nil {
				return nil, fmt.Errorf("decode link metadata: %w", err)
			}
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// LatestEvent returns the most recent event for a trace by occurrence
// time, or nil when the trace has no ingested events.
func (s *Store) LatestEvent(ctx context.Context, traceID string) (*record.EventEnvelope, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, trace_id, source, type, occurred_at, received_at, payload, context
		FROM events
		WHERE trace_id = ?
		ORDER BY occurred_at DESC, event_id COLLATE BINARY ASC
		LIMIT 1
	`, traceID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event: %w", err)
	}
	return ev, nil
}

// ListEvents returns every event for a trace, oldest first.
func (s *Store) ListEvents(ctx context.Context, traceID string) ([]record.EventEnvelope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, trace_id, source, type, occurred_at, received_at, payload, context
		FROM events
		WHERE trace_id = ?
		ORDER BY occurred_at ASC, event_id COLLATE BINARY ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []record.EventEnvelope{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*record.EventEnvelope, error) {
	var ev record.EventEnvelope
	var payload, contextJSON sql.NullString
	if err := row.Scan(&ev.EventID, &ev.TraceID, &ev.Source, &ev.Type, &ev.OccurredAt, &ev.ReceivedAt, &payload, &contextJSON); err != nil {
		return nil, err
	}
	if payload.Valid {
		ev.Payload = json.RawMessage(payload.String)
	}
	if contextJSON.Valid {
		if err := json.Unmarshal([]byte(contextJSON.String), &ev.Context); err != nil {
			return nil, fmt.Errorf("decode event context: %w", err)
		}
	}
	return &ev, nil
}

// PlanningContext returns the cached planning context snapshot for a
// trace, or nil when none has been recorded.
func (s *Store) PlanningContext(ctx context.Context, traceID string) (*record.PlanningContext, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM planning_contexts WHERE trace_id = ?
	`, traceID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query planning context: %w", err)
	}

	var pc record.PlanningContext
	if err := json.Unmarshal([]byte(snapshot), &pc); err != nil {
		return nil, fmt.Errorf("decode planning context: %w", err)
	}
	return &pc, nil
}

// ListVerifications returns verification results for a trace, newest
// first. An empty traceID returns results across all traces.
func (s *Store) ListVerifications(ctx context.Context, traceID string) ([]record.VerificationResult, error) {
	query := `
		SELECT id, trace_id, run_id, status, issues, created_at
		FROM verification_results
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`
	args := []any{}
	if traceID != "" {
		query = `
			SELECT id, trace_id, run_id, status, issues, created_at
			FROM verification_results
			WHERE trace_id = ?
			ORDER BY created_at DESC, id COLLATE BINARY ASC
		`
		args = append(args, traceID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	defer rows.Close()

	results := []record.VerificationResult{}
	for rows.Next() {
		var vr record.VerificationResult
		var issues string
		if err := rows.Scan(&vr.ID, &vr.TraceID, &vr.RunID, &vr.Status, &issues, &vr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		if err := json.Unmarshal([]byte(issues), &vr.Issues); err != nil {
			return nil, fmt.Errorf("decode verification issues: %w", err)
		}
		results = append(results, vr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return results, nil
}

// ListEvidence returns the evidence ledger rows for a trace, oldest
// first, optionally filtered by kind.
func (s *Store) ListEvidence(ctx context.Context, traceID, kind string) ([]record.Evidence, error) {
	query := `
		SELECT id, trace_id, kind, reference, status, metadata, created_at
		FROM observability_evidence
		WHERE trace_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`
	args := []any{traceID}
	if kind != "" {
		query = `
			SELECT id, trace_id, kind, reference, status, metadata, created_at
			FROM observability_evidence
			WHERE trace_id = ? AND kind = ?
			ORDER BY created_at ASC, id COLLATE BINARY ASC
		`
		args = append(args, kind)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	evidence := []record.Evidence{}
	for rows.Next() {
		var ev record.Evidence
		var metadata sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TraceID, &ev.Kind, &ev.Reference, &ev.Status, &metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode evidence metadata: %w", err)
			}
		}
		evidence = append(evidence, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return evidence, nil
}

// HasRecordedEvidence reports whether at least one evidence row of the
// given kind exists for the trace with status "recorded".
func (s *Store) HasRecordedEvidence(ctx context.Context, traceID, kind string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM observability_evidence
		WHERE trace_id = ? AND kind = ? AND status = ?
	`, traceID, kind, record.EvidenceRecorded).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check evidence: %w", err)
	}
	return count > 0, nil
}

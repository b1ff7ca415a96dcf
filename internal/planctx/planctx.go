// Package planctx records inbound events and derives the per-trace
// planning context consumed by the planner: which external systems are
// configured and which environment defaults apply.
//
// The planning context is derived, not authoritative - it is recomputed
// from the latest event plus the current configuration whenever the
// cached snapshot is absent or a rebuild is forced.
package planctx

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/captrail/internal/config"
	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

// IngestError reports a rejected event envelope with every violation.
type IngestError struct {
	Violations []record.ValidationError
}

func (e *IngestError) Error() string {
	if len(e.Violations) == 0 {
		return "event validation failed"
	}
	msg := "event validation failed:"
	for _, v := range e.Violations {
		msg += " " + v.Error() + ";"
	}
	return msg[:len(msg)-1]
}

// Service ingests events and maintains planning contexts.
type Service struct {
	store *store.Store
	cfg   *config.Config
}

// New creates a Service over the given store and configuration.
func New(st *store.Store, cfg *config.Config) *Service {
	return &Service{store: st, cfg: cfg}
}

// Ingest validates and upserts an event (keyed by event id), then
// upserts the trace's planning context as a side effect. The stored
// envelope is returned.
func (s *Service) Ingest(ctx context.Context, ev *record.EventEnvelope) (*record.EventEnvelope, error) {
	if violations := ev.Validate(); len(violations) > 0 {
		return nil, &IngestError{Violations: violations}
	}

	if err := s.store.UpsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("ingest event %s: %w", ev.EventID, err)
	}

	if _, err := s.upsertFromEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("ingest event %s: %w", ev.EventID, err)
	}

	return ev, nil
}

// LatestEvent returns the most recent event for a trace, or nil when the
// trace has no ingested events.
func (s *Service) LatestEvent(ctx context.Context, traceID string) (*record.EventEnvelope, error) {
	return s.store.LatestEvent(ctx, traceID)
}

// PlanningContext returns the cached context snapshot for a trace,
// rebuilding it from the latest event when absent. Returns nil when the
// trace has no ingested events at all.
func (s *Service) PlanningContext(ctx context.Context, traceID string) (*record.PlanningContext, error) {
	cached, err := s.store.PlanningContext(ctx, traceID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	return s.Rebuild(ctx, traceID)
}

// Rebuild forces recomputation of the planning context from the latest
// event and the live configuration, e.g. after environment defaults
// change. Returns nil when the trace has no ingested events.
func (s *Service) Rebuild(ctx context.Context, traceID string) (*record.PlanningContext, error) {
	ev, err := s.store.LatestEvent(ctx, traceID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, nil
	}
	return s.upsertFromEvent(ctx, ev)
}

// upsertFromEvent derives the planning context from an event plus the
// current configuration and stores it, keyed by trace id (last write
// wins).
func (s *Service) upsertFromEvent(ctx context.Context, ev *record.EventEnvelope) (*record.PlanningContext, error) {
	pc := &record.PlanningContext{
		TraceID:      ev.TraceID,
		Workflow:     ev.Context.Workflow,
		Source:       ev.Source,
		EventType:    ev.Type,
		Capabilities: s.cfg.Capabilities(),
		Defaults:     s.cfg.Defaults(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := s.store.UpsertPlanningContext(ctx, pc); err != nil {
		return nil, fmt.Errorf("upsert planning context for %s: %w", ev.TraceID, err)
	}
	return pc, nil
}

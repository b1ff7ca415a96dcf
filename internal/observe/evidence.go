// Package observe maintains the append-only observability evidence
// ledger: recorded proofs that auxiliary steps (trace-span emission,
// artifact capture) actually occurred for a trace. The verifier reads
// this ledger.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

// Recorder appends evidence rows for a trace.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st, logger: slog.Default()}
}

// Record appends one evidence row. Reference is an opaque locator
// (span id, file path); metadata is optional context.
func (r *Recorder) Record(ctx context.Context, traceID, kind, reference, status string, metadata map[string]string) (*record.Evidence, error) {
	ev := &record.Evidence{
		ID:        uuid.NewString(),
		TraceID:   traceID,
		Kind:      kind,
		Reference: reference,
		Status:    status,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.InsertEvidence(ctx, ev); err != nil {
		return nil, fmt.Errorf("record %s evidence for %s: %w", kind, traceID, err)
	}
	r.logger.Debug("evidence recorded", "trace_id", traceID, "kind", kind, "status", status)
	return ev, nil
}

// RecordTraceSpan records trace-span evidence. When no telemetry
// endpoint is configured the evidence is recorded with status
// missing_config so the verifier can report the gap.
func (r *Recorder) RecordTraceSpan(ctx context.Context, traceID, endpoint string) (*record.Evidence, error) {
	if endpoint == "" {
		return r.Record(ctx, traceID, record.EvidenceTraceSpan, "telemetry not configured", record.EvidenceMissingConfig, nil)
	}
	return r.Record(ctx, traceID, record.EvidenceTraceSpan, traceID, record.EvidenceRecorded, map[string]string{"endpoint": endpoint})
}

// RecordArtifact records artifact-capture evidence pointing at the
// written snapshot file.
func (r *Recorder) RecordArtifact(ctx context.Context, traceID, path string) (*record.Evidence, error) {
	return r.Record(ctx, traceID, record.EvidenceArtifact, path, record.EvidenceRecorded, nil)
}

// RecordArtifactFailure records that snapshot capture was attempted but
// failed; the failure stays observable in the ledger.
func (r *Recorder) RecordArtifactFailure(ctx context.Context, traceID string, cause error) (*record.Evidence, error) {
	return r.Record(ctx, traceID, record.EvidenceArtifact, cause.Error(), record.EvidenceFailed, nil)
}

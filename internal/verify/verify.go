// Package verify evaluates the fixed battery of post-condition rules
// against a completed run.
//
// Rules read persisted state, never the in-memory execution result, so
// verification can run out-of-process or later. Each pass appends its own
// result row: repeated verification of the same run yields multiple
// historical rows with identical judgments - a point-in-time assertion,
// not a cache.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/captrail/internal/record"
	"github.com/roach88/captrail/internal/store"
)

// Issue codes produced by the rule battery.
const (
	CodeLinksMissing            = "detail_links_missing"
	CodeTraceEvidenceMissing    = "trace_evidence_missing"
	CodeArtifactEvidenceMissing = "artifact_evidence_missing"
)

// rule inspects persisted state and returns an issue code, or "" to pass.
type rule func(ctx context.Context, st *store.Store, traceID, runID string) (string, error)

// rules is the fixed, ordered battery. Order is stable so issue lists
// compare across passes.
var rules = []rule{
	linksPresent,
	traceEvidencePresent,
	artifactEvidencePresent,
}

// Verifier runs the rule battery and persists the verdicts.
type Verifier struct {
	store *store.Store
}

// New creates a Verifier over the given store.
func New(st *store.Store) *Verifier {
	return &Verifier{store: st}
}

// Verify evaluates every rule against current persisted state and appends
// the result. Status is failing iff any rule produced an issue; all
// issues found are recorded, not just the first. Rule issues never become
// errors - only storage failures do.
func (v *Verifier) Verify(ctx context.Context, traceID, runID string) (*record.VerificationResult, error) {
	var issues []record.VerificationIssue
	for _, r := range rules {
		code, err := r(ctx, v.store, traceID, runID)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", traceID, err)
		}
		if code != "" {
			issues = append(issues, record.VerificationIssue{Code: code, Message: describeIssue(code)})
		}
	}

	status := record.VerificationPassing
	if len(issues) > 0 {
		status = record.VerificationFailing
	}
	if issues == nil {
		issues = []record.VerificationIssue{}
	}

	result := &record.VerificationResult{
		ID:        uuid.NewString(),
		TraceID:   traceID,
		RunID:     runID,
		Status:    status,
		Issues:    issues,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := v.store.InsertVerification(ctx, result); err != nil {
		return nil, fmt.Errorf("verify %s: %w", traceID, err)
	}
	return result, nil
}

func linksPresent(ctx context.Context, st *store.Store, traceID, _ string) (string, error) {
	links, err := st.ListLinks(ctx, traceID)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return CodeLinksMissing, nil
	}
	return "", nil
}

func traceEvidencePresent(ctx context.Context, st *store.Store, traceID, _ string) (string, error) {
	ok, err := st.HasRecordedEvidence(ctx, traceID, record.EvidenceTraceSpan)
	if err != nil {
		return "", err
	}
	if !ok {
		return CodeTraceEvidenceMissing, nil
	}
	return "", nil
}

func artifactEvidencePresent(ctx context.Context, st *store.Store, traceID, _ string) (string, error) {
	ok, err := st.HasRecordedEvidence(ctx, traceID, record.EvidenceArtifact)
	if err != nil {
		return "", err
	}
	if !ok {
		return CodeArtifactEvidenceMissing, nil
	}
	return "", nil
}

func describeIssue(code string) string {
	switch code {
	case CodeLinksMissing:
		return "No detail source links recorded for trace; external artifact ids are missing."
	case CodeTraceEvidenceMissing:
		return "No trace-span evidence recorded for trace; telemetry emission was not captured."
	case CodeArtifactEvidenceMissing:
		return "No artifact evidence recorded for trace; snapshot capture was not captured."
	default:
		return "Unknown verification issue."
	}
}

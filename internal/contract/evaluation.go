package contract

import "fmt"

// Verdicts defines the allowed evaluation verdicts.
var Verdicts = map[string]bool{
	"PASS": true,
	"WARN": true,
	"FAIL": true,
}

// CategoryScores holds the per-category evaluation scores (0-5 each).
type CategoryScores struct {
	IntentAlignment        int `json:"intent_alignment"`
	ActionMinimalism       int `json:"action_minimalism"`
	DeterminismIdempotency int `json:"determinism_idempotency"`
	DetailSourceCorrectness int `json:"detail_source_correctness"`
	CrossSystemIntegrity   int `json:"cross_system_integrity"`
	VerificationCoverage   int `json:"verification_coverage"`
	FailureHandlingClarity int `json:"failure_handling_clarity"`
}

// EvalFlags holds the fatal/advisory flags attached to an evaluation.
type EvalFlags struct {
	FatalSchema      bool `json:"FATAL_SCHEMA"`
	FatalSecurity    bool `json:"FATAL_SECURITY"`
	FatalConnector   bool `json:"FATAL_CONNECTOR"`
	Drift            bool `json:"DRIFT"`
	NonDeterministic bool `json:"NON_DETERMINISTIC"`
}

// EvalReport is the wire form of one evaluation verdict for a trace.
type EvalReport struct {
	Version        string         `json:"version"`
	EvalID         string         `json:"eval_id"`
	TraceID        string         `json:"trace_id"`
	PlanID         string         `json:"plan_id"`
	OverallScore   int            `json:"overall_score"`
	Verdict        string         `json:"verdict"`
	CategoryScores CategoryScores `json:"category_scores"`
	Flags          EvalFlags      `json:"flags"`
}

// Validate returns all contract violations found.
func (r *EvalReport) Validate() []FieldError {
	var errs []FieldError
	errs = appendErr(errs, requireVersion("eval.version", r.Version))
	errs = appendErr(errs, requireID("eval.eval_id", r.EvalID))
	errs = appendErr(errs, requireID("eval.trace_id", r.TraceID))
	errs = appendErr(errs, requireID("eval.plan_id", r.PlanID))
	if r.OverallScore < 0 || r.OverallScore > 5 {
		errs = append(errs, FieldError{Field: "eval.overall_score", Message: "must be between 0 and 5"})
	}
	if !Verdicts[r.Verdict] {
		errs = append(errs, FieldError{
			Field:   "eval.verdict",
			Message: fmt.Sprintf("invalid verdict %q, must be one of: PASS, WARN, FAIL", r.Verdict),
		})
	}
	return errs
}

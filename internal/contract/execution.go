package contract

import "fmt"

// RunStates defines the allowed execution run states on the wire.
var RunStates = map[string]bool{
	"RECEIVED":  true,
	"EXECUTING": true,
	"DONE":      true,
	"FAILED":    true,
}

// ExecutionRun is the wire form of one execution run.
type ExecutionRun struct {
	Version    string `json:"version"`
	RunID      string `json:"run_id"`
	TraceID    string `json:"trace_id"`
	PlanID     string `json:"plan_id"`
	State      string `json:"state"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	RetryCount int    `json:"retry_count"`
}

// Validate returns all contract violations found.
func (r *ExecutionRun) Validate() []FieldError {
	var errs []FieldError
	errs = appendErr(errs, requireVersion("run.version", r.Version))
	errs = appendErr(errs, requireID("run.run_id", r.RunID))
	errs = appendErr(errs, requireID("run.trace_id", r.TraceID))
	errs = appendErr(errs, requireID("run.plan_id", r.PlanID))
	if !RunStates[r.State] {
		errs = append(errs, FieldError{
			Field:   "run.state",
			Message: fmt.Sprintf("invalid state %q, must be one of: RECEIVED, EXECUTING, DONE, FAILED", r.State),
		})
	}
	if r.RetryCount < 0 {
		errs = append(errs, FieldError{Field: "run.retry_count", Message: "must not be negative"})
	}
	return errs
}

package contract

import (
	"encoding/json"
	"fmt"
)

// ActionTypes is the closed action-type vocabulary. The planner-facing
// schema and the executor dispatch both derive from this set; extending it
// here is the first step of adding a new action variant.
var ActionTypes = map[string]bool{
	"note.upsert":         true,
	"note.append_receipt": true,
	"task.create":         true,
	"task.close":          true,
	"issue.create":        true,
	"issue.update":        true,
}

// Plan is the wire form of a validated plan. Actions are carried as the
// raw tagged-union objects accepted by the plan validator.
type Plan struct {
	Version        string            `json:"version"`
	TraceID        string            `json:"traceId"`
	UserIntent     string            `json:"userIntent"`
	Assumptions    []string          `json:"assumptions"`
	Actions        []json.RawMessage `json:"actions"`
	ReceiptSummary string            `json:"receiptSummary"`
}

// Validate returns all contract violations found, including unknown action
// type tags.
func (p *Plan) Validate() []FieldError {
	var errs []FieldError
	errs = appendErr(errs, requireVersion("plan.version", p.Version))
	errs = appendErr(errs, requireID("plan.traceId", p.TraceID))
	errs = appendErr(errs, requireNonEmpty("plan.userIntent", p.UserIntent))
	errs = appendErr(errs, requireNonEmpty("plan.receiptSummary", p.ReceiptSummary))
	if len(p.Actions) == 0 {
		errs = append(errs, FieldError{Field: "plan.actions", Message: "at least one action is required"})
	}
	for i, raw := range p.Actions {
		var tagged struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &tagged); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("plan.actions[%d]", i),
				Message: fmt.Sprintf("not a valid action object: %v", err),
			})
			continue
		}
		if !ActionTypes[tagged.Type] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("plan.actions[%d].type", i),
				Message: fmt.Sprintf("unknown action type %q", tagged.Type),
			})
		}
	}
	return errs
}

package contract

import "fmt"

// TraceResponse is the full snapshot artifact for one trace at one point
// in time: the unit of replay and audit.
type TraceResponse struct {
	Event       Event        `json:"event"`
	Plan        Plan         `json:"plan"`
	Run         ExecutionRun `json:"run"`
	Links       LinkGraph    `json:"links"`
	Evaluations []EvalReport `json:"evaluations"`
}

// Validate returns all contract violations across the nested shapes.
func (t *TraceResponse) Validate() []FieldError {
	var errs []FieldError
	errs = append(errs, t.Event.Validate()...)
	errs = append(errs, t.Plan.Validate()...)
	errs = append(errs, t.Run.Validate()...)
	errs = append(errs, t.Links.Validate()...)
	if len(t.Evaluations) == 0 {
		errs = append(errs, FieldError{Field: "evaluations", Message: "at least one evaluation is required"})
	}
	for i := range t.Evaluations {
		for _, e := range t.Evaluations[i].Validate() {
			e.Field = fmt.Sprintf("evaluations[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	return errs
}

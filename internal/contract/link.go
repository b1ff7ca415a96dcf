package contract

// LinkGraph is the wire form of the cross-system link set for one trace:
// the external ids every successful action left behind.
type LinkGraph struct {
	Version  string   `json:"version"`
	TraceID  string   `json:"trace_id"`
	NotePath string   `json:"note_path,omitempty"`
	TaskIDs  []string `json:"task_ids"`
	IssueIDs []string `json:"issue_ids"`
}

// Validate returns all contract violations found.
func (l *LinkGraph) Validate() []FieldError {
	var errs []FieldError
	errs = appendErr(errs, requireVersion("links.version", l.Version))
	errs = appendErr(errs, requireID("links.trace_id", l.TraceID))
	if l.TaskIDs == nil {
		errs = append(errs, FieldError{Field: "links.task_ids", Message: "must be present (may be empty)"})
	}
	if l.IssueIDs == nil {
		errs = append(errs, FieldError{Field: "links.issue_ids", Message: "must be present (may be empty)"})
	}
	return errs
}

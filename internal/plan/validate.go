package plan

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/captrail/internal/contract"
)

//go:embed schema.cue
var schemaCUE string

// Violation is one schema violation with the offending field path.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaError reports every violation found in a raw plan, not just the
// first. It is never retried automatically; the caller surfaces the paths
// to the user.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	if len(e.Violations) == 0 {
		return "plan schema validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		if v.Path == "" {
			parts[i] = v.Message
		} else {
			parts[i] = fmt.Sprintf("%s: %s", v.Path, v.Message)
		}
	}
	return "plan schema validation failed: " + strings.Join(parts, "; ")
}

// schema holds the compiled CUE schema. Compiled once per process; CUE
// values are immutable so reuse across validations is safe as long as the
// data is built in the same context.
type schema struct {
	ctx  *cue.Context
	plan cue.Value
}

var (
	schemaOnce sync.Once
	planSchema *schema
	schemaErr  error
)

func loadSchema() (*schema, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile plan schema: %w", err)
			return
		}
		def := v.LookupPath(cue.ParsePath("#Plan"))
		if err := def.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Plan: %w", err)
			return
		}
		planSchema = &schema{ctx: ctx, plan: def}
	})
	return planSchema, schemaErr
}

// Validate checks a raw plan document against the tagged-union schema and
// decodes it into a normalized Plan. Returns *SchemaError when the
// structure or any field constraint is violated. No side effects.
func Validate(raw []byte) (*Plan, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}

	expr, err := cuejson.Extract("plan.json", raw)
	if err != nil {
		return nil, &SchemaError{Violations: []Violation{{
			Message: fmt.Sprintf("not valid JSON: %v", err),
		}}}
	}

	// Check action type tags up front. The CUE disjunction would reject
	// unknown variants too, but its failure message names every branch;
	// a direct vocabulary check gives the caller the offending tag.
	if violations := checkActionTags(raw); len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}

	data := s.ctx.BuildExpr(expr)
	if err := data.Err(); err != nil {
		return nil, &SchemaError{Violations: cueViolations(err)}
	}

	unified := s.plan.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &SchemaError{Violations: cueViolations(err)}
	}

	p, err := decode(raw)
	if err != nil {
		return nil, err
	}
	normalize(p)
	return p, nil
}

// checkActionTags verifies every action's type tag is in the closed
// vocabulary shared with the contract layer.
func checkActionTags(raw []byte) []Violation {
	var doc struct {
		Actions []struct {
			Type string `json:"type"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Structure errors are reported by the CUE pass.
		return nil
	}
	var violations []Violation
	for i, a := range doc.Actions {
		if !contract.ActionTypes[a.Type] {
			violations = append(violations, Violation{
				Path:    fmt.Sprintf("actions[%d].type", i),
				Message: fmt.Sprintf("unknown action type %q", a.Type),
			})
		}
	}
	return violations
}

// cueViolations flattens a CUE error into per-path violations.
func cueViolations(err error) []Violation {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []Violation{{Message: err.Error()}}
	}
	violations := make([]Violation, 0, len(errs))
	for _, e := range errs {
		violations = append(violations, Violation{
			Path:    strings.Join(e.Path(), "."),
			Message: e.Error(),
		})
	}
	return violations
}

// decode unmarshals a schema-valid document into the Go sum type.
func decode(raw []byte) (*Plan, error) {
	var doc struct {
		Version        string            `json:"version"`
		TraceID        string            `json:"traceId"`
		UserIntent     string            `json:"userIntent"`
		Assumptions    []string          `json:"assumptions"`
		Actions        []json.RawMessage `json:"actions"`
		ReceiptSummary string            `json:"receiptSummary"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	p := &Plan{
		Version:        doc.Version,
		TraceID:        doc.TraceID,
		UserIntent:     doc.UserIntent,
		Assumptions:    doc.Assumptions,
		ReceiptSummary: doc.ReceiptSummary,
	}
	if p.Version == "" {
		p.Version = Version
	}
	if p.Assumptions == nil {
		p.Assumptions = []string{}
	}

	for i, rawAction := range doc.Actions {
		action, err := decodeAction(rawAction)
		if err != nil {
			return nil, fmt.Errorf("decode actions[%d]: %w", i, err)
		}
		p.Actions = append(p.Actions, action)
	}
	return p, nil
}

func decodeAction(raw json.RawMessage) (Action, error) {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}

	switch tagged.Type {
	case TypeNoteUpsert:
		var a NoteUpsert
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.Tags == nil {
			a.Tags = []string{}
		}
		return a, nil
	case TypeNoteAppendReceipt:
		var a NoteAppendReceipt
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeTaskCreate:
		var a TaskCreate
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.Labels == nil {
			a.Labels = []string{}
		}
		return a, nil
	case TypeTaskClose:
		var a TaskClose
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	case TypeIssueCreate:
		var a IssueCreate
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if a.Labels == nil {
			a.Labels = []string{}
		}
		return a, nil
	case TypeIssueUpdate:
		var a IssueUpdate
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", tagged.Type)
	}
}

package capture

import (
	"fmt"
	"strings"

	"github.com/roach88/captrail/internal/plan"
	"github.com/roach88/captrail/internal/record"
)

// renderReceipt produces the markdown block appended to the target note
// after execution: what was asked, what was assumed, and what actually
// happened. The receipt is append-only history, so it carries the trace
// id for later correlation.
func renderReceipt(p *plan.Plan, result *record.ExecutionResult) string {
	var b strings.Builder

	b.WriteString("## Receipt\n\n")
	fmt.Fprintf(&b, "- traceId: `%s`\n", p.TraceID)
	fmt.Fprintf(&b, "- intent: %s\n", p.UserIntent)
	fmt.Fprintf(&b, "- summary: %s\n", p.ReceiptSummary)

	if len(p.Assumptions) > 0 {
		b.WriteString("\n### Assumptions\n\n")
		for _, a := range p.Assumptions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	if len(result.CreatedTasks) > 0 || len(result.ClosedTasks) > 0 {
		b.WriteString("\n### Tasks\n\n")
		for _, t := range result.CreatedTasks {
			if t.URL != "" {
				fmt.Fprintf(&b, "- created [%s](%s) (`%s`)\n", t.Content, t.URL, t.ID)
			} else {
				fmt.Fprintf(&b, "- created %s (`%s`)\n", t.Content, t.ID)
			}
		}
		for _, id := range result.ClosedTasks {
			fmt.Fprintf(&b, "- closed `%s`\n", id)
		}
	}

	if len(result.CreatedIssues) > 0 || len(result.UpdatedIssues) > 0 {
		b.WriteString("\n### Issues\n\n")
		for _, is := range result.CreatedIssues {
			if is.URL != "" {
				fmt.Fprintf(&b, "- created [%s](%s) (`%s`)\n", is.Title, is.URL, is.ID)
			} else {
				fmt.Fprintf(&b, "- created %s (`%s`)\n", is.Title, is.ID)
			}
		}
		for _, id := range result.UpdatedIssues {
			fmt.Fprintf(&b, "- updated `%s`\n", id)
		}
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\n### Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

// receiptTarget picks the note the receipt is appended to: the first
// note-writing action in the plan.
func receiptTarget(p *plan.Plan) string {
	for _, action := range p.Actions {
		switch a := action.(type) {
		case plan.NoteUpsert:
			return a.NotePath
		case plan.NoteAppendReceipt:
			return a.NotePath
		}
	}
	return ""
}

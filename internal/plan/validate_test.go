package plan

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `{
	"traceId": "trace-20260110-001",
	"userIntent": "capture meeting notes and follow-ups",
	"assumptions": ["meeting was today"],
	"actions": [
		{
			"type": "note.upsert",
			"notePath": "meetings/2026-01-10-sync.md",
			"title": "Weekly sync",
			"markdown": "Discussed the rollout.",
			"tags": ["meeting", "rollout"]
		},
		{
			"type": "task.create",
			"content": "Send rollout summary",
			"due": "2026-01-12",
			"priority": 2,
			"labels": ["followup"]
		}
	],
	"receiptSummary": "1 note, 1 task"
}`

func TestValidate_AcceptsWellFormedPlan(t *testing.T) {
	p, err := Validate([]byte(validPlanJSON))
	require.NoError(t, err)

	assert.Equal(t, "trace-20260110-001", p.TraceID)
	assert.Equal(t, Version, p.Version, "version defaults when absent")
	require.Len(t, p.Actions, 2)

	note, ok := p.Actions[0].(NoteUpsert)
	require.True(t, ok, "first action should decode as NoteUpsert")
	assert.Equal(t, "meetings/2026-01-10-sync.md", note.NotePath)

	task, ok := p.Actions[1].(TaskCreate)
	require.True(t, ok, "second action should decode as TaskCreate")
	assert.Equal(t, 2, task.Priority)
	assert.Equal(t, "2026-01-12", task.Due)
}

func TestValidate_RejectsUnknownActionType(t *testing.T) {
	raw := `{
		"traceId": "trace-20260110-002",
		"userIntent": "do something unsupported",
		"actions": [{"type": "calendar.create", "title": "standup"}],
		"receiptSummary": "nothing"
	}`

	_, err := Validate([]byte(raw))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "actions[0].type", schemaErr.Violations[0].Path)
	assert.Contains(t, schemaErr.Violations[0].Message, "calendar.create")
}

func TestValidate_RejectsUnknownFieldInsideVariant(t *testing.T) {
	raw := `{
		"traceId": "trace-20260110-003",
		"userIntent": "close a task",
		"actions": [{"type": "task.close", "taskId": "12345678", "force": true}],
		"receiptSummary": "1 close"
	}`

	_, err := Validate([]byte(raw))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr, "closed variants must reject unknown fields")
}

func TestValidate_RejectsEmptyActions(t *testing.T) {
	raw := `{
		"traceId": "trace-20260110-004",
		"userIntent": "do nothing",
		"actions": [],
		"receiptSummary": "nothing"
	}`

	_, err := Validate([]byte(raw))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestValidate_RejectsShortTraceID(t *testing.T) {
	raw := `{
		"traceId": "short",
		"userIntent": "capture",
		"actions": [{"type": "task.close", "taskId": "12345678"}],
		"receiptSummary": "1 close"
	}`

	_, err := Validate([]byte(raw))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestValidate_PriorityRange(t *testing.T) {
	template := `{
		"traceId": "trace-20260110-005",
		"userIntent": "create a task",
		"actions": [{"type": "task.create", "content": "do it", "priority": %d}],
		"receiptSummary": "1 task"
	}`

	for _, priority := range []int{1, 4} {
		_, err := Validate([]byte(fmt.Sprintf(template, priority)))
		assert.NoError(t, err, "priority %d should be accepted", priority)
	}
	for _, priority := range []int{0, 5} {
		_, err := Validate([]byte(fmt.Sprintf(template, priority)))
		assert.Error(t, err, "priority %d should be rejected", priority)
	}
}

func TestValidate_StripsDefaultSentinels(t *testing.T) {
	raw := `{
		"traceId": "trace-20260110-006",
		"userIntent": "file an issue and a task",
		"actions": [
			{"type": "issue.create", "teamId": "__DEFAULT_TEAM__", "title": "Fix the importer", "assigneeId": "__DEFAULT_ASSIGNEE__"},
			{"type": "task.create", "content": "Check importer logs", "projectId": "__DEFAULT_PROJECT__"}
		],
		"receiptSummary": "1 issue, 1 task"
	}`

	p, err := Validate([]byte(raw))
	require.NoError(t, err)

	issue := p.Actions[0].(IssueCreate)
	assert.Empty(t, issue.TeamID, "sentinel team id should be stripped")
	assert.Empty(t, issue.AssigneeID, "sentinel assignee id should be stripped")

	task := p.Actions[1].(TaskCreate)
	assert.Empty(t, task.ProjectID, "sentinel project id should be stripped")
}

func TestValidate_NormalizesNoteStringsToNFC(t *testing.T) {
	// "café" with a combining acute accent (NFD) in path, title, and tag.
	decomposed := "café"
	composed := "café"

	raw := fmt.Sprintf(`{
		"traceId": "trace-20260110-007",
		"userIntent": "note about the %s",
		"actions": [{
			"type": "note.upsert",
			"notePath": "places/%s.md",
			"title": "%s",
			"markdown": "nice espresso",
			"tags": ["%s"]
		}],
		"receiptSummary": "1 note"
	}`, decomposed, decomposed, decomposed, decomposed)

	p, err := Validate([]byte(raw))
	require.NoError(t, err)

	note := p.Actions[0].(NoteUpsert)
	assert.Equal(t, "places/"+composed+".md", note.NotePath)
	assert.Equal(t, composed, note.Title)
	require.Len(t, note.Tags, 1)
	assert.Equal(t, composed, note.Tags[0])
}

func TestValidate_ByteIdenticalInputDecodesIdentically(t *testing.T) {
	first, err := Validate([]byte(validPlanJSON))
	require.NoError(t, err)
	second, err := Validate([]byte(validPlanJSON))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	raw := `{
		"traceId": "short",
		"userIntent": "",
		"actions": [{"type": "task.close", "taskId": "12345678"}],
		"receiptSummary": ""
	}`

	_, err := Validate([]byte(raw))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.GreaterOrEqual(t, len(schemaErr.Violations), 2, "every violation should be reported, not just the first")
}

func TestValidate_NotJSON(t *testing.T) {
	_, err := Validate([]byte("not a plan"))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.NotEmpty(t, schemaErr.Violations)
	assert.True(t, strings.Contains(schemaErr.Violations[0].Message, "JSON") ||
		strings.Contains(schemaErr.Violations[0].Message, "json"))
}

package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidSources defines the allowed event source strings.
var ValidSources = map[string]bool{
	"manual":  true,
	"linear":  true,
	"todoist": true,
	"obsidian": true,
}

// ValidPriorities defines the allowed event context priorities.
var ValidPriorities = map[string]bool{
	"low":    true,
	"normal": true,
	"high":   true,
}

// EventContext carries the actor and routing hints attached to an event.
type EventContext struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Workflow    string `json:"workflow"`
	Priority    string `json:"priority,omitempty"` // "low" | "normal" | "high"
}

// EventEnvelope is an inbound trigger. Created at ingestion, immutable
// thereafter; looked up by trace id to rebuild planning context.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	TraceID    string          `json:"trace_id"`
	Source     string          `json:"source"` // "manual" | "linear" | "todoist" | "obsidian"
	Type       string          `json:"type"`
	OccurredAt string          `json:"occurred_at"`
	ReceivedAt string          `json:"received_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Context    EventContext    `json:"context"`
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the envelope against schema rules.
// Returns all errors (not fail-fast).
func (ev *EventEnvelope) Validate() []ValidationError {
	var errs []ValidationError

	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required and must be non-empty"})
		}
	}

	require("event_id", ev.EventID)
	require("trace_id", ev.TraceID)
	require("type", ev.Type)
	require("occurred_at", ev.OccurredAt)
	require("received_at", ev.ReceivedAt)
	require("context.user_id", ev.Context.UserID)
	require("context.workflow", ev.Context.Workflow)

	if !ValidSources[ev.Source] {
		errs = append(errs, ValidationError{
			Field:   "source",
			Message: fmt.Sprintf("invalid source %q, must be one of: manual, linear, todoist, obsidian", ev.Source),
		})
	}

	if ev.Context.Priority != "" && !ValidPriorities[ev.Context.Priority] {
		errs = append(errs, ValidationError{
			Field:   "context.priority",
			Message: fmt.Sprintf("invalid priority %q, must be one of: low, normal, high", ev.Context.Priority),
		})
	}

	return errs
}

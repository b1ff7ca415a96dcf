package contract

import (
	"encoding/json"
	"fmt"
)

// EventSources defines the allowed event sources on the wire.
var EventSources = map[string]bool{
	"manual":  true,
	"linear":  true,
	"todoist": true,
	"obsidian": true,
}

// EventContext carries the actor and routing hints attached to an event.
type EventContext struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Workflow    string `json:"workflow,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Event is the wire form of an inbound trigger.
type Event struct {
	Version    string          `json:"version"`
	EventID    string          `json:"event_id"`
	Source     string          `json:"source"`
	Type       string          `json:"type"`
	OccurredAt string          `json:"occurred_at"`
	ReceivedAt string          `json:"received_at"`
	TraceID    string          `json:"trace_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Context    EventContext    `json:"context"`
}

// Validate returns all contract violations found.
func (e *Event) Validate() []FieldError {
	var errs []FieldError
	errs = appendErr(errs, requireVersion("event.version", e.Version))
	errs = appendErr(errs, requireNonEmpty("event.event_id", e.EventID))
	errs = appendErr(errs, requireID("event.trace_id", e.TraceID))
	errs = appendErr(errs, requireNonEmpty("event.type", e.Type))
	errs = appendErr(errs, requireNonEmpty("event.occurred_at", e.OccurredAt))
	errs = appendErr(errs, requireNonEmpty("event.received_at", e.ReceivedAt))
	errs = appendErr(errs, requireNonEmpty("event.context.user_id", e.Context.UserID))
	if !EventSources[e.Source] {
		errs = append(errs, FieldError{
			Field:   "event.source",
			Message: fmt.Sprintf("invalid source %q, must be one of: manual, linear, todoist, obsidian", e.Source),
		})
	}
	return errs
}

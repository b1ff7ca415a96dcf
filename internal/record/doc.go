// Package record defines the shared durable data model for the capture
// pipeline: inbound events, execution results, run records, cross-system
// links, verification results, evidence, and planning contexts.
//
// Types here are persisted by internal/store and shared by the executor,
// verifier, and snapshot recorder. They are plain data with validation
// helpers, no behavior.
package record

// Package model defines the upstream language-model capability consumed by
// the conversation orchestrator, and an HTTP/SSE client for an
// Anthropic-style Messages API.
//
// The orchestrator needs the model's raw streaming lifecycle (content
// block starts, text deltas, partial tool-input JSON deltas, block stops
// and the end-of-turn signal), so the boundary is expressed in exactly
// those terms.
package model

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolUse records one tool invocation issued by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult carries a tool's observation back to the model, keyed by the
// invocation id it answers.
type ToolResult struct {
	ToolUseID string
	Content   json.RawMessage
}

// Message is one conversation entry. A plain exchange carries only Text;
// the orchestrator's synthetic messages carry ToolUses (assistant role)
// or ToolResults (user role) instead.
type Message struct {
	Role        Role
	Text        string
	ToolUses    []ToolUse
	ToolResults []ToolResult
}

// ToolSpec declares a tool the model may invoke.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// EventKind enumerates the upstream stream events the orchestrator
// consumes.
type EventKind int

const (
	// KindTextDelta carries a fragment of assistant text.
	KindTextDelta EventKind = iota

	// KindToolUseStart opens a tool-use content block.
	KindToolUseStart

	// KindToolInputDelta carries a fragment of the tool's argument JSON.
	KindToolInputDelta

	// KindBlockStop closes the current content block.
	KindBlockStop

	// KindTurnStop ends the model's turn.
	KindTurnStop
)

// Event is one normalized upstream stream event.
type Event struct {
	Kind EventKind

	// Text is set for KindTextDelta.
	Text string

	// ToolID and ToolName are set for KindToolUseStart.
	ToolID   string
	ToolName string

	// Fragment is set for KindToolInputDelta.
	Fragment string
}

// Stream yields upstream events in arrival order. Next returns io.EOF
// after the turn-stop event has been delivered.
type Stream interface {
	Next() (Event, error)
	Close() error
}

// Client is the model capability consumed by the orchestrator.
type Client interface {
	StreamCompletion(ctx context.Context, messages []Message, systemPrompt string, tools []ToolSpec) (Stream, error)
}

// Package chat implements the streaming tool-call orchestration core:
// normalizing the model's event stream, executing tool calls, splicing
// results back into the conversation, and looping until the model answers
// without requesting a tool.
package chat

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the outward wire events.
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
)

// ToolCallStatus is the lifecycle position of one tool call. The order is
// strict: start, zero or more input_update, executing, then exactly one of
// completed or error.
type ToolCallStatus string

const (
	StatusStart       ToolCallStatus = "start"
	StatusInputUpdate ToolCallStatus = "input_update"
	StatusExecuting   ToolCallStatus = "executing"
	StatusCompleted   ToolCallStatus = "completed"
	StatusError       ToolCallStatus = "error"
)

// StreamEvent is the wire unit sent to the client. Data holds one of
// *TextData, *ToolCallData, *ToolResultData or *ErrorData according to
// Type.
type StreamEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// TextData carries a verbatim fragment of assistant text.
type TextData struct {
	Text string `json:"text"`
}

// ToolCallData reports tool-call lifecycle progress before execution
// finishes. Input is present from status executing on, and on those
// input_update events whose partial buffer parsed.
type ToolCallData struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Status ToolCallStatus  `json:"status"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// ToolResultData is the terminal success event for one tool call.
// Result holds the same JSON payload handed back to the model.
type ToolResultData struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Status  ToolCallStatus  `json:"status"`
	Result  json.RawMessage `json:"result"`
	Summary Summary         `json:"summary"`
}

// ErrorData reports a failure. ToolCallID is set when the error is the
// terminal event of a specific tool call.
type ErrorData struct {
	ToolCallID string `json:"toolCallId,omitempty"`
	Message    string `json:"message"`
}

// Emitter forwards one event toward the client. Implementations are
// provided by the transport; an error means the client can no longer be
// reached and the turn should stop.
type Emitter func(StreamEvent) error

// UnmarshalJSON decodes the type-discriminated payload, so a client can
// round-trip events produced by the server.
func (e *StreamEvent) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return fmt.Errorf("decoding stream event: %w", err)
	}

	e.Type = envelope.Type
	switch envelope.Type {
	case EventText:
		e.Data = &TextData{}
	case EventToolCall:
		e.Data = &ToolCallData{}
	case EventToolResult:
		e.Data = &ToolResultData{}
	case EventError:
		e.Data = &ErrorData{}
	default:
		return fmt.Errorf("unknown stream event type %q", envelope.Type)
	}

	if len(envelope.Data) == 0 {
		return fmt.Errorf("stream event %q has no data", envelope.Type)
	}
	if err := json.Unmarshal(envelope.Data, e.Data); err != nil {
		return fmt.Errorf("decoding %s event data: %w", envelope.Type, err)
	}
	return nil
}

// Message is one conversation entry as submitted by the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

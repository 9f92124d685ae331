package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/talvik/intervox/internal/model"
)

// ErrTurnAborted signals that the multiplexer already emitted a terminal
// error event for the current turn and no follow-up model call should be
// made. The HTTP stream itself stays healthy.
var ErrTurnAborted = errors.New("turn aborted")

// ToolExchange records one completed tool call of a model pass: the
// invocation the model issued and the observation to splice back.
type ToolExchange struct {
	ID     string
	Name   string
	Input  json.RawMessage
	Result json.RawMessage
}

// Pass summarizes one consumed model stream.
type Pass struct {
	// Text is the assistant text accumulated across the pass.
	Text string

	// Exchanges are the tool calls completed during the pass, in order.
	// Empty means the model finished without requesting a tool.
	Exchanges []ToolExchange
}

// Multiplexer converts one upstream model stream into normalized outward
// events. Text deltas are forwarded immediately and verbatim; tool-input
// fragments are buffered, re-parsed opportunistically for progress
// events, finalized at block stop, and handed to the executor. Exactly
// one terminal event is emitted per tool-call id.
type Multiplexer struct {
	executor *Executor
	logger   *slog.Logger
}

// NewMultiplexer creates a Multiplexer. logger may be nil.
func NewMultiplexer(executor *Executor, logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multiplexer{executor: executor, logger: logger}
}

// pendingCall tracks the tool-use block currently being streamed.
type pendingCall struct {
	id   string
	name string
	args ArgumentBuffer
}

// Run consumes stream until turn stop, forwarding events through emit.
// The returned Pass carries what the orchestrator needs to continue the
// conversation. An ErrTurnAborted return means a terminal error event was
// already emitted; any other error is the upstream or transport failure.
func (m *Multiplexer) Run(ctx context.Context, stream model.Stream, emit Emitter) (*Pass, error) {
	pass := &Pass{}
	var text strings.Builder
	var current *pendingCall

	for {
		if err := ctx.Err(); err != nil {
			return pass, fmt.Errorf("turn context: %w", err)
		}

		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pass, fmt.Errorf("upstream model stream: %w", err)
		}

		switch ev.Kind {
		case model.KindTextDelta:
			text.WriteString(ev.Text)
			if err := emit(StreamEvent{Type: EventText, Data: &TextData{Text: ev.Text}}); err != nil {
				return pass, err
			}

		case model.KindToolUseStart:
			// A new block before the previous one stopped means the
			// upstream never closed it. The orphan still gets its
			// terminal event so the client view cannot leak an
			// in-flight call.
			if current != nil {
				m.logger.Warn("tool-use block replaced before block stop",
					"orphaned_id", current.id, "tool", current.name)
				err := emit(StreamEvent{Type: EventError, Data: &ErrorData{
					ToolCallID: current.id,
					Message:    "tool call was abandoned by the model",
				}})
				if err != nil {
					return pass, err
				}
			}
			current = &pendingCall{id: ev.ToolID, name: ev.ToolName}
			err := emit(StreamEvent{Type: EventToolCall, Data: &ToolCallData{
				ID:     current.id,
				Name:   current.name,
				Status: StatusStart,
			}})
			if err != nil {
				return pass, err
			}

		case model.KindToolInputDelta:
			if current == nil {
				m.logger.Debug("dropping tool input delta outside a tool-use block")
				continue
			}
			partial, outcome := current.args.Append(ev.Fragment)
			if outcome != OutcomeParsed {
				// Incomplete JSON mid-stream is the normal case.
				continue
			}
			err := emit(StreamEvent{Type: EventToolCall, Data: &ToolCallData{
				ID:     current.id,
				Name:   current.name,
				Status: StatusInputUpdate,
				Input:  partial,
			}})
			if err != nil {
				return pass, err
			}

		case model.KindBlockStop:
			if current == nil {
				continue // end of a text block
			}
			call := current
			current = nil
			exchange, err := m.finishCall(ctx, call, emit)
			if err != nil {
				return pass, err
			}
			pass.Exchanges = append(pass.Exchanges, *exchange)

		case model.KindTurnStop:
			pass.Text = text.String()
			return pass, nil
		}
	}

	// Stream ended without an explicit turn stop; treat as end of turn.
	pass.Text = text.String()
	return pass, nil
}

// finishCall finalizes the call's arguments, executes it, and emits its
// terminal event.
func (m *Multiplexer) finishCall(ctx context.Context, call *pendingCall, emit Emitter) (*ToolExchange, error) {
	input, outcome := call.args.Final()
	if outcome == OutcomeInvalid {
		m.logger.Warn("tool arguments are invalid JSON",
			"tool_call_id", call.id, "tool", call.name, "buffer_len", call.args.Len())
		err := emit(StreamEvent{Type: EventError, Data: &ErrorData{
			ToolCallID: call.id,
			Message:    "tool arguments could not be parsed",
		}})
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: invalid arguments for %s", ErrTurnAborted, call.name)
	}

	err := emit(StreamEvent{Type: EventToolCall, Data: &ToolCallData{
		ID:     call.id,
		Name:   call.name,
		Status: StatusExecuting,
		Input:  input,
	}})
	if err != nil {
		return nil, err
	}

	payload, summary, err := m.executor.Execute(ctx, call.name, input)
	if errors.Is(err, ErrUnknownTool) {
		emitErr := emit(StreamEvent{Type: EventError, Data: &ErrorData{
			ToolCallID: call.id,
			Message:    fmt.Sprintf("tool %q is not registered", call.name),
		}})
		if emitErr != nil {
			return nil, emitErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTurnAborted, err)
	}
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", call.name, err)
	}

	result, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}

	err = emit(StreamEvent{Type: EventToolResult, Data: &ToolResultData{
		ID:      call.id,
		Name:    call.name,
		Status:  StatusCompleted,
		Result:  result,
		Summary: summary,
	}})
	if err != nil {
		return nil, err
	}

	return &ToolExchange{ID: call.id, Name: call.name, Input: input, Result: result}, nil
}

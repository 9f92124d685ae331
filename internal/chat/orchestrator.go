package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/talvik/intervox/internal/log"
	"github.com/talvik/intervox/internal/model"
)

// Defaults for the orchestrator's guard rails. The model usually stops
// on its own; the ceiling exists so a runaway tool loop cannot hold a
// connection forever.
const (
	DefaultMaxToolRounds = 8
	DefaultTurnTimeout   = 2 * time.Minute
)

// DefaultSystemPrompt frames the assistant when the request carries none.
const DefaultSystemPrompt = "You are a research assistant for an oral-history " +
	"interview archive. Use the search_interviews tool to ground your answers " +
	"in the corpus, and cite interview and paragraph titles when you quote."

// OrchestratorConfig contains all required parameters for the
// conversation orchestrator.
type OrchestratorConfig struct {
	Model    model.Client
	Executor *Executor
	Logger   log.Logger

	// MaxToolRounds caps model passes within one turn (0 = default).
	MaxToolRounds int

	// TurnTimeout is the per-turn wall-clock ceiling (0 = default).
	TurnTimeout time.Duration
}

func (cfg OrchestratorConfig) validate() error {
	if cfg.Model == nil {
		return errors.New("model client is required")
	}
	if cfg.Executor == nil {
		return errors.New("tool executor is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator owns one turn's state machine: ask the model, observe its
// stream, execute requested tools, splice results back into the working
// history, and ask again until the model stops requesting tools. The
// continuation is an explicit loop, not recursion, so the round ceiling
// is enforceable and stack depth stays flat.
//
// Each request gets its own working history; an Orchestrator is safe for
// concurrent use.
type Orchestrator struct {
	modelClient   model.Client
	mux           *Multiplexer
	logger        log.Logger
	toolSpecs     []model.ToolSpec
	maxToolRounds int
	turnTimeout   time.Duration
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}

	return &Orchestrator{
		modelClient:   cfg.Model,
		mux:           NewMultiplexer(cfg.Executor, cfg.Logger),
		logger:        cfg.Logger,
		toolSpecs:     cfg.Executor.Specs(),
		maxToolRounds: maxRounds,
		turnTimeout:   timeout,
	}, nil
}

// RunTurn drives one turn to completion, emitting every outward event
// through emit. Failures after the stream has started are reported
// in-band and end only this turn; RunTurn returns an error only when the
// client can no longer be reached (emit failed or ctx was canceled by the
// caller).
func (o *Orchestrator) RunTurn(ctx context.Context, messages []Message, systemPrompt string, emit Emitter) error {
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	history := make([]model.Message, 0, len(messages)+2)
	for _, m := range messages {
		role := model.Role(m.Role)
		if role != model.RoleUser && role != model.RoleAssistant {
			role = model.RoleUser
		}
		history = append(history, model.Message{Role: role, Text: m.Content})
	}

	for round := 0; ; round++ {
		if round >= o.maxToolRounds {
			o.logger.Warn("tool round ceiling reached", "rounds", round)
			return emit(StreamEvent{Type: EventError, Data: &ErrorData{
				Message: fmt.Sprintf("tool call limit reached after %d rounds", round),
			}})
		}

		pass, err := o.runPass(ctx, history, systemPrompt, emit)
		if err != nil {
			return o.reportFailure(ctx, err, emit)
		}

		if len(pass.Exchanges) == 0 {
			// No pending tool call: the turn is done.
			return nil
		}

		history = append(history, spliceExchanges(pass)...)
		o.logger.Debug("continuing after tool execution",
			"round", round, "tool_calls", len(pass.Exchanges), "history_len", len(history))
	}
}

// runPass performs one model call and consumes its stream.
func (o *Orchestrator) runPass(ctx context.Context, history []model.Message, systemPrompt string, emit Emitter) (*Pass, error) {
	stream, err := o.modelClient.StreamCompletion(ctx, history, systemPrompt, o.toolSpecs)
	if err != nil {
		return nil, fmt.Errorf("starting model stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			o.logger.Debug("closing model stream", "error", cerr)
		}
	}()

	return o.mux.Run(ctx, stream, emit)
}

// reportFailure maps a pass failure onto the error-handling policy:
// ErrTurnAborted means the terminal event is already on the wire; context
// expiry and upstream errors get an in-band error event; a dead client
// propagates so the handler stops streaming.
func (o *Orchestrator) reportFailure(ctx context.Context, err error, emit Emitter) error {
	switch {
	case errors.Is(err, ErrTurnAborted):
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		o.logger.Warn("turn deadline exceeded")
		return emit(StreamEvent{Type: EventError, Data: &ErrorData{
			Message: "turn deadline exceeded",
		}})
	case errors.Is(err, context.Canceled):
		return err
	default:
		o.logger.Error("model pass failed", "error", err)
		return emit(StreamEvent{Type: EventError, Data: &ErrorData{
			Message: err.Error(),
		}})
	}
}

// spliceExchanges produces the two synthetic messages that resume the
// conversation: an assistant message recording the pass's text and tool
// invocations, and a user-role message carrying the tool observations.
func spliceExchanges(pass *Pass) []model.Message {
	assistant := model.Message{Role: model.RoleAssistant, Text: pass.Text}
	user := model.Message{Role: model.RoleUser}
	for _, ex := range pass.Exchanges {
		assistant.ToolUses = append(assistant.ToolUses, model.ToolUse{
			ID:    ex.ID,
			Name:  ex.Name,
			Input: ex.Input,
		})
		user.ToolResults = append(user.ToolResults, model.ToolResult{
			ToolUseID: ex.ID,
			Content:   ex.Result,
		})
	}
	return []model.Message{assistant, user}
}

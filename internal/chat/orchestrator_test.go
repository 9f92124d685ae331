package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/talvik/intervox/internal/log"
	"github.com/talvik/intervox/internal/model"
	"github.com/talvik/intervox/internal/search"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedClient returns one scripted stream per model pass and records
// the history it was given each time.
type scriptedClient struct {
	passes    [][]model.Event
	histories [][]model.Message
	err       error
}

func (c *scriptedClient) StreamCompletion(_ context.Context, messages []model.Message, _ string, _ []model.ToolSpec) (model.Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	snapshot := make([]model.Message, len(messages))
	copy(snapshot, messages)
	c.histories = append(c.histories, snapshot)

	pass := len(c.histories) - 1
	if pass >= len(c.passes) {
		pass = len(c.passes) - 1
	}
	return &scriptedStream{events: c.passes[pass]}, nil
}

func newOrchestrator(t *testing.T, client model.Client, searcher search.Searcher, opts ...func(*OrchestratorConfig)) *Orchestrator {
	t.Helper()

	cfg := OrchestratorConfig{
		Model:    client,
		Executor: NewExecutor(searcher, 10, 0.5, log.NewNop()),
		Logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	o, err := NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	return o
}

func TestOrchestrator_PlainTextTurn(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{passes: [][]model.Event{{
		{Kind: model.KindTextDelta, Text: "Just an answer."},
		{Kind: model.KindBlockStop},
		{Kind: model.KindTurnStop},
	}}}
	o := newOrchestrator(t, client, &fakeSearcher{})

	var events []StreamEvent
	err := o.RunTurn(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "", collect(&events))
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	if len(client.histories) != 1 {
		t.Fatalf("model called %d times, want 1", len(client.histories))
	}
	if len(events) != 1 || events[0].Type != EventText {
		t.Fatalf("events = %+v, want one text event", events)
	}
}

func TestOrchestrator_ToolLoopSplicesHistory(t *testing.T) {
	t.Parallel()

	toolPass := []model.Event{
		{Kind: model.KindTextDelta, Text: "Searching."},
		{Kind: model.KindBlockStop},
		{Kind: model.KindToolUseStart, ToolID: "toolu_1", ToolName: ToolSearchInterviews},
		{Kind: model.KindToolInputDelta, Fragment: `{"query": "themes"}`},
		{Kind: model.KindBlockStop},
		{Kind: model.KindTurnStop},
	}
	finalPass := []model.Event{
		{Kind: model.KindTextDelta, Text: "Here is what I found."},
		{Kind: model.KindTurnStop},
	}
	client := &scriptedClient{passes: [][]model.Event{toolPass, finalPass}}
	searcher := &fakeSearcher{results: []search.Result{{ID: "p-1", Score: 0.7}}}
	o := newOrchestrator(t, client, searcher)

	var events []StreamEvent
	err := o.RunTurn(context.Background(),
		[]Message{{Role: "user", Content: "what themes come up?"}}, "", collect(&events))
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	if len(client.histories) != 2 {
		t.Fatalf("model called %d times, want 2", len(client.histories))
	}

	// The second pass sees the original message plus the two synthetic
	// splice messages.
	second := client.histories[1]
	if len(second) != 3 {
		t.Fatalf("second pass history = %d messages, want 3", len(second))
	}
	assistant := second[1]
	if assistant.Role != model.RoleAssistant || len(assistant.ToolUses) != 1 {
		t.Errorf("assistant splice = %+v, want one tool use", assistant)
	}
	if assistant.ToolUses[0].ID != "toolu_1" {
		t.Errorf("tool use id = %q", assistant.ToolUses[0].ID)
	}
	observation := second[2]
	if observation.Role != model.RoleUser || len(observation.ToolResults) != 1 {
		t.Errorf("observation splice = %+v, want one tool result", observation)
	}
	if observation.ToolResults[0].ToolUseID != "toolu_1" {
		t.Errorf("tool result keyed by %q", observation.ToolResults[0].ToolUseID)
	}
	if !strings.Contains(string(observation.ToolResults[0].Content), `"resultsCount":1`) {
		t.Errorf("observation payload = %s", observation.ToolResults[0].Content)
	}

	// Outward stream ends with the final pass text.
	last := events[len(events)-1]
	if last.Type != EventText || last.Data.(*TextData).Text != "Here is what I found." {
		t.Errorf("last event = %+v", last)
	}
}

func TestOrchestrator_SearchFailureFeedsModel(t *testing.T) {
	t.Parallel()

	toolPass := []model.Event{
		{Kind: model.KindToolUseStart, ToolID: "toolu_1", ToolName: ToolSearchInterviews},
		{Kind: model.KindToolInputDelta, Fragment: `{"query": "themes"}`},
		{Kind: model.KindBlockStop},
		{Kind: model.KindTurnStop},
	}
	finalPass := []model.Event{
		{Kind: model.KindTextDelta, Text: "The index seems to be down."},
		{Kind: model.KindTurnStop},
	}
	client := &scriptedClient{passes: [][]model.Event{toolPass, finalPass}}
	searcher := &fakeSearcher{err: &search.Error{Detail: "index unavailable"}}
	o := newOrchestrator(t, client, searcher)

	var events []StreamEvent
	if err := o.RunTurn(context.Background(),
		[]Message{{Role: "user", Content: "themes?"}}, "", collect(&events)); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	// The failure is a legitimate tool result, not a turn error: the
	// model got the error payload and produced a follow-up pass.
	if len(client.histories) != 2 {
		t.Fatalf("model called %d times, want 2", len(client.histories))
	}
	observation := client.histories[1][2].ToolResults[0].Content
	if !strings.Contains(string(observation), "index unavailable") {
		t.Errorf("observation = %s, want error details", observation)
	}

	var sawResult bool
	for _, ev := range events {
		if ev.Type == EventToolResult {
			sawResult = true
			if !ev.Data.(*ToolResultData).Summary.HasError {
				t.Error("summary.HasError = false, want true")
			}
		}
		if ev.Type == EventError {
			t.Errorf("unexpected turn error event: %+v", ev)
		}
	}
	if !sawResult {
		t.Error("no tool_result event emitted")
	}
}

func TestOrchestrator_RoundCeiling(t *testing.T) {
	t.Parallel()

	// Every pass requests another tool call; the ceiling must stop the
	// loop with an in-band error.
	endless := []model.Event{
		{Kind: model.KindToolUseStart, ToolID: "toolu_n", ToolName: ToolSearchInterviews},
		{Kind: model.KindToolInputDelta, Fragment: `{"query": "again"}`},
		{Kind: model.KindBlockStop},
		{Kind: model.KindTurnStop},
	}
	client := &scriptedClient{passes: [][]model.Event{endless}}
	o := newOrchestrator(t, client, &fakeSearcher{}, func(cfg *OrchestratorConfig) {
		cfg.MaxToolRounds = 3
	})

	var events []StreamEvent
	if err := o.RunTurn(context.Background(),
		[]Message{{Role: "user", Content: "loop"}}, "", collect(&events)); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	if len(client.histories) != 3 {
		t.Errorf("model called %d times, want 3", len(client.histories))
	}
	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("last event = %+v, want error", last)
	}
	if msg := last.Data.(*ErrorData).Message; !strings.Contains(msg, "limit") {
		t.Errorf("error message = %q", msg)
	}
}

func TestOrchestrator_UpstreamFailureIsInBand(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{err: errors.New("model service unreachable")}
	o := newOrchestrator(t, client, &fakeSearcher{})

	var events []StreamEvent
	if err := o.RunTurn(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "", collect(&events)); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v, want one in-band error", events)
	}
}

func TestOrchestrator_TurnTimeout(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{passes: [][]model.Event{{
		{Kind: model.KindTextDelta, Text: "late"},
		{Kind: model.KindTurnStop},
	}}}
	o := newOrchestrator(t, client, &fakeSearcher{}, func(cfg *OrchestratorConfig) {
		cfg.TurnTimeout = time.Nanosecond
	})

	var events []StreamEvent
	if err := o.RunTurn(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "", collect(&events)); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	sawDeadline := false
	for _, ev := range events {
		if ev.Type == EventError {
			sawDeadline = true
		}
	}
	if !sawDeadline {
		t.Errorf("events = %+v, want a deadline error event", events)
	}
}

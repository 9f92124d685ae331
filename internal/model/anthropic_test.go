package model_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talvik/intervox/internal/log"
	"github.com/talvik/intervox/internal/model"
)

const streamFixture = `event: message_start
data: {"type": "message_start", "message": {"id": "msg_1"}}

event: ping
data: {"type": "ping"}

event: content_block_start
data: {"type": "content_block_start", "index": 0, "content_block": {"type": "text"}}

event: content_block_delta
data: {"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "Hello"}}

event: content_block_stop
data: {"type": "content_block_stop", "index": 0}

event: content_block_start
data: {"type": "content_block_start", "index": 1, "content_block": {"type": "tool_use", "id": "toolu_1", "name": "search_interviews"}}

event: content_block_delta
data: {"type": "content_block_delta", "index": 1, "delta": {"type": "input_json_delta", "partial_json": "{\"query\":"}}

event: content_block_delta
data: {"type": "content_block_delta", "index": 1, "delta": {"type": "input_json_delta", "partial_json": " \"themes\"}"}}

event: content_block_stop
data: {"type": "content_block_stop", "index": 1}

event: message_delta
data: {"type": "message_delta", "delta": {"stop_reason": "tool_use"}}

event: message_stop
data: {"type": "message_stop"}

`

func newTestClient(t *testing.T, handler http.HandlerFunc) *model.AnthropicClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := model.NewAnthropicClient(model.AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
		BaseURL: srv.URL,
		Logger:  log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewAnthropicClient failed: %v", err)
	}
	return client
}

func TestAnthropicClient_StreamEvents(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Anthropic-Version"); got == "" {
			t.Error("missing Anthropic-Version header")
		}

		var body struct {
			Stream bool              `json:"stream"`
			Tools  []model.ToolSpec  `json:"tools"`
			System string            `json:"system"`
			Msgs   []json.RawMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if !body.Stream {
			t.Error("stream flag not set")
		}
		if len(body.Tools) != 1 || body.Tools[0].Name != "search_interviews" {
			t.Errorf("tools = %+v, want search_interviews", body.Tools)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, streamFixture)
	})

	stream, err := client.StreamCompletion(context.Background(),
		[]model.Message{{Role: model.RoleUser, Text: "hi"}},
		"You are a corpus assistant.",
		[]model.ToolSpec{{Name: "search_interviews"}})
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	var got []model.Event
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, ev)
	}

	want := []model.Event{
		{Kind: model.KindTextDelta, Text: "Hello"},
		{Kind: model.KindBlockStop},
		{Kind: model.KindToolUseStart, ToolID: "toolu_1", ToolName: "search_interviews"},
		{Kind: model.KindToolInputDelta, Fragment: `{"query":`},
		{Kind: model.KindToolInputDelta, Fragment: ` "themes"}`},
		{Kind: model.KindBlockStop},
		{Kind: model.KindTurnStop},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnthropicClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "rate_limit_error"}}`)
	})

	_, err := client.StreamCompletion(context.Background(),
		[]model.Message{{Role: model.RoleUser, Text: "hi"}}, "", nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestAnthropicClient_InStreamError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: error\ndata: {\"type\": \"error\", \"error\": {\"type\": \"overloaded_error\", \"message\": \"try later\"}}\n\n")
	})

	stream, err := client.StreamCompletion(context.Background(),
		[]model.Message{{Role: model.RoleUser, Text: "hi"}}, "", nil)
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	if _, err := stream.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Next error = %v, want in-stream model error", err)
	}
}

func TestAnthropicClient_OversizedDataLine(t *testing.T) {
	t.Parallel()

	// A single delta whose data line is well past bufio.Scanner's
	// default 64 KB limit must still stream through.
	big := strings.Repeat("a", 100*1024)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: content_block_delta\n")
		_, _ = io.WriteString(w, `data: {"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "`+big+`"}}`)
		_, _ = io.WriteString(w, "\n\nevent: message_stop\ndata: {\"type\": \"message_stop\"}\n\n")
	})

	stream, err := client.StreamCompletion(context.Background(),
		[]model.Message{{Role: model.RoleUser, Text: "hi"}}, "", nil)
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	ev, err := stream.Next()
	if err != nil {
		t.Fatalf("Next failed on oversized delta: %v", err)
	}
	if ev.Kind != model.KindTextDelta || len(ev.Text) != len(big) {
		t.Errorf("event = kind %v with %d bytes, want full text delta", ev.Kind, len(ev.Text))
	}
}

func TestNewAnthropicClient_Validation(t *testing.T) {
	t.Parallel()

	if _, err := model.NewAnthropicClient(model.AnthropicConfig{Model: "m"}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := model.NewAnthropicClient(model.AnthropicConfig{APIKey: "k"}); err == nil {
		t.Error("expected error for missing model")
	}
}

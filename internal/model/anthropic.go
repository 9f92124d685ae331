package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int           // default 4096
	BaseURL   string        // default https://api.anthropic.com
	Timeout   time.Duration // whole-stream client timeout; 0 = none
	Logger    *slog.Logger
}

// AnthropicClient implements Client against an Anthropic-style Messages
// streaming API. Safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	logger     *slog.Logger
}

// NewAnthropicClient creates a client for the given configuration.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		logger:     logger,
	}, nil
}

// Wire shapes for the Messages API request body.
type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
	Tools     []ToolSpec    `json:"tools,omitempty"`
}

// StreamCompletion opens a streaming completion request and returns the
// event stream. The caller must Close the stream.
func (c *AnthropicClient) StreamCompletion(ctx context.Context, messages []Message, systemPrompt string, tools []ToolSpec) (Stream, error) {
	body := wireRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Stream:    true,
		System:    systemPrompt,
		Messages:  toWireMessages(messages),
		Tools:     tools,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", apiVersion)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	scanner := bufio.NewScanner(resp.Body)
	// Large text deltas can exceed the default 64 KB line limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &sseStream{body: resp.Body, scanner: scanner, logger: c.logger}, nil
}

func toWireMessages(messages []Message) []wireMessage {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role)}
		if m.Text != "" {
			wm.Content = append(wm.Content, wireBlock{Type: "text", Text: m.Text})
		}
		for _, tu := range m.ToolUses {
			input := tu.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			wm.Content = append(wm.Content, wireBlock{
				Type:  "tool_use",
				ID:    tu.ID,
				Name:  tu.Name,
				Input: input,
			})
		}
		for _, tr := range m.ToolResults {
			wm.Content = append(wm.Content, wireBlock{
				Type:      "tool_result",
				ToolUseID: tr.ToolUseID,
				Content:   string(tr.Content),
			})
		}
		wire = append(wire, wm)
	}
	return wire
}

// sseStream parses the Messages API event stream into model events.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	done    bool
}

// Wire shapes for streamed events.
type wireStreamEvent struct {
	Type         string `json:"type"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Next returns the next mappable event. Bookkeeping events (message_start,
// ping, message_delta) are skipped. Returns io.EOF after message_stop.
func (s *sseStream) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	for {
		data, err := s.nextData()
		if err != nil {
			return Event{}, err
		}

		var ev wireStreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("dropping undecodable stream event", "error", err)
			continue
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock.Type == "tool_use" {
				return Event{Kind: KindToolUseStart, ToolID: ev.ContentBlock.ID, ToolName: ev.ContentBlock.Name}, nil
			}
			// Text block starts carry no payload worth forwarding.
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				return Event{Kind: KindTextDelta, Text: ev.Delta.Text}, nil
			case "input_json_delta":
				return Event{Kind: KindToolInputDelta, Fragment: ev.Delta.PartialJSON}, nil
			}
		case "content_block_stop":
			return Event{Kind: KindBlockStop}, nil
		case "message_stop":
			s.done = true
			return Event{Kind: KindTurnStop}, nil
		case "error":
			return Event{}, fmt.Errorf("model stream error: %s: %s", ev.Error.Type, ev.Error.Message)
		}
	}
}

// nextData scans to the next non-empty "data:" payload.
func (s *sseStream) nextData() ([]byte, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(data)
			if data != "" {
				return []byte(data), nil
			}
		}
		// "event:" lines and blank separators are redundant with the
		// "type" field inside the data payload.
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading model stream: %w", err)
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	if err := s.body.Close(); err != nil {
		return fmt.Errorf("closing model stream: %w", err)
	}
	return nil
}

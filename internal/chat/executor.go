package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talvik/intervox/internal/model"
	"github.com/talvik/intervox/internal/search"
)

// ToolSearchInterviews is the single registered tool capability.
const ToolSearchInterviews = "search_interviews"

// ErrUnknownTool indicates the model requested a tool that is not
// registered. Fatal to the turn: no search is invoked.
var ErrUnknownTool = errors.New("unknown tool")

// ToolResultPayload is the canonical result shape. The same JSON is
// serialized back to the model as the tool observation and forwarded to
// the client in the tool_result event. On failure Error and Details are
// set and Results is omitted.
type ToolResultPayload struct {
	Query        string          `json:"query,omitempty"`
	SearchType   string          `json:"searchType,omitempty"`
	ResultsCount int             `json:"resultsCount"`
	Results      []search.Result `json:"results,omitempty"`
	Error        string          `json:"error,omitempty"`
	Details      string          `json:"details,omitempty"`
}

// Summary is the derived digest attached to the tool_result event.
type Summary struct {
	Query        string `json:"query"`
	SearchType   string `json:"searchType"`
	ResultsCount int    `json:"resultsCount"`
	HasError     bool   `json:"hasError"`
}

// searchArgs is the tool-argument schema as the model fills it in.
type searchArgs struct {
	Query         string   `json:"query"`
	SearchType    string   `json:"search_type"`
	InterviewID   string   `json:"interview_id"`
	ParticipantID string   `json:"participant_id"`
	TopK          int      `json:"top_k"`
	Alpha         *float64 `json:"alpha"`
}

// Executor validates and executes tool calls against the search adapter.
// It is stateless across invocations; every call is independent.
type Executor struct {
	searcher     search.Searcher
	defaultTopK  int
	defaultAlpha float64
	logger       *slog.Logger
}

// NewExecutor creates an Executor. defaultTopK and defaultAlpha apply when
// the model leaves those arguments out; logger may be nil.
func NewExecutor(searcher search.Searcher, defaultTopK int, defaultAlpha float64, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTopK <= 0 {
		defaultTopK = search.DefaultTopK
	}
	if defaultAlpha <= 0 || defaultAlpha > 1 {
		defaultAlpha = 0.5
	}
	return &Executor{
		searcher:     searcher,
		defaultTopK:  defaultTopK,
		defaultAlpha: defaultAlpha,
		logger:       logger,
	}
}

// Specs returns the tool declarations advertised to the model.
func (e *Executor) Specs() []model.ToolSpec {
	return []model.ToolSpec{{
		Name: ToolSearchInterviews,
		Description: "Search the interview corpus. Returns ranked passages with " +
			"interview and participant provenance. Use hybrid mode unless the " +
			"user asks for exact wording (keyword) or loose thematic matches (vector).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural-language search query",
				},
				"search_type": map[string]any{
					"type": "string",
					"enum": []string{"vector", "keyword", "hybrid"},
				},
				"interview_id": map[string]any{
					"type":        "string",
					"description": "Restrict results to one interview",
				},
				"participant_id": map[string]any{
					"type":        "string",
					"description": "Restrict results to one participant",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Maximum number of passages to return",
				},
				"alpha": map[string]any{
					"type":        "number",
					"description": "Hybrid blend weight: 0 = pure keyword, 1 = pure vector",
				},
			},
			"required": []string{"query"},
		},
	}}
}

// Execute runs one named tool call. Unknown tool names return
// ErrUnknownTool. Every other failure, argument parse errors and search
// backend errors alike, is folded into an error-shaped payload so the
// model can explain the shortfall conversationally.
func (e *Executor) Execute(ctx context.Context, toolName string, rawArgs json.RawMessage) (ToolResultPayload, Summary, error) {
	if toolName != ToolSearchInterviews {
		return ToolResultPayload{}, Summary{}, fmt.Errorf("%w: %q", ErrUnknownTool, toolName)
	}

	var args searchArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return e.failure("", "", "invalid tool arguments", err.Error()), e.errorSummary("", ""), nil
	}
	if args.Query == "" {
		return e.failure("", args.SearchType, "invalid tool arguments", "query is required"),
			e.errorSummary("", args.SearchType), nil
	}

	mode := search.Mode(args.SearchType)
	if args.SearchType == "" {
		mode = search.ModeHybrid
	}
	topK := args.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	alpha := e.defaultAlpha
	if args.Alpha != nil {
		alpha = *args.Alpha
	}

	results, err := e.searcher.Search(ctx, search.Query{
		Text: args.Query,
		Mode: mode,
		Filters: search.Filters{
			InterviewID:   args.InterviewID,
			ParticipantID: args.ParticipantID,
		},
		TopK:  topK,
		Alpha: alpha,
	})
	if err != nil {
		e.logger.Warn("search failed", "query", args.Query, "mode", mode, "error", err)
		detail := err.Error()
		var serr *search.Error
		if errors.As(err, &serr) {
			detail = serr.Detail
		}
		return e.failure(args.Query, string(mode), "search failed", detail),
			e.errorSummary(args.Query, string(mode)), nil
	}

	payload := ToolResultPayload{
		Query:        args.Query,
		SearchType:   string(mode),
		ResultsCount: len(results),
		Results:      results,
	}
	summary := Summary{
		Query:        args.Query,
		SearchType:   string(mode),
		ResultsCount: len(results),
	}
	return payload, summary, nil
}

func (e *Executor) failure(query, searchType, msg, details string) ToolResultPayload {
	return ToolResultPayload{
		Query:      query,
		SearchType: searchType,
		Error:      msg,
		Details:    details,
	}
}

func (e *Executor) errorSummary(query, searchType string) Summary {
	return Summary{Query: query, SearchType: searchType, HasError: true}
}

// Package search provides hybrid retrieval over the interview corpus.
//
// Three modes are supported: pure vector similarity (pgvector cosine
// distance), pure keyword relevance (Postgres full-text ts_rank with
// boosted title fields), and a weighted hybrid of the two. The hybrid
// blend runs both sub-queries concurrently and merges by passage id.
package search

import (
	"context"
	"fmt"
)

// Mode selects the ranking strategy for a search.
type Mode string

const (
	// ModeVector ranks by embedding similarity. Scores are 1 - cosine
	// distance, bounded to [0, 1] for normalized embeddings.
	ModeVector Mode = "vector"

	// ModeKeyword ranks by full-text relevance. Scores are unbounded;
	// higher is better. Title fields weigh twice as much as body text.
	ModeKeyword Mode = "keyword"

	// ModeHybrid blends vector and keyword scores by the query's alpha.
	ModeHybrid Mode = "hybrid"
)

// Valid reports whether m is a recognized search mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeVector, ModeKeyword, ModeHybrid:
		return true
	}
	return false
}

// Filters restricts a search to passages matching every set field.
// Zero-value fields impose no constraint.
type Filters struct {
	InterviewID   string `json:"interview_id,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// Query describes one search request.
type Query struct {
	Text    string
	Mode    Mode
	Filters Filters

	// TopK is the maximum number of results to return.
	TopK int

	// Alpha is the hybrid blend weight in [0, 1]:
	// 0 = pure keyword, 1 = pure vector. Ignored outside hybrid mode.
	Alpha float64
}

// Result is one ranked passage with provenance. Score semantics depend on
// the query mode; VectorScore and KeywordScore are populated only for the
// sides that contributed.
type Result struct {
	ID             string   `json:"id"`
	Score          float64  `json:"score"`
	InterviewID    string   `json:"interview_id"`
	ParticipantID  string   `json:"participant_id"`
	InterviewTitle string   `json:"interview_title"`
	ParagraphTitle string   `json:"paragraph_title"`
	ParagraphText  string   `json:"paragraph_text"`
	VectorScore    *float64 `json:"vector_score,omitempty"`
	KeywordScore   *float64 `json:"keyword_score,omitempty"`
}

// Searcher is the search capability consumed by the tool executor.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

// Error is the typed failure returned for backend errors. It carries a
// human-readable detail string and never escapes past the tool executor
// boundary, which converts it into an error-shaped tool result.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search: %s: %v", e.Detail, e.Err)
	}
	return "search: " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Embedder turns query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// Default query limits applied when the caller leaves them unset.
const (
	DefaultTopK = 10
	MaxTopK     = 50
)

// Querier is the subset of pgxpool.Pool the store depends on. Defined by
// the consumer so tests can substitute a fake without a live database.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements Searcher against PostgreSQL with pgvector for semantic
// ranking and full-text search for keyword ranking.
//
// Store is stateless per request and safe for concurrent use.
type Store struct {
	db       Querier
	embedder Embedder
	logger   *slog.Logger
}

// NewStore creates a Store. logger may be nil.
func NewStore(db Querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// ts_rank weight array in {D, C, B, A} order. Passage bodies are indexed
// with weight B and title fields with weight A, so titles count double.
const rankWeights = "{0.1, 0.2, 0.4, 0.8}"

const selectColumns = `
	p.id, p.interview_id, p.participant_id, i.title, p.paragraph_title, p.paragraph_text`

const vectorSQL = `
SELECT` + selectColumns + `,
	1 - (p.embedding <=> $1) AS score
FROM passages p
JOIN interviews i ON i.id = p.interview_id
WHERE ($2 = '' OR p.interview_id = $2)
  AND ($3 = '' OR p.participant_id = $3)
ORDER BY p.embedding <=> $1
LIMIT $4`

const keywordSQL = `
SELECT` + selectColumns + `,
	ts_rank('` + rankWeights + `'::float4[], p.search_tsv, q.query) AS score
FROM passages p
JOIN interviews i ON i.id = p.interview_id,
	websearch_to_tsquery('english', $1) AS q(query)
WHERE p.search_tsv @@ q.query
  AND ($2 = '' OR p.interview_id = $2)
  AND ($3 = '' OR p.participant_id = $3)
ORDER BY score DESC
LIMIT $4`

// Search executes q and returns ranked passages with provenance.
// Backend failures come back as a typed *Error.
func (s *Store) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Text == "" {
		return nil, &Error{Detail: "query text is empty"}
	}
	if !q.Mode.Valid() {
		return nil, &Error{Detail: fmt.Sprintf("unknown search mode %q", q.Mode)}
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	if q.Alpha < 0 {
		q.Alpha = 0
	}
	if q.Alpha > 1 {
		q.Alpha = 1
	}

	switch q.Mode {
	case ModeVector:
		return s.vectorSearch(ctx, q, q.TopK)
	case ModeKeyword:
		return s.keywordSearch(ctx, q, q.TopK)
	default:
		return s.hybridSearch(ctx, q)
	}
}

// hybridSearch runs both sub-queries concurrently, joins them, and merges
// by passage id with the alpha-weighted blend.
func (s *Store) hybridSearch(ctx context.Context, q Query) ([]Result, error) {
	vectorK, keywordK := hybridSplit(q.TopK, q.Alpha)

	var vectorHits, keywordHits []Result
	g, gctx := errgroup.WithContext(ctx)

	if vectorK > 0 {
		g.Go(func() error {
			hits, err := s.vectorSearch(gctx, q, vectorK)
			if err != nil {
				return err
			}
			vectorHits = hits
			return nil
		})
	}
	if keywordK > 0 {
		g.Go(func() error {
			hits, err := s.keywordSearch(gctx, q, keywordK)
			if err != nil {
				return err
			}
			keywordHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, &Error{Detail: "hybrid search failed", Err: err}
	}

	return mergeHybrid(vectorHits, keywordHits, q.TopK, q.Alpha), nil
}

func (s *Store) vectorSearch(ctx context.Context, q Query, limit int) ([]Result, error) {
	embedding, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, &Error{Detail: "query embedding failed", Err: err}
	}

	rows, err := s.db.Query(ctx, vectorSQL,
		pgvector.NewVector(embedding), q.Filters.InterviewID, q.Filters.ParticipantID, limit)
	if err != nil {
		return nil, &Error{Detail: "vector query failed", Err: err}
	}
	return scanResults(rows)
}

func (s *Store) keywordSearch(ctx context.Context, q Query, limit int) ([]Result, error) {
	rows, err := s.db.Query(ctx, keywordSQL,
		q.Text, q.Filters.InterviewID, q.Filters.ParticipantID, limit)
	if err != nil {
		return nil, &Error{Detail: "keyword query failed", Err: err}
	}
	return scanResults(rows)
}

func scanResults(rows pgx.Rows) ([]Result, error) {
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.InterviewID, &r.ParticipantID,
			&r.InterviewTitle, &r.ParagraphTitle, &r.ParagraphText, &r.Score); err != nil {
			return nil, &Error{Detail: "scanning result row", Err: err}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Detail: "reading result rows", Err: err}
	}
	return results, nil
}

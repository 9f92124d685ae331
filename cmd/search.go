package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talvik/intervox/internal/config"
	"github.com/talvik/intervox/internal/database"
	"github.com/talvik/intervox/internal/search"
)

var (
	searchMode  string
	searchTopK  int
	searchAlpha float64
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the interview corpus from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "search mode: vector, keyword or hybrid")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "number of results (default from config)")
	searchCmd.Flags().Float64Var(&searchAlpha, "alpha", -1, "hybrid blend weight, 0..1 (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print raw JSON results")
}

// runSearch executes one query against the corpus and prints the ranked
// passages. Useful for checking corpus quality without a chat turn.
func runSearch(ctx context.Context, text string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogJSON)

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	embedder, err := search.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedderModel, int32(cfg.EmbeddingDimension))
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store := search.NewStore(pool, embedder, logger)

	topK := cfg.SearchTopK
	if searchTopK > 0 {
		topK = searchTopK
	}
	alpha := cfg.SearchAlpha
	if searchAlpha >= 0 {
		alpha = searchAlpha
	}

	results, err := store.Search(ctx, search.Query{
		Text:  text,
		Mode:  search.Mode(searchMode),
		TopK:  topK,
		Alpha: alpha,
	})
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No passages matched.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.4f] %s", i+1, r.Score, r.InterviewTitle)
		if r.ParagraphTitle != "" {
			fmt.Printf(" / %s", r.ParagraphTitle)
		}
		fmt.Println()
		text := r.ParagraphText
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Printf("    %s\n", text)
	}
	return nil
}

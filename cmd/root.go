// Package cmd provides CLI commands for intervox.
//
// Commands:
//   - serve: HTTP API server with SSE streaming chat
//   - search: one-off search against the interview corpus
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talvik/intervox/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "intervox",
	Short: "Intervox - conversational front-end for an oral history archive",
	Long: `Intervox serves a chat interface over a corpus of interview transcripts.
The assistant answers questions by searching the corpus with hybrid
semantic and keyword retrieval and citing the passages it found.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the intervox CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger from configuration strings.
func newLogger(level string, jsonFormat bool) log.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if os.Getenv("DEBUG") != "" {
		lvl = slog.LevelDebug
	}
	return log.New(log.Config{Level: lvl, JSON: jsonFormat})
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talvik/intervox/internal/api"
	"github.com/talvik/intervox/internal/archive"
	"github.com/talvik/intervox/internal/chat"
	"github.com/talvik/intervox/internal/config"
	"github.com/talvik/intervox/internal/database"
	"github.com/talvik/intervox/internal/model"
	"github.com/talvik/intervox/internal/search"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 5 * time.Minute // SSE streaming needs a long write window
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

// runServe wires the full application and runs the HTTP server until a
// termination signal arrives.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogJSON)
	logger.Info("starting intervox server", "version", AppVersion)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := database.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

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
	executor := chat.NewExecutor(store, cfg.SearchTopK, cfg.SearchAlpha, logger)

	modelClient, err := model.NewAnthropicClient(model.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.ModelName,
		MaxTokens: cfg.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	orchestrator, err := chat.NewOrchestrator(chat.OrchestratorConfig{
		Model:         modelClient,
		Executor:      executor,
		Logger:        logger,
		MaxToolRounds: cfg.MaxToolRounds,
		TurnTimeout:   time.Duration(cfg.TurnTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	catalog := archive.NewCatalog(cfg.CatalogPath, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Orchestrator: orchestrator,
		Catalog:      catalog,
		Pool:         pool,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"endpoints", "/chat, /interviews, /healthz, /readyz",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

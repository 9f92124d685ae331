package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API keys are required for all conversation and embedding operations.
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY environment variable is required", ErrMissingAPIKey)
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for embeddings", ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 64000 {
		return fmt.Errorf("%w: must be between 1 and 64,000, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.MaxToolRounds < 1 || c.MaxToolRounds > 32 {
		return fmt.Errorf("%w: must be between 1 and 32, got %d", ErrInvalidMaxToolRounds, c.MaxToolRounds)
	}

	if c.TurnTimeoutSeconds < 1 || c.TurnTimeoutSeconds > 600 {
		return fmt.Errorf("%w: must be between 1 and 600 seconds, got %d", ErrInvalidTurnTimeout, c.TurnTimeoutSeconds)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The dimension must match the vector column width in the schema.
	if c.EmbeddingDimension != DefaultEmbeddingDimension {
		return fmt.Errorf("%w: schema uses vector(%d), got %d",
			ErrInvalidEmbeddingDimension, DefaultEmbeddingDimension, c.EmbeddingDimension)
	}

	if c.SearchTopK < 1 || c.SearchTopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidSearchTopK, c.SearchTopK)
	}

	if c.SearchAlpha < 0.0 || c.SearchAlpha > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidSearchAlpha, c.SearchAlpha)
	}

	if !strings.Contains(c.ListenAddr, ":") {
		return fmt.Errorf("%w: %q must contain a port, like :8080", ErrInvalidListenAddr, c.ListenAddr)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml", ErrInvalidPostgresPassword)
	}

	if c.PostgresPassword == "intervox_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only. The deprecated allow/prefer modes are excluded.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

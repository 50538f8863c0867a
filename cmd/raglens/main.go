// Package main provides the raglens CLI for processing documents and
// inspecting the index, the graph and the diagnostic streams.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/app"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "raglens",
	Short: "Document processing and retrieval tool",
	Long: `CLI tool for the RAGLens document pipeline.

Documents live under <data_dir>/Documents and their state in SQLite. Chunks
are indexed in Qdrant (or in memory with QDRANT_HOST=memory) and the
knowledge graph in Neo4j (or in memory when NEO4J_URI is empty).

Environment variables:
  RAGLENS_CONFIG       Config file, YAML or TOML (default: raglens.yaml)
  DATA_DIR             Data directory (default: data)
  QDRANT_HOST          Qdrant hostname, or "memory" (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  NEO4J_URI            Neo4j bolt URI (optional)
  OPENAI_API_KEY       OpenAI API key for embeddings and graph extraction
  USE_MOCK_EMBEDDINGS  Deterministic offline embeddings (true/false)
  GITHUB_TOKEN         GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (overrides RAGLENS_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = getEnv("RAGLENS_CONFIG", "raglens.yaml")
	}
	return config.Load(path)
}

// openApp builds the full stack. The caller closes it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg, logger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

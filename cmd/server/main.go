// Package main runs the RAGLens server: processing workers, the stale
// sweep, the documents watcher and the HTTP + MCP endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/api"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/app"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/config"
	mcpserver "github.com/Mekopa/AIHackathon-RAGLens/internal/mcp"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/watch"
)

// Version is set during build.
var Version = "dev"

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	logger := newLogger(getEnv("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(getEnv("RAGLENS_CONFIG", "raglens.yaml"))
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	a.Pool.Start(ctx)
	defer a.Pool.Stop()
	if n, err := a.Pool.Requeue(ctx); err != nil {
		logger.Warn("failed to requeue processing documents", "error", err)
	} else if n > 0 {
		logger.Info("requeued documents left in processing", "count", n)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("stale sweep stopped", "error", err)
		}
	}()

	if cfg.WatchDocuments {
		w := watch.New(cfg.DocumentsRoot(), a.Library, watch.WithLogger(logger))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("documents watcher stopped", "error", err)
			}
		}()
	}

	mcp := mcpserver.NewServer(&mcpserver.Config{
		Documents:   a.Docs,
		Search:      a.Index,
		Graph:       a.Graph,
		Schema:      a.Schema,
		Reprocessor: a.Pool,
		Version:     Version,
	})

	srv := api.NewServer(cfg.ServerAddr, &api.Dependencies{
		Documents:      a.Docs,
		Library:        a.Library,
		Search:         a.Index,
		Graph:          a.Graph,
		Schema:         a.Schema,
		Reprocessor:    a.Pool,
		MCP:            mcpserver.NewHTTPHandler(mcp, getEnv("MCP_STATELESS", "false") == "true"),
		Health:         a.Health(),
		DiagnosticsDir: cfg.DiagnosticsDir,
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.ServerAddr, "version", Version)
		errCh <- srv.Start()
	}()

	// Stdio mode serves MCP over stdin/stdout for local clients; HTTP keeps
	// running for uploads and health checks.
	if getEnv("SERVER_MODE", "http") == "stdio" {
		go func() {
			logger.Info("starting MCP server (stdio mode)")
			if err := mcp.Run(ctx); err != nil {
				logger.Error("mcp stdio server stopped", "error", err)
			}
			cancel()
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	// Logs go to stderr so stdio mode keeps stdout for the protocol.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

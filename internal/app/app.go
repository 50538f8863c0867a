// Package app assembles the processing stack from configuration. The server
// and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/config"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/diagnostics"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/embedding"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/extract"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/filestore"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/indexer"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/language"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/library"
	mcpserver "github.com/Mekopa/AIHackathon-RAGLens/internal/mcp"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/splitter"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/storage"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/tasks"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

// MemoryHost selects the in-process vector store instead of Qdrant.
const MemoryHost = "memory"

// App holds every long-lived component.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Docs     *documents.Store
	Files    *filestore.Store
	Recorder *diagnostics.Recorder
	Schema   *graph.Registry
	Vectors  vectorindex.Store
	Index    *vectorindex.Indexer
	Graph    graph.Store
	Pipeline *indexer.Pipeline
	Pool     *tasks.Pool
	Sweeper  *tasks.Sweeper
	Library  *library.Library

	// OpenAI is nil when no API key is configured.
	OpenAI *embedding.Client

	health  map[string]mcpserver.HealthChecker
	closers []func(context.Context) error
}

// New opens the stores and builds the pipeline. Qdrant is required unless
// the host is "memory"; an unreachable Neo4j falls back to the in-memory
// graph store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Schema: graph.NewRegistry(),
		health: make(map[string]mcpserver.HealthChecker),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if a.Docs, err = documents.NewStore(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Docs.Close() })
	a.health["sqlite"] = mcpserver.HealthFunc(a.Docs.Ping)

	if a.Files, err = filestore.New(cfg.DocumentsRoot()); err != nil {
		return nil, fmt.Errorf("open documents root: %w", err)
	}
	if a.Recorder, err = diagnostics.NewRecorder(cfg.DiagnosticsDir); err != nil {
		return nil, err
	}

	table := language.DefaultTable()
	if path := cfg.Extraction.LanguageProfiles; path != "" {
		if table, err = language.LoadTable(path); err != nil {
			return nil, fmt.Errorf("load language profiles: %w", err)
		}
	}
	detector := language.NewDetector(table, language.WithLogger(logger))
	extractor := extract.New(detector,
		extract.WithRunner(extract.ExecRunner{Timeout: cfg.ToolTimeout()}),
		extract.WithMinLength(cfg.Extraction.MinTextLength),
		extract.WithOCR(cfg.Extraction.MaxOCRPages, cfg.Extraction.OCRDPI),
		extract.WithLogger(logger),
	)
	split := splitter.New(
		splitter.WithChunkSize(cfg.Splitter.ChunkSize),
		splitter.WithOverlap(cfg.Splitter.ChunkOverlap),
		splitter.WithProfiles(table),
		splitter.WithLogger(logger),
	)

	if cfg.OpenAI.APIKey != "" {
		a.OpenAI, err = embedding.NewClient(embedding.ClientConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
	}
	embedder := a.embedder()

	if err := a.openVectors(ctx); err != nil {
		return nil, err
	}
	a.Index = vectorindex.New(a.Vectors, vectorindex.WithEmbedder(embedder), vectorindex.WithLogger(logger))

	a.openGraph(ctx)

	pipeOpts := []indexer.Option{
		indexer.WithDocuments(a.Docs, a.Files),
		indexer.WithRecorder(a.Recorder),
		indexer.WithEmbedder(embedder),
		indexer.WithLogger(logger),
	}
	if a.OpenAI != nil {
		chat := graph.NewOpenAIChat(a.OpenAI.Client(),
			graph.WithModel(cfg.OpenAI.ChatModel),
			graph.WithTemperature(cfg.OpenAI.Temperature),
			graph.WithTimeout(cfg.LLMTimeout()),
			graph.WithRateLimit(cfg.OpenAI.RequestsPerSec),
			graph.WithChatLogger(logger),
		)
		gen := graph.NewGenerator(chat, a.Graph,
			graph.WithSchema(a.Schema),
			graph.WithObserver(a.Recorder),
			graph.WithLegacyFilter(graph.NewLegacyFilter()),
			graph.WithLogger(logger),
		)
		pipeOpts = append(pipeOpts, indexer.WithGraph(gen))
	} else {
		logger.Warn("no chat model configured, knowledge graph generation is disabled")
	}
	a.Pipeline = indexer.NewPipeline(extractor, split, a.Index, pipeOpts...)

	a.Pool = tasks.NewPool(a.Docs, a.Pipeline,
		tasks.WithWorkers(cfg.Tasks.Workers),
		tasks.WithMaxAttempts(cfg.Tasks.MaxAttempts),
		tasks.WithRetryDelay(cfg.RetryDelay()),
		tasks.WithQueueSize(cfg.Tasks.QueueSize),
		tasks.WithLogger(logger),
	)
	a.Sweeper = tasks.NewSweeper(a.Docs, cfg.StaleAfter(), cfg.SweepInterval(), logger)
	a.Library = library.New(a.Docs, a.Files, a.Pool,
		library.WithCleaner(a.Pipeline),
		library.WithLogger(logger),
	)
	return a, nil
}

// embedder has no provider when neither mock embeddings nor an API key are
// configured, so every document fails with a configuration error.
func (a *App) embedder() *embedding.Embedder {
	o := a.Config.OpenAI
	opts := []embedding.Option{
		embedding.WithBatchSize(o.BatchSize),
		embedding.WithDimensions(o.EmbeddingDims),
		embedding.WithRateLimit(o.RequestsPerSec),
		embedding.WithLogger(a.Logger),
	}
	switch {
	case o.MockEmbeddings:
		return embedding.NewEmbedder(embedding.MockProvider{Dimensions: o.EmbeddingDims}, opts...)
	case a.OpenAI != nil:
		return embedding.NewEmbedder(embedding.NewOpenAIProvider(a.OpenAI, o.EmbeddingModel), opts...)
	default:
		a.Logger.Warn("no embedding credential configured, documents will fail with a configuration error")
		return embedding.NewEmbedder(nil, opts...)
	}
}

func (a *App) openVectors(ctx context.Context) error {
	q := a.Config.Qdrant
	if strings.EqualFold(q.Host, MemoryHost) {
		a.Logger.Warn("using in-memory vector store, chunks are lost on restart")
		a.Vectors = storage.NewMemoryStore(a.Config.OpenAI.EmbeddingDims)
		return nil
	}
	store, err := storage.NewQdrantStore(ctx, storage.QdrantConfig{
		Host:       q.Host,
		Port:       q.Port,
		APIKey:     q.APIKey,
		UseTLS:     q.UseTLS,
		Collection: q.Collection,
		Dimension:  a.Config.OpenAI.EmbeddingDims,
	})
	if err != nil {
		return fmt.Errorf("connect to qdrant at %s:%d: %w", q.Host, q.Port, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	a.Vectors = store
	a.health["qdrant"] = mcpserver.HealthFunc(store.Health)
	return nil
}

func (a *App) openGraph(ctx context.Context) {
	n := a.Config.Neo4j
	if n.URI == "" {
		a.Graph = graph.NewMemoryStore(a.Schema)
		return
	}
	store, err := graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
		URI:      n.URI,
		Username: n.Username,
		Password: n.Password,
		Database: n.Database,
	}, a.Schema, a.Logger)
	if err != nil {
		a.Logger.Warn("neo4j unavailable, using in-memory graph store", "uri", n.URI, "error", err)
		a.Graph = graph.NewMemoryStore(a.Schema)
		return
	}
	if err := store.EnsureConstraints(ctx); err != nil {
		a.Logger.Warn("failed to create graph constraints", "error", err)
	}
	a.Graph = store
	a.closers = append(a.closers, store.Close)
	a.health["neo4j"] = mcpserver.HealthFunc(store.Health)
}

// Health returns the dependency checks for the /health endpoint.
func (a *App) Health() map[string]mcpserver.HealthChecker {
	return a.health
}

// Close releases every store, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

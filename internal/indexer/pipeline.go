package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/embedding"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/extract"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/filestore"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

// Pipeline stages, as they appear in logs and diagnostic records.
const (
	StageExtract = "extract"
	StageSplit   = "split"
	StageEmbed   = "embed"
	StageIndex   = "index"
	StageGraph   = "graph"
)

// Stage outcomes.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// Extractor turns a stored file into text.
type Extractor interface {
	Extract(ctx context.Context, path string) extract.Result
}

// Splitter cuts text into chunks.
type Splitter interface {
	Texts(text, lang string) []string
}

// Embedder returns one vector per text.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores chunks with their embeddings.
type VectorIndex interface {
	Index(ctx context.Context, chunks []string, embeddings [][]float32, metadata map[string]any) (vectorindex.Result, error)
	Remove(ctx context.Context, documentID string) error
}

// GraphGenerator builds and stores a document's knowledge graph.
type GraphGenerator interface {
	ProcessDocument(ctx context.Context, doc graph.DocumentInput) (graph.Extraction, graph.Counts)
	Remove(ctx context.Context, documentID string) error
}

// StageRecorder receives one record per stage. diagnostics.Recorder
// implements it.
type StageRecorder interface {
	Stage(ctx context.Context, documentID, stage, status string, details map[string]any)
}

// DocumentSource resolves document rows and folder paths.
type DocumentSource interface {
	GetDocument(ctx context.Context, id string) (documents.Document, error)
	FolderPath(ctx context.Context, folderID string) ([]string, error)
}

// PathResolver maps a folder path and file name to a file on disk.
type PathResolver interface {
	Path(folderPath []string, name string) (string, error)
}

// Job is one document to process.
type Job struct {
	Document   documents.Document
	FolderPath []string
	Path       string
}

// Result describes one pipeline run.
type Result struct {
	DocumentID string
	Strategy   string
	Language   string
	Chunks     int
	ChunkIDs   []string
	Embedded   int
	// Degraded is set when chunks were indexed without usable embeddings
	// or the vector index write failed.
	Degraded bool
	Graph    graph.Counts
	// Skipped is set for files that are stored but never processed.
	Skipped  bool
	Duration time.Duration
}

// Pipeline runs extract, split, embed, index and graph for one document.
// Only missing text, missing chunks and configuration errors fail a run;
// every other stage degrades and continues.
type Pipeline struct {
	extractor Extractor
	splitter  Splitter
	embedder  Embedder
	index     VectorIndex
	graph     GraphGenerator
	source    DocumentSource
	paths     PathResolver
	recorder  StageRecorder
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmbedder sets the embedding generator. Without one every document is
// indexed in degraded mode.
func WithEmbedder(e Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithGraph sets the graph generator. Without one the graph stage is skipped.
func WithGraph(g GraphGenerator) Option {
	return func(p *Pipeline) { p.graph = g }
}

// WithDocuments lets ProcessDocument resolve jobs from document ids.
func WithDocuments(src DocumentSource, paths PathResolver) Option {
	return func(p *Pipeline) {
		p.source = src
		p.paths = paths
	}
}

// WithRecorder sets the diagnostic stage recorder.
func WithRecorder(r StageRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline from its required stages.
func NewPipeline(extractor Extractor, splitter Splitter, index VectorIndex, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		splitter:  splitter,
		index:     index,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessDocument loads a document and runs the pipeline on its file.
func (p *Pipeline) ProcessDocument(ctx context.Context, id string) (*Result, error) {
	job, err := p.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, job)
}

// Job resolves the document row, folder path and file path for id.
func (p *Pipeline) Job(ctx context.Context, id string) (Job, error) {
	if p.source == nil || p.paths == nil {
		return Job{}, fmt.Errorf("%w: pipeline has no document source", ErrConfig)
	}
	doc, err := p.source.GetDocument(ctx, id)
	if err != nil {
		return Job{}, fmt.Errorf("load document: %w", err)
	}
	var folders []string
	if doc.FolderID != "" {
		if folders, err = p.source.FolderPath(ctx, doc.FolderID); err != nil {
			return Job{}, fmt.Errorf("resolve folder: %w", err)
		}
	}
	path, err := p.paths.Path(folders, doc.Name)
	if err != nil {
		return Job{}, fmt.Errorf("resolve path: %w", err)
	}
	return Job{Document: doc, FolderPath: folders, Path: path}, nil
}

// Process runs every stage for job. The returned error is non-nil only for
// hard failures; the caller owns the status transition.
func (p *Pipeline) Process(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	doc := job.Document
	log := p.logger.With("document_id", doc.ID, "name", doc.Name)
	result := &Result{DocumentID: doc.ID}

	if extract.IsImage(job.Path) {
		result.Skipped = true
		result.Duration = time.Since(start)
		p.stage(ctx, log, doc.ID, StageExtract, StatusSkipped, map[string]any{"reason": "image"})
		return result, nil
	}

	// 1. Extract
	extracted := p.extractor.Extract(ctx, job.Path)
	result.Strategy = extracted.Strategy
	result.Language = extracted.Language
	if strings.TrimSpace(extracted.Text) == "" {
		p.stage(ctx, log, doc.ID, StageExtract, StatusFailed, nil)
		return result, ErrNoText
	}
	p.stage(ctx, log, doc.ID, StageExtract, StatusOK, map[string]any{
		"strategy":   extracted.Strategy,
		"sufficient": extracted.Sufficient,
		"language":   extracted.Language,
		"chars":      len([]rune(extracted.Text)),
		"headings":   len(extracted.Headings),
	})

	// 2. Split
	chunks := p.splitter.Texts(extracted.Text, extracted.Language)
	if len(chunks) == 0 {
		p.stage(ctx, log, doc.ID, StageSplit, StatusFailed, nil)
		return result, ErrNoChunks
	}
	result.Chunks = len(chunks)
	p.stage(ctx, log, doc.ID, StageSplit, StatusOK, map[string]any{"chunks": len(chunks)})

	// 3. Embed
	embeddings, err := p.embed(ctx, chunks)
	if err != nil {
		p.stage(ctx, log, doc.ID, StageEmbed, StatusFailed, map[string]any{"error": err.Error()})
		return result, err
	}
	if embeddings == nil {
		p.stage(ctx, log, doc.ID, StageEmbed, StatusDegraded, nil)
	} else {
		p.stage(ctx, log, doc.ID, StageEmbed, StatusOK, map[string]any{"vectors": len(embeddings)})
	}

	// 4. Index
	ir, err := p.index.Index(ctx, chunks, embeddings, p.metadata(job, extracted.Language))
	result.ChunkIDs = ir.IDs
	result.Embedded = ir.Embedded
	result.Degraded = ir.Degraded
	switch {
	case err != nil:
		result.Degraded = true
		log.Warn("vector index write failed, continuing", "error", err)
		p.stage(ctx, log, doc.ID, StageIndex, StatusFailed, map[string]any{"error": err.Error()})
	case ir.Degraded:
		p.stage(ctx, log, doc.ID, StageIndex, StatusDegraded, map[string]any{"ids": len(ir.IDs), "embedded": ir.Embedded})
	default:
		p.stage(ctx, log, doc.ID, StageIndex, StatusOK, map[string]any{"ids": len(ir.IDs)})
	}

	// 5. Graph
	if p.graph == nil {
		p.stage(ctx, log, doc.ID, StageGraph, StatusSkipped, nil)
	} else {
		if err := p.graph.Remove(ctx, doc.ID); err != nil {
			log.Warn("failed to clear previous graph data", "error", err)
		}
		_, counts := p.graph.ProcessDocument(ctx, graph.DocumentInput{
			ID:       doc.ID,
			Name:     doc.Name,
			FolderID: doc.FolderID,
			Legacy:   doc.FileType == "doc",
			Text:     extracted.Text,
			Chunks:   chunks,
		})
		result.Graph = counts
		status := StatusOK
		if !counts.Persisted {
			status = StatusDegraded
		}
		p.stage(ctx, log, doc.ID, StageGraph, status, map[string]any{
			"entities":      counts.Entities,
			"relationships": counts.Relationships,
			"failed_chunks": counts.FailedChunks,
			"filtered":      counts.Filtered,
			"persisted":     counts.Persisted,
		})
	}

	result.Duration = time.Since(start)
	log.Info("document processed",
		"chunks", result.Chunks,
		"embedded", result.Embedded,
		"degraded", result.Degraded,
		"entities", result.Graph.Entities,
		"duration", result.Duration,
	)
	return result, nil
}

// Remove deletes a document's chunks and graph data. Both are attempted.
func (p *Pipeline) Remove(ctx context.Context, documentID string) error {
	var errs []error
	if err := p.index.Remove(ctx, documentID); err != nil {
		errs = append(errs, fmt.Errorf("remove chunks: %w", err))
	}
	if p.graph != nil {
		if err := p.graph.Remove(ctx, documentID); err != nil {
			errs = append(errs, fmt.Errorf("remove graph: %w", err))
		}
	}
	return errors.Join(errs...)
}

// embed returns nil embeddings when the service failed, so indexing runs in
// degraded mode. A missing credential is a configuration error.
func (p *Pipeline) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	if p.embedder == nil {
		return nil, nil
	}
	vectors, err := p.embedder.GenerateEmbeddings(ctx, chunks)
	switch {
	case err == nil:
		return vectors, nil
	case errors.Is(err, embedding.ErrMissingAPIKey):
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	default:
		p.logger.Warn("embedding failed, indexing without vectors", "error", err, "chunks", len(chunks))
		return nil, nil
	}
}

func (p *Pipeline) metadata(job Job, lang string) map[string]any {
	doc := job.Document
	return map[string]any{
		"document_id":   doc.ID,
		"document_name": doc.Name,
		"folder_id":     doc.FolderID,
		"folder_path":   strings.Join(append([]string{filestore.RootName}, job.FolderPath...), "/"),
		"file_type":     doc.FileType,
		"language":      lang,
	}
}

func (p *Pipeline) stage(ctx context.Context, log *slog.Logger, documentID, stage, status string, details map[string]any) {
	attrs := []any{"stage", stage, "status", status}
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	if status == StatusFailed {
		log.Warn("pipeline stage", attrs...)
	} else {
		log.Debug("pipeline stage", attrs...)
	}
	if p.recorder != nil {
		p.recorder.Stage(ctx, documentID, stage, status, details)
	}
}

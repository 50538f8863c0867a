package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/storage"
)

// Store is the vector store contract. Implemented by storage.QdrantStore and
// storage.MemoryStore.
type Store interface {
	Upsert(ctx context.Context, records []storage.Record) error
	Query(ctx context.Context, vector []float32, filter map[string]any, limit int) ([]storage.Match, error)
	Scroll(ctx context.Context, filter map[string]any, limit int) ([]storage.Match, error)
	Recent(ctx context.Context, limit int) ([]storage.Match, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Dimension() int
}

var (
	_ Store = (*storage.QdrantStore)(nil)
	_ Store = (*storage.MemoryStore)(nil)
)

// QueryEmbedder turns search text into vectors.
type QueryEmbedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Result describes one Index call.
type Result struct {
	IDs []string
	// Degraded is set when no chunk carried a usable embedding and the
	// chunks were stored for metadata filtering only.
	Degraded bool
	// Embedded counts chunks stored with a vector.
	Embedded int
}

// Indexer writes document chunks to a Store and searches them.
type Indexer struct {
	store    Store
	embedder QueryEmbedder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithEmbedder lets Search embed text queries.
func WithEmbedder(e QueryEmbedder) Option {
	return func(ix *Indexer) { ix.embedder = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithClock overrides the indexed_at clock.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) { ix.now = now }
}

// New creates an Indexer over store.
func New(store Store, opts ...Option) *Indexer {
	ix := &Indexer{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ChunkID synthesizes the storage id of a chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// Index stores chunks with their embeddings and metadata and returns the
// synthesized chunk ids. Missing embeddings switch to metadata-only mode and
// count mismatches are truncated to the shorter list. The ids are returned
// even when the store write fails.
func (ix *Indexer) Index(ctx context.Context, chunks []string, embeddings [][]float32, metadata map[string]any) (Result, error) {
	docID, _ := metadata[storage.FieldDocumentID].(string)
	if docID == "" {
		return Result{}, ErrNoDocumentID
	}
	if len(chunks) == 0 {
		return Result{}, nil
	}

	if len(embeddings) > 0 && len(embeddings) != len(chunks) {
		n := min(len(chunks), len(embeddings))
		ix.logger.Warn("chunk and embedding counts differ, truncating",
			"document_id", docID, "chunks", len(chunks), "embeddings", len(embeddings), "kept", n)
		chunks, embeddings = chunks[:n], embeddings[:n]
	}

	base := Sanitize(metadata)
	indexedAt := ix.now().Unix()
	res := Result{IDs: make([]string, len(chunks))}
	records := make([]storage.Record, len(chunks))
	for i, text := range chunks {
		id := ChunkID(docID, i)
		meta := make(map[string]any, len(base)+4)
		for k, v := range base {
			meta[k] = v
		}
		meta["chunk_index"] = i
		meta["chunk_count"] = len(chunks)
		meta[storage.FieldIndexedAt] = indexedAt

		var vec []float32
		if i < len(embeddings) && usable(embeddings[i], ix.store.Dimension()) {
			vec = embeddings[i]
			res.Embedded++
		}
		res.IDs[i] = id
		records[i] = storage.Record{ID: id, Text: text, Embedding: vec, Metadata: meta}
	}
	res.Degraded = res.Embedded == 0

	if err := ix.store.DeleteDocument(ctx, docID); err != nil {
		ix.logger.Warn("failed to clear previous chunks", "document_id", docID, "error", err)
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return res, fmt.Errorf("upsert chunks: %w", err)
	}

	ix.logger.Info("indexed chunks",
		"document_id", docID, "chunks", len(records), "embedded", res.Embedded, "degraded", res.Degraded)
	return res, nil
}

// Remove deletes every chunk of a document.
func (ix *Indexer) Remove(ctx context.Context, documentID string) error {
	if err := ix.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// usable reports whether vec has the store's dimension and is not the zero
// vector substituted for a failed chunk.
func usable(vec []float32, dim int) bool {
	if len(vec) == 0 || len(vec) != dim {
		return false
	}
	for _, v := range vec {
		if v != 0 {
			return true
		}
	}
	return false
}

// Sanitize drops nil values and stringifies anything that is not a string,
// bool or number.
func Sanitize(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case nil:
		case string, bool, int, int64, float64:
			out[k] = val
		case int32:
			out[k] = int64(val)
		case uint:
			out[k] = int64(val)
		case uint32:
			out[k] = int64(val)
		case uint64:
			out[k] = int64(val)
		case float32:
			out[k] = float64(val)
		case time.Time:
			out[k] = val.UTC().Format(time.RFC3339)
		case fmt.Stringer:
			out[k] = val.String()
		default:
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			} else {
				out[k] = fmt.Sprint(val)
			}
		}
	}
	return out
}

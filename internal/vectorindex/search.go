package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/storage"
)

// Mode names the retrieval path that answered a search.
type Mode string

const (
	ModeVector   Mode = "vector"
	ModeMetadata Mode = "metadata"
	ModeRecent   Mode = "recent"
)

// DefaultLimit applies when a query sets no limit.
const DefaultLimit = 10

// Query is a search request. Text is embedded when an embedder is
// configured; Vector is used as given.
type Query struct {
	Text   string
	Vector []float32
	Filter map[string]any
	Limit  int
}

// SearchResult carries matches and the mode that produced them.
type SearchResult struct {
	Mode    Mode
	Matches []storage.Match
}

// Search runs a nearest-neighbour query, falling back to metadata-filtered
// retrieval when no usable vector is available and to the most recent chunks
// when there is no filter either.
func (ix *Indexer) Search(ctx context.Context, q Query) (SearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec := q.Vector
	if vec == nil && q.Text != "" && ix.embedder != nil {
		vecs, err := ix.embedder.GenerateEmbeddings(ctx, []string{q.Text})
		switch {
		case err != nil:
			ix.logger.Warn("query embedding failed, falling back", "error", err)
		case len(vecs) == 1:
			vec = vecs[0]
		}
	}

	if vec != nil {
		matches, err := ix.store.Query(ctx, vec, q.Filter, limit)
		switch {
		case err == nil:
			return SearchResult{Mode: ModeVector, Matches: matches}, nil
		case errors.Is(err, storage.ErrDimensionMismatch):
			ix.logger.Warn("query dimension mismatch, falling back",
				"got", len(vec), "want", ix.store.Dimension())
		default:
			return SearchResult{}, fmt.Errorf("vector search: %w", err)
		}
	} else if q.Text == "" && len(q.Filter) == 0 {
		return SearchResult{}, ErrEmptyQuery
	}

	if len(q.Filter) > 0 {
		matches, err := ix.store.Scroll(ctx, q.Filter, limit)
		if err != nil {
			return SearchResult{}, fmt.Errorf("metadata search: %w", err)
		}
		return SearchResult{Mode: ModeMetadata, Matches: matches}, nil
	}

	matches, err := ix.store.Recent(ctx, limit)
	if err != nil {
		return SearchResult{}, fmt.Errorf("recent search: %w", err)
	}
	return SearchResult{Mode: ModeRecent, Matches: matches}, nil
}

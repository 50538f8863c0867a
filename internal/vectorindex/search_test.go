package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/embedding"
)

type failingEmbedder struct{}

func (failingEmbedder) GenerateEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func seed(t *testing.T, ix *Indexer) {
	t.Helper()
	ctx := context.Background()
	a := []string{"apples grow on trees", "oranges are citrus"}
	_, err := ix.Index(ctx, a, mockVectors(a), map[string]any{"document_id": "fruit"})
	require.NoError(t, err)
	b := []string{"rust and go are languages"}
	_, err = ix.Index(ctx, b, mockVectors(b), map[string]any{"document_id": "code"})
	require.NoError(t, err)
}

func TestSearch_VectorMode(t *testing.T) {
	emb := embedding.NewEmbedder(embedding.MockProvider{Dimensions: dims}, embedding.WithDimensions(dims))
	ix, _ := newIndexer(t, WithEmbedder(emb))
	seed(t, ix)

	res, err := ix.Search(context.Background(), Query{Text: "oranges are citrus", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, ModeVector, res.Mode)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "fruit_chunk_1", res.Matches[0].ID)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-5)
}

func TestSearch_DimensionMismatchFallsBackToFilter(t *testing.T) {
	ix, _ := newIndexer(t)
	seed(t, ix)

	res, err := ix.Search(context.Background(), Query{
		Vector: []float32{1, 2, 3},
		Filter: map[string]any{"document_id": "code"},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeMetadata, res.Mode)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "code_chunk_0", res.Matches[0].ID)
}

func TestSearch_DimensionMismatchWithoutFilterFallsBackToRecent(t *testing.T) {
	ix, _ := newIndexer(t)
	seed(t, ix)

	res, err := ix.Search(context.Background(), Query{Vector: []float32{1}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, ModeRecent, res.Mode)
	assert.Len(t, res.Matches, 2)
}

func TestSearch_EmbedderFailureFallsBack(t *testing.T) {
	ix, _ := newIndexer(t, WithEmbedder(failingEmbedder{}))
	seed(t, ix)

	res, err := ix.Search(context.Background(), Query{Text: "anything", Filter: map[string]any{"document_id": "fruit"}})
	require.NoError(t, err)
	assert.Equal(t, ModeMetadata, res.Mode)
	assert.Len(t, res.Matches, 2)
}

func TestSearch_EmptyQuery(t *testing.T) {
	ix, _ := newIndexer(t)
	_, err := ix.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

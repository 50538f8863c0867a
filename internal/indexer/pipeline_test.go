package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/embedding"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/extract"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/filestore"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/language"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/splitter"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/storage"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

const dims = 8

const graphResponse = `{
  "entities": [
    {"id": "ada", "type": "human", "name": "Ada Lovelace"},
    {"id": "engine", "type": "machine", "name": "Analytical Engine"}
  ],
  "relationships": [
    {"source": "ada", "type": "wrote about", "target": "engine"}
  ]
}`

type fakeLLM struct{ calls int }

func (f *fakeLLM) Complete(context.Context, string, string) (string, error) {
	f.calls++
	return graphResponse, nil
}

type failingProvider struct{}

func (failingProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

// unreachableGraph fails every write. Unused Store methods are never called.
type unreachableGraph struct {
	graph.Store
}

func (unreachableGraph) UpsertDocument(context.Context, graph.DocumentNode) error {
	return graph.ErrStoreUnreachable
}

func (unreachableGraph) UpsertGraph(context.Context, string, []graph.Entity, []graph.Relationship) error {
	return graph.ErrStoreUnreachable
}

func (unreachableGraph) DeleteDocument(context.Context, string) error {
	return graph.ErrStoreUnreachable
}

type stageRecord struct{ stage, status string }

type recordingStages struct{ records []stageRecord }

func (r *recordingStages) Stage(_ context.Context, _, stage, status string, _ map[string]any) {
	r.records = append(r.records, stageRecord{stage, status})
}

type fixture struct {
	vectors  *storage.MemoryStore
	graphs   *graph.MemoryStore
	llm      *fakeLLM
	stages   *recordingStages
	pipeline *Pipeline
}

func newFixture(t *testing.T, provider embedding.Provider, graphStore graph.Store) *fixture {
	t.Helper()
	f := &fixture{
		vectors: storage.NewMemoryStore(dims),
		llm:     &fakeLLM{},
		stages:  &recordingStages{},
	}
	if graphStore == nil {
		f.graphs = graph.NewMemoryStore(graph.NewRegistry())
		graphStore = f.graphs
	}
	detector := language.NewDetector(language.DefaultTable())
	f.pipeline = NewPipeline(
		extract.New(detector),
		splitter.New(),
		vectorindex.New(f.vectors),
		WithEmbedder(embedding.NewEmbedder(provider, embedding.WithDimensions(dims))),
		WithGraph(graph.NewGenerator(f.llm, graphStore)),
		WithRecorder(f.stages),
	)
	return f
}

func longText() string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Ada Lovelace wrote the first published program for the Analytical Engine. ")
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func textJob(t *testing.T, content string) Job {
	return Job{
		Document:   documents.Document{ID: "doc-1", Name: "notes.txt", FileType: "txt", FolderID: "folder-1"},
		FolderPath: []string{"Research", "History"},
		Path:       writeFile(t, "notes.txt", content),
	}
}

func TestProcess_PlainTextBecomesChunks(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	text := longText()
	require.Greater(t, utf8.RuneCountInString(text), 1000)

	res, err := f.pipeline.Process(context.Background(), textJob(t, text))
	require.NoError(t, err)

	assert.Greater(t, res.Chunks, 1)
	assert.Len(t, res.ChunkIDs, res.Chunks)
	assert.Equal(t, res.Chunks, res.Embedded)
	assert.False(t, res.Degraded)
	assert.Equal(t, "doc-1_chunk_0", res.ChunkIDs[0])
	assert.Equal(t, res.Chunks, f.vectors.Len())

	records, err := f.vectors.Scroll(context.Background(), map[string]any{"document_id": "doc-1"}, 100)
	require.NoError(t, err)
	for _, r := range records {
		assert.LessOrEqual(t, utf8.RuneCountInString(r.Text), splitter.DefaultChunkSize+10)
		assert.Equal(t, "Documents/Research/History", r.Metadata["folder_path"])
		assert.Equal(t, "notes.txt", r.Metadata["document_name"])
		assert.Equal(t, true, r.Metadata[storage.FieldHasEmbedding])
	}

	assert.Greater(t, res.Graph.Entities, 0)
	assert.True(t, res.Graph.Persisted)
	assert.Greater(t, f.graphs.EntityCount(), 0)

	var stages []string
	for _, r := range f.stages.records {
		stages = append(stages, r.stage)
		assert.Equal(t, StatusOK, r.status, r.stage)
	}
	assert.Equal(t, []string{StageExtract, StageSplit, StageEmbed, StageIndex, StageGraph}, stages)
}

func TestProcess_EmptyTextIsHardFailure(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)

	res, err := f.pipeline.Process(context.Background(), textJob(t, "   \n\t  "))
	require.ErrorIs(t, err, ErrNoText)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, "No text extracted from document", Message(err))
	assert.Equal(t, "no text extracted from document", err.Error())
	assert.Zero(t, res.Chunks)
	assert.Zero(t, f.vectors.Len())
	assert.Zero(t, f.llm.calls)
}

func TestProcess_TinyTextFailsSplit(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)

	_, err := f.pipeline.Process(context.Background(), textJob(t, "hi"))
	require.ErrorIs(t, err, ErrNoChunks)
	assert.True(t, IsPermanent(err))
}

func TestProcess_EmbeddingFailureIndexesDegraded(t *testing.T) {
	f := newFixture(t, failingProvider{}, nil)

	res, err := f.pipeline.Process(context.Background(), textJob(t, longText()))
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Zero(t, res.Embedded)
	require.Len(t, res.ChunkIDs, res.Chunks)
	assert.Equal(t, res.Chunks, f.vectors.Len())

	records, err := f.vectors.Scroll(context.Background(), map[string]any{"document_id": "doc-1"}, 100)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, false, r.Metadata[storage.FieldHasEmbedding])
	}
	assert.Contains(t, f.stages.records, stageRecord{StageEmbed, StatusDegraded})
	assert.Contains(t, f.stages.records, stageRecord{StageIndex, StatusDegraded})
}

func TestProcess_MissingAPIKeyIsConfigError(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	f.pipeline.embedder = embedderFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, embedding.ErrMissingAPIKey
	})

	_, err := f.pipeline.Process(context.Background(), textJob(t, longText()))
	require.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, embedding.ErrMissingAPIKey)
	assert.True(t, IsPermanent(err))
}

type embedderFunc func(context.Context, []string) ([][]float32, error)

func (f embedderFunc) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func TestProcess_UnreachableGraphStoreStillSucceeds(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, unreachableGraph{})

	res, err := f.pipeline.Process(context.Background(), textJob(t, longText()))
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Greater(t, res.Graph.Entities, 0)
	assert.Greater(t, res.Graph.Relationships, 0)
	assert.False(t, res.Graph.Persisted)
	assert.Contains(t, f.stages.records, stageRecord{StageGraph, StatusDegraded})
}

func TestProcess_GraphTypesAreNormalized(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	_, err := f.pipeline.Process(context.Background(), textJob(t, longText()))
	require.NoError(t, err)

	g, err := f.graphs.DocumentGraph(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, g.Nodes)

	schema := graph.NewRegistry()
	for _, n := range g.Nodes {
		assert.True(t, slices.Contains(schema.EntityTypes(), n.Type), n.Type)
	}
	for _, e := range g.Edges {
		assert.True(t, slices.Contains(schema.RelationshipTypes(), e.Type), e.Type)
	}
}

func TestProcess_ImageIsSkipped(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	job := Job{
		Document: documents.Document{ID: "img", Name: "scan.png", FileType: "png"},
		Path:     writeFile(t, "scan.png", "\x89PNG\r\n"),
	}

	res, err := f.pipeline.Process(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, f.vectors.Len())
	assert.Zero(t, f.llm.calls)
}

func TestProcess_ReprocessReplacesChunks(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	job := textJob(t, longText())

	first, err := f.pipeline.Process(context.Background(), job)
	require.NoError(t, err)
	second, err := f.pipeline.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, first.ChunkIDs, second.ChunkIDs)
	assert.Equal(t, second.Chunks, f.vectors.Len())
}

func TestProcessDocument_ResolvesFromStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	docs, err := documents.NewStore(filepath.Join(dir, "raglens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	files, err := filestore.New(filepath.Join(dir, filestore.RootName))
	require.NoError(t, err)

	folderID, err := docs.EnsureFolderPath(ctx, []string{"Research"})
	require.NoError(t, err)
	_, _, err = files.Save([]string{"Research"}, "notes.txt", strings.NewReader(longText()))
	require.NoError(t, err)

	doc := &documents.Document{Name: "notes.txt", FileType: "txt", FolderID: folderID}
	require.NoError(t, docs.CreateDocument(ctx, doc))

	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	WithDocuments(docs, files)(f.pipeline)

	res, err := f.pipeline.ProcessDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Greater(t, res.Chunks, 1)

	records, err := f.vectors.Scroll(ctx, map[string]any{"folder_id": folderID}, 100)
	require.NoError(t, err)
	assert.Len(t, records, res.Chunks)
	assert.Equal(t, "Documents/Research", records[0].Metadata["folder_path"])

	_, err = f.pipeline.ProcessDocument(ctx, "missing")
	assert.ErrorIs(t, err, documents.ErrNotFound)
}

func TestRemove_ClearsChunksAndGraph(t *testing.T) {
	f := newFixture(t, embedding.MockProvider{Dimensions: dims}, nil)
	_, err := f.pipeline.Process(context.Background(), textJob(t, longText()))
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Remove(context.Background(), "doc-1"))
	assert.Zero(t, f.vectors.Len())

	g, err := f.graphs.DocumentGraph(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
}

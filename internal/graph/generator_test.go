package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return `{"entities": [], "relationships": []}`, nil
}

type unreachableStore struct {
	*MemoryStore
}

func (unreachableStore) UpsertDocument(context.Context, DocumentNode) error {
	return ErrStoreUnreachable
}

func (unreachableStore) UpsertGraph(context.Context, string, []Entity, []Relationship) error {
	return ErrStoreUnreachable
}

type recordingObserver struct {
	requests, responses, entities int
}

func (o *recordingObserver) OnRequest(context.Context, string, int, string)         { o.requests++ }
func (o *recordingObserver) OnResponse(context.Context, string, int, string, error) { o.responses++ }
func (o *recordingObserver) OnEntities(context.Context, string, int, Extraction)    { o.entities++ }

const adaResponse = "```json\n" + `{
  "entities": [
    {"id": "AdaLovelace", "type": "human", "name": "Ada Lovelace"},
    {"id": "London", "type": "city", "name": "London"}
  ],
  "relationships": [
    {"source": "AdaLovelace", "type": "based in", "target": "London"}
  ]
}` + "\n```"

var longChunk = strings.Repeat("Ada Lovelace lived in London and wrote notes. ", 3)

func TestExtract_NormalizesAndStamps(t *testing.T) {
	llm := &fakeLLM{responses: []string{adaResponse}}
	g := NewGenerator(llm, nil)

	ext, err := g.Extract(context.Background(), "doc1", 4, longChunk)
	require.NoError(t, err)
	require.Len(t, ext.Entities, 2)
	assert.Equal(t, "Person", ext.Entities[0].Type)
	assert.Equal(t, "Location", ext.Entities[1].Type)
	assert.Equal(t, "doc1", ext.Entities[0].Properties[PropDocumentID])
	assert.Equal(t, 4, ext.Entities[0].Properties[PropChunkIndex])

	require.Len(t, ext.Relationships, 1)
	assert.Equal(t, "LOCATED_IN", ext.Relationships[0].Type)
	assert.Equal(t, 4, ext.Relationships[0].Properties[PropChunkIndex])

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Entity types: Person, Organization")
	assert.Contains(t, llm.prompts[0], longChunk)
}

func TestExtract_InvalidJSONYieldsEmpty(t *testing.T) {
	g := NewGenerator(&fakeLLM{responses: []string{"no json here"}}, nil)
	ext, err := g.Extract(context.Background(), "doc1", 0, longChunk)
	require.NoError(t, err)
	assert.Empty(t, ext.Entities)
	assert.Empty(t, ext.Relationships)
}

func TestProcessDocument_PersistsAndSkipsShortChunks(t *testing.T) {
	store := NewMemoryStore(nil)
	llm := &fakeLLM{responses: []string{adaResponse}}
	obs := &recordingObserver{}
	g := NewGenerator(llm, store, WithObserver(obs))

	_, counts := g.ProcessDocument(context.Background(), DocumentInput{
		ID:     "doc1",
		Name:   "ada.txt",
		Chunks: []string{longChunk, "too short"},
	})
	assert.Equal(t, Counts{Entities: 2, Relationships: 1, Persisted: true}, counts)
	assert.Len(t, llm.prompts, 1, "short chunks are not sent")
	assert.Equal(t, 1, obs.requests)
	assert.Equal(t, 1, obs.responses)
	assert.Equal(t, 1, obs.entities)

	graph, err := store.DocumentGraph(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "LOCATED_IN", graph.Edges[0].Type)
	assert.True(t, store.AppearsIn("ada_lovelace", "doc1"))

	node, err := store.Entity(context.Background(), "london")
	require.NoError(t, err)
	assert.Equal(t, "#4CAF50", node.Color)
}

func TestProcessDocument_UnreachableStoreStillComputes(t *testing.T) {
	g := NewGenerator(&fakeLLM{responses: []string{adaResponse}}, unreachableStore{NewMemoryStore(nil)})

	ext, counts := g.ProcessDocument(context.Background(), DocumentInput{ID: "doc2", Chunks: []string{longChunk}})
	assert.False(t, counts.Persisted)
	assert.Equal(t, 2, counts.Entities)
	assert.Equal(t, "Person", ext.Entities[0].Type)
}

func TestProcessDocument_LLMFailureLosesOnlyThatChunk(t *testing.T) {
	llm := &fakeLLM{
		errs:      []error{errors.New("timeout"), nil},
		responses: []string{"", adaResponse},
	}
	g := NewGenerator(llm, NewMemoryStore(nil))

	_, counts := g.ProcessDocument(context.Background(), DocumentInput{ID: "doc3", Chunks: []string{longChunk, longChunk}})
	assert.Equal(t, 1, counts.FailedChunks)
	assert.Equal(t, 2, counts.Entities)
	assert.True(t, counts.Persisted)
}

func TestProcessDocument_LegacyFilter(t *testing.T) {
	resp := `{"entities": [
		{"id": "n", "type": "file", "name": "Normal.dotm"},
		{"id": "v", "type": "city", "name": "Vilnius"},
		{"id": "s", "type": "organization", "name": "Seimas"}
	], "relationships": [{"source": "n", "type": "uses", "target": "v"}]}`
	g := NewGenerator(&fakeLLM{responses: []string{resp}}, nil)

	ext, counts := g.ProcessDocument(context.Background(), DocumentInput{ID: "doc4", Legacy: true, Text: longChunk})
	assert.Equal(t, 1, counts.Filtered)
	assert.Equal(t, 2, counts.Entities)
	assert.Equal(t, 0, counts.Relationships)
	assert.Len(t, ext.Entities, 2)
	assert.False(t, counts.Persisted)
}

func TestMemoryStore_DeleteDocumentKeepsSharedEntities(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	g := NewGenerator(&fakeLLM{responses: []string{adaResponse, adaResponse}}, store)

	g.ProcessDocument(ctx, DocumentInput{ID: "a", FolderID: "f1", Chunks: []string{longChunk}})
	g.ProcessDocument(ctx, DocumentInput{ID: "b", FolderID: "f1", Chunks: []string{longChunk}})

	folder, err := store.FolderGraph(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, folder.Edges, 2, "each document keeps its own relationship")

	require.NoError(t, g.Remove(ctx, "a"))
	graph, err := store.DocumentGraph(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, graph.Edges)
	assert.Equal(t, 2, store.EntityCount())

	byName, err := store.EntityGraph(ctx, "ada lovelace", "")
	require.NoError(t, err)
	assert.Len(t, byName.Edges, 1)
}

//go:build integration

package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupNeo4j connects to NEO4J_URI (default bolt://localhost:7687).
// Skips test if Neo4j is not running.
func setupNeo4j(t *testing.T) *Neo4jStore {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewNeo4jStore(ctx, Neo4jConfig{
		URI:      uri,
		Username: "neo4j",
		Password: os.Getenv("NEO4J_PASSWORD"),
	}, nil, nil)
	if err != nil {
		t.Skipf("Neo4j not available: %v", err)
	}
	require.NoError(t, store.EnsureConstraints(context.Background()))
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func TestNeo4j_DocumentGraphRoundTrip(t *testing.T) {
	store := setupNeo4j(t)
	ctx := context.Background()
	docID := uuid.NewString()
	folderID := uuid.NewString()
	suffix := docID[:8]

	require.NoError(t, store.UpsertDocument(ctx, DocumentNode{ID: docID, Name: "test.txt", FolderID: folderID}))
	entities := []Entity{
		{ID: "ada_" + suffix, Type: "Person", Name: "Ada " + suffix, Properties: map[string]any{PropDocumentID: docID, PropChunkIndex: 0}},
		{ID: "london_" + suffix, Type: "Location", Name: "London " + suffix, Properties: map[string]any{PropDocumentID: docID, PropChunkIndex: 0}},
	}
	rels := []Relationship{
		{Source: entities[0].ID, Type: "LOCATED_IN", Target: entities[1].ID, Properties: map[string]any{PropChunkIndex: 0}},
	}
	require.NoError(t, store.UpsertGraph(ctx, docID, entities, rels))
	t.Cleanup(func() { _ = store.DeleteDocument(context.Background(), docID) })

	g, err := store.DocumentGraph(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "LOCATED_IN", g.Edges[0].Type)

	folder, err := store.FolderGraph(ctx, folderID)
	require.NoError(t, err)
	assert.Len(t, folder.Edges, 1)

	byName, err := store.EntityGraph(ctx, "Ada "+suffix, "Person")
	require.NoError(t, err)
	assert.Len(t, byName.Edges, 1)

	node, err := store.Entity(ctx, entities[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Location", node.Type)
	assert.Equal(t, "#4CAF50", node.Color)

	require.NoError(t, store.DeleteDocument(ctx, docID))
	g, err = store.DocumentGraph(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
}

func TestNeo4j_UnknownEntity(t *testing.T) {
	store := setupNeo4j(t)
	_, err := store.Entity(context.Background(), "missing_"+uuid.NewString())
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

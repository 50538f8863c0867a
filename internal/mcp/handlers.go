package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/storage"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 50
)

// makeStatusHandler creates the document_status tool handler.
func makeStatusHandler(docs DocumentReader) func(
	context.Context, *mcp.CallToolRequest, DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DocumentStatusInput) (
		*mcp.CallToolResult, DocumentStatusOutput, error,
	) {
		if len(input.IDs) == 0 {
			return nil, DocumentStatusOutput{}, errors.New("ids must not be empty")
		}
		reports, err := docs.Statuses(ctx, input.IDs)
		if err != nil {
			return nil, DocumentStatusOutput{}, fmt.Errorf("failed to read statuses: %w", err)
		}
		return nil, DocumentStatusOutput{Documents: reports}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(docs DocumentReader) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		list, err := docs.ListDocuments(ctx, input.FolderID)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}
		folders, err := docs.ListFolders(ctx, input.FolderID)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list folders: %w", err)
		}
		if list == nil {
			list = []documents.Document{}
		}
		if folders == nil {
			folders = []documents.Folder{}
		}
		return nil, ListDocumentsOutput{Documents: list, Folders: folders}, nil
	}
}

// makeSearchHandler creates the search_chunks tool handler.
// Search flow:
// 1. Build a metadata filter from document_id / folder_id
// 2. Let the indexer embed the query and pick the retrieval mode
// 3. Drop vector matches under min_score
// 4. Return chunk text with its document attribution
func makeSearchHandler(search Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchChunksInput,
) (*mcp.CallToolResult, SearchChunksOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchChunksInput) (
		*mcp.CallToolResult, SearchChunksOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		maxResults = min(maxResults, maxMaxResults)

		filter := map[string]any{}
		if input.DocumentID != "" {
			filter[storage.FieldDocumentID] = input.DocumentID
		}
		if input.FolderID != "" {
			filter["folder_id"] = input.FolderID
		}
		if len(filter) == 0 {
			filter = nil
		}

		res, err := search.Search(ctx, vectorindex.Query{
			Text:   strings.TrimSpace(input.Query),
			Filter: filter,
			Limit:  maxResults,
		})
		if errors.Is(err, vectorindex.ErrEmptyQuery) {
			return nil, SearchChunksOutput{}, errors.New("query, document_id or folder_id is required")
		}
		if err != nil {
			return nil, SearchChunksOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]ChunkResult, 0, len(res.Matches))
		for _, m := range res.Matches {
			if res.Mode == vectorindex.ModeVector && m.Score < input.MinScore {
				continue
			}
			results = append(results, chunkResult(m))
		}

		out := SearchChunksOutput{Mode: string(res.Mode), Results: results}
		if len(results) == 0 {
			out.Message = "No matching chunks found. Try broader search terms."
		}
		return nil, out, nil
	}
}

func chunkResult(m storage.Match) ChunkResult {
	str := func(key string) string {
		s, _ := m.Metadata[key].(string)
		return s
	}
	idx := 0
	switch v := m.Metadata["chunk_index"].(type) {
	case int64:
		idx = int(v)
	case int:
		idx = v
	case float64:
		idx = int(v)
	}
	return ChunkResult{
		ChunkID:      m.ID,
		DocumentID:   str(storage.FieldDocumentID),
		DocumentName: str("document_name"),
		FolderPath:   str("folder_path"),
		ChunkIndex:   idx,
		Score:        m.Score,
		Text:         m.Text,
	}
}

// makeDocumentGraphHandler creates the document_graph tool handler.
func makeDocumentGraphHandler(g GraphReader) func(
	context.Context, *mcp.CallToolRequest, DocumentGraphInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DocumentGraphInput) (
		*mcp.CallToolResult, GraphOutput, error,
	) {
		var (
			res graph.Graph
			err error
		)
		switch {
		case input.DocumentID != "":
			res, err = g.DocumentGraph(ctx, input.DocumentID)
		case input.FolderID != "":
			res, err = g.FolderGraph(ctx, input.FolderID)
		default:
			return nil, GraphOutput{}, errors.New("document_id or folder_id is required")
		}
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("graph_error: %w", err)
		}
		return nil, graphOutput(res), nil
	}
}

// makeEntityGraphHandler creates the entity_graph tool handler.
func makeEntityGraphHandler(g GraphReader, schema graph.SchemaProvider) func(
	context.Context, *mcp.CallToolRequest, EntityGraphInput,
) (*mcp.CallToolResult, GraphOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input EntityGraphInput) (
		*mcp.CallToolResult, GraphOutput, error,
	) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return nil, GraphOutput{}, errors.New("name is required")
		}
		entityType := input.Type
		if entityType != "" && schema != nil {
			entityType = schema.NormalizeEntityType(entityType)
		}
		res, err := g.EntityGraph(ctx, name, entityType)
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("graph_error: %w", err)
		}
		return nil, graphOutput(res), nil
	}
}

func graphOutput(g graph.Graph) GraphOutput {
	out := GraphOutput{Nodes: g.Nodes, Edges: g.Edges}
	if out.Nodes == nil {
		out.Nodes = []graph.Node{}
	}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}
	if len(out.Nodes) == 0 {
		out.Message = "No graph data found."
	}
	return out
}

// makeReprocessHandler creates the reprocess_document tool handler.
func makeReprocessHandler(r Reprocessor) func(
	context.Context, *mcp.CallToolRequest, ReprocessInput,
) (*mcp.CallToolResult, ReprocessOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ReprocessInput) (
		*mcp.CallToolResult, ReprocessOutput, error,
	) {
		if input.ID == "" {
			return nil, ReprocessOutput{}, errors.New("id is required")
		}
		res, err := r.Reprocess(ctx, input.ID)
		if err != nil {
			return nil, ReprocessOutput{}, fmt.Errorf("failed to reprocess: %w", err)
		}
		return nil, ReprocessOutput{ID: res.ID, Status: res.Status, Reason: res.Reason}, nil
	}
}

package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/tasks"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/vectorindex"
)

// DocumentReader answers status and listing queries. documents.Store
// implements it.
type DocumentReader interface {
	Statuses(ctx context.Context, ids []string) ([]documents.StatusReport, error)
	ListDocuments(ctx context.Context, folderID string) ([]documents.Document, error)
	ListFolders(ctx context.Context, parentID string) ([]documents.Folder, error)
}

// Searcher runs chunk searches. vectorindex.Indexer implements it.
type Searcher interface {
	Search(ctx context.Context, q vectorindex.Query) (vectorindex.SearchResult, error)
}

// GraphReader answers graph queries. Both graph stores implement it.
type GraphReader interface {
	DocumentGraph(ctx context.Context, documentID string) (graph.Graph, error)
	FolderGraph(ctx context.Context, folderID string) (graph.Graph, error)
	EntityGraph(ctx context.Context, name, entityType string) (graph.Graph, error)
}

// Reprocessor resets failed documents. tasks.Pool implements it.
type Reprocessor interface {
	Reprocess(ctx context.Context, id string) (tasks.ReprocessResult, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies. Graph and Reprocessor may be nil, which
// leaves their tools unregistered.
type Config struct {
	Documents   DocumentReader
	Search      Searcher
	Graph       GraphReader
	Schema      graph.SchemaProvider
	Reprocessor Reprocessor
	Version     string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "raglens",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "document_status",
		Description: "Report the processing status (processing, ready, error) of documents by id. Unknown ids report not_found.",
	}, makeStatusHandler(cfg.Documents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents and subfolders of a folder.",
	}, makeListHandler(cfg.Documents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_chunks",
		Description: "Search indexed document chunks semantically, optionally restricted to a document or folder. Falls back to metadata filtering when no embedding is available.",
	}, makeSearchHandler(cfg.Search))

	if cfg.Graph != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "document_graph",
			Description: "Return the knowledge graph (entities and relationships) extracted from a document or a folder.",
		}, makeDocumentGraphHandler(cfg.Graph))

		mcp.AddTool(server, &mcp.Tool{
			Name:        "entity_graph",
			Description: "Return every relationship path through a named entity across all documents.",
		}, makeEntityGraphHandler(cfg.Graph, cfg.Schema))
	}

	if cfg.Reprocessor != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "reprocess_document",
			Description: "Restart processing of a document in error status from extraction. Other documents are skipped with a reason.",
		}, makeReprocessHandler(cfg.Reprocessor))
	}

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Package mcp exposes document status, search and graph queries as MCP
// tools.
package mcp

import (
	"github.com/Mekopa/AIHackathon-RAGLens/internal/documents"
	"github.com/Mekopa/AIHackathon-RAGLens/internal/graph"
)

// DocumentStatusInput defines the input parameters for the document_status tool.
type DocumentStatusInput struct {
	// IDs are the documents to report on.
	IDs []string `json:"ids" jsonschema:"Document ids to report on"`
}

// DocumentStatusOutput contains one report per requested id, in order.
type DocumentStatusOutput struct {
	// Documents reports unknown ids with status not_found.
	Documents []documents.StatusReport `json:"documents"`
}

// ListDocumentsInput defines the input parameters for the list_documents tool.
type ListDocumentsInput struct {
	// FolderID selects the folder. Empty lists the root.
	FolderID string `json:"folder_id,omitempty" jsonschema:"Folder id, empty for the documents root"`
}

// ListDocumentsOutput contains the documents of a folder.
type ListDocumentsOutput struct {
	Documents []documents.Document `json:"documents"`
	Folders   []documents.Folder   `json:"folders"`
}

// SearchChunksInput defines the input parameters for the search_chunks tool.
type SearchChunksInput struct {
	// Query is the semantic search query.
	Query string `json:"query,omitempty" jsonschema:"The semantic search query"`
	// DocumentID restricts the search to one document.
	DocumentID string `json:"document_id,omitempty" jsonschema:"Only search chunks of this document"`
	// FolderID restricts the search to documents directly in one folder.
	FolderID string `json:"folder_id,omitempty" jsonschema:"Only search chunks of documents in this folder"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of chunks to return (1-50, default 5)"`
	// MinScore drops vector matches below this similarity.
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum similarity (0-1) for vector matches"`
}

// SearchChunksOutput contains the search results.
type SearchChunksOutput struct {
	// Mode is vector, metadata or recent.
	Mode    string        `json:"mode"`
	Results []ChunkResult `json:"results"`
	// Message provides informational context (e.g., no matches).
	Message string `json:"message,omitempty"`
}

// ChunkResult is one matching chunk.
type ChunkResult struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	FolderPath   string  `json:"folder_path,omitempty"`
	ChunkIndex   int     `json:"chunk_index"`
	Score        float64 `json:"score"`
	Text         string  `json:"text"`
}

// DocumentGraphInput defines the input parameters for the document_graph tool.
type DocumentGraphInput struct {
	DocumentID string `json:"document_id,omitempty" jsonschema:"Document whose graph to return"`
	FolderID   string `json:"folder_id,omitempty" jsonschema:"Folder whose combined graph to return, used when document_id is empty"`
}

// EntityGraphInput defines the input parameters for the entity_graph tool.
type EntityGraphInput struct {
	Name string `json:"name" jsonschema:"Entity name, matched case-insensitively"`
	Type string `json:"type,omitempty" jsonschema:"Optional entity type, normalized to the schema"`
}

// GraphOutput is a set of nodes and edges.
type GraphOutput struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
	// Message provides informational context (e.g., empty graph).
	Message string `json:"message,omitempty"`
}

// ReprocessInput defines the input parameters for the reprocess_document tool.
type ReprocessInput struct {
	ID string `json:"id" jsonschema:"Document id; only documents in error status are reprocessed"`
}

// ReprocessOutput reports what happened to the request.
type ReprocessOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

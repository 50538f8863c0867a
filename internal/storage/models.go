package storage

// Record is one chunk written to the vector store. Embedding is nil when
// the chunk is stored without a vector (metadata-only mode).
type Record struct {
	ID        string         // Chunk id: "{document_id}_chunk_{index}"
	Text      string         // Chunk text
	Embedding []float32      // Vector, or nil
	Metadata  map[string]any // Primitive values only
}

// Match is a record returned by a query. Score is zero for filter and
// recency retrieval.
type Match struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// DefaultCollection is the Qdrant collection holding every chunk.
const DefaultCollection = "documents"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// VectorName is the named vector chunks are stored under.
const VectorName = "content"

// Payload keys written alongside the metadata.
const (
	FieldText         = "text"
	FieldChunkID      = "chunk_id"
	FieldDocumentID   = "document_id"
	FieldIndexedAt    = "indexed_at"
	FieldHasEmbedding = "has_embedding"
)

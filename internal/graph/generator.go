package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MinChunkLength is the shortest chunk, in characters, sent for extraction.
const MinChunkLength = 50

const systemPrompt = "You are a knowledge graph extraction tool that identifies entities and relationships in text."

// DocumentInput is one document handed to ProcessDocument.
type DocumentInput struct {
	ID       string
	Name     string
	FolderID string
	// Legacy marks documents from legacy binary formats, which get the
	// artifact filter.
	Legacy bool
	Text   string
	Chunks []string
}

// Generator extracts, normalizes and stores knowledge graphs.
type Generator struct {
	llm      LLM
	schema   SchemaProvider
	store    Store
	filter   *LegacyFilter
	observer Observer
	logger   *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithSchema replaces the built-in registry.
func WithSchema(s SchemaProvider) Option {
	return func(g *Generator) {
		if s != nil {
			g.schema = s
		}
	}
}

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(g *Generator) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithLegacyFilter replaces the artifact filter for legacy documents.
func WithLegacyFilter(f *LegacyFilter) Option {
	return func(g *Generator) {
		if f != nil {
			g.filter = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a Generator. store may be nil, in which case graphs
// are computed but never persisted.
func NewGenerator(llm LLM, store Store, opts ...Option) *Generator {
	g := &Generator{
		llm:      llm,
		store:    store,
		schema:   NewRegistry(),
		filter:   NewLegacyFilter(),
		observer: NopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Schema returns the schema in use.
func (g *Generator) Schema() SchemaProvider { return g.schema }

// Prompt builds the extraction prompt for a chunk.
func (g *Generator) Prompt(text string) string {
	return fmt.Sprintf(`Extract entities and relationships from the following text.

Entity types: %s
Relationship types: %s

For each entity, provide:
1. A unique identifier (name of the entity with no spaces)
2. The entity type (one from the list above)
3. The full name or description of the entity

For each relationship, provide:
1. The source entity identifier
2. The relationship type (one from the list above)
3. The target entity identifier

Return the results in JSON format as follows:

{
    "entities": [
        {"id": "entity_id", "type": "EntityType", "name": "Full Entity Name", "properties": {"key": "value"}}
    ],
    "relationships": [
        {"source": "source_entity_id", "type": "RELATIONSHIP_TYPE", "target": "target_entity_id"}
    ]
}

Ensure that relationship source and target names match exactly with the entity names.

Text to analyze:
%s`, strings.Join(g.schema.EntityTypes(), ", "), strings.Join(g.schema.RelationshipTypes(), ", "), text)
}

// Extract runs extraction on one chunk. A failed LLM call returns the error
// with an empty extraction; an unparseable response is logged and yields an
// empty extraction without error.
func (g *Generator) Extract(ctx context.Context, documentID string, chunkIndex int, text string) (Extraction, error) {
	prompt := g.Prompt(text)
	g.observer.OnRequest(ctx, documentID, chunkIndex, prompt)

	resp, err := g.llm.Complete(ctx, systemPrompt, prompt)
	g.observer.OnResponse(ctx, documentID, chunkIndex, resp, err)
	if err != nil {
		return Extraction{}, fmt.Errorf("chunk %d: %w", chunkIndex, err)
	}

	ext, err := ParseExtraction(resp)
	if err != nil {
		g.logger.Warn("invalid extraction response",
			"document_id", documentID, "chunk_index", chunkIndex, "error", err, "response", preview(resp, 200))
		ext = Extraction{}
	}

	g.normalize(&ext, documentID, chunkIndex)
	g.observer.OnEntities(ctx, documentID, chunkIndex, ext)
	return ext, nil
}

// normalize maps types onto the schema and stamps attribution properties.
func (g *Generator) normalize(ext *Extraction, documentID string, chunkIndex int) {
	for i := range ext.Entities {
		e := &ext.Entities[i]
		if t := g.schema.NormalizeEntityType(e.Type); t != e.Type {
			g.logger.Debug("entity type normalized", "document_id", documentID, "from", e.Type, "to", t)
			e.Type = t
		}
		e.Properties = stamp(e.Properties, documentID, chunkIndex)
	}
	for i := range ext.Relationships {
		r := &ext.Relationships[i]
		if t := g.schema.NormalizeRelationshipType(r.Type); t != r.Type {
			g.logger.Debug("relationship type normalized", "document_id", documentID, "from", r.Type, "to", t)
			r.Type = t
		}
		r.Properties = stamp(r.Properties, documentID, chunkIndex)
	}
}

// ProcessDocument extracts a graph from every long enough chunk and stores
// it. It never fails: LLM errors lose only their chunk and store errors are
// logged, leaving Counts.Persisted false.
func (g *Generator) ProcessDocument(ctx context.Context, doc DocumentInput) (Extraction, Counts) {
	log := g.logger.With("document_id", doc.ID, "stage", "graph")

	persist := g.store != nil
	if persist {
		if err := g.store.UpsertDocument(ctx, DocumentNode{ID: doc.ID, Name: doc.Name, FolderID: doc.FolderID}); err != nil {
			log.Warn("failed to store document node, continuing", "error", err)
		}
	}

	chunks := doc.Chunks
	if len(chunks) == 0 && doc.Text != "" {
		chunks = []string{doc.Text}
	}

	var all Extraction
	var counts Counts
	for i, chunk := range chunks {
		if len([]rune(strings.TrimSpace(chunk))) < MinChunkLength {
			continue
		}
		if ctx.Err() != nil {
			log.Warn("graph extraction cancelled", "chunk_index", i)
			break
		}
		ext, err := g.Extract(ctx, doc.ID, i, chunk)
		if err != nil {
			counts.FailedChunks++
			log.Warn("chunk extraction failed", "chunk_index", i, "error", err)
			continue
		}
		all.Entities = append(all.Entities, ext.Entities...)
		all.Relationships = append(all.Relationships, ext.Relationships...)
		log.Debug("chunk processed", "chunk_index", i,
			"entities", len(ext.Entities), "relationships", len(ext.Relationships))
	}

	if doc.Legacy {
		filtered, removed, applied := g.filter.Apply(all)
		if applied {
			all = filtered
			counts.Filtered = removed
		} else {
			log.Warn("legacy filter would remove nearly all entities, keeping unfiltered result",
				"entities", len(all.Entities))
		}
	}

	counts.Entities = len(all.Entities)
	counts.Relationships = len(all.Relationships)

	if persist {
		if err := g.store.UpsertGraph(ctx, doc.ID, all.Entities, all.Relationships); err != nil {
			log.Warn("failed to store graph, continuing without persistence", "error", err)
		} else {
			counts.Persisted = true
		}
	}

	log.Info("graph generated",
		"entities", counts.Entities, "relationships", counts.Relationships,
		"failed_chunks", counts.FailedChunks, "filtered", counts.Filtered, "persisted", counts.Persisted)
	return all, counts
}

// Remove deletes a document's graph data.
func (g *Generator) Remove(ctx context.Context, documentID string) error {
	if g.store == nil {
		return nil
	}
	return g.store.DeleteDocument(ctx, documentID)
}

func stamp(props map[string]any, documentID string, chunkIndex int) map[string]any {
	if props == nil {
		props = make(map[string]any, 2)
	}
	props[PropDocumentID] = documentID
	props[PropChunkIndex] = chunkIndex
	return props
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

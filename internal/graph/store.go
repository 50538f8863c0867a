package graph

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnreachable is returned when the graph database cannot be reached.
	ErrStoreUnreachable = errors.New("graph store unreachable")

	// ErrEntityNotFound is returned by Entity for unknown ids.
	ErrEntityNotFound = errors.New("entity not found")
)

// DocumentNode identifies a document in the graph.
type DocumentNode struct {
	ID       string
	Name     string
	FolderID string
}

// Node is an entity as returned by graph queries.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Color      string         `json:"color"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a relationship as returned by graph queries.
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Graph is a deduplicated set of nodes and edges.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Store persists extracted graphs. Entities are shared across documents by
// id; relationships and document nodes are scoped by document id.
type Store interface {
	UpsertDocument(ctx context.Context, doc DocumentNode) error
	UpsertGraph(ctx context.Context, documentID string, entities []Entity, relationships []Relationship) error
	DocumentGraph(ctx context.Context, documentID string) (Graph, error)
	FolderGraph(ctx context.Context, folderID string) (Graph, error)
	EntityGraph(ctx context.Context, name, entityType string) (Graph, error)
	Entity(ctx context.Context, id string) (Node, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Close(ctx context.Context) error
}

// graphBuilder accumulates nodes and edges without duplicates.
type graphBuilder struct {
	g     Graph
	nodes map[string]bool
	edges map[string]bool
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		g:     Graph{Nodes: []Node{}, Edges: []Edge{}},
		nodes: make(map[string]bool),
		edges: make(map[string]bool),
	}
}

func (b *graphBuilder) node(n Node) {
	if n.ID == "" || b.nodes[n.ID] {
		return
	}
	b.nodes[n.ID] = true
	b.g.Nodes = append(b.g.Nodes, n)
}

func (b *graphBuilder) edge(e Edge) {
	doc, _ := e.Properties[PropDocumentID].(string)
	key := e.Source + "\x00" + e.Type + "\x00" + e.Target + "\x00" + doc
	if b.edges[key] {
		return
	}
	b.edges[key] = true
	b.g.Edges = append(b.g.Edges, e)
}

package graph

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store for tests and runs without Neo4j.
type MemoryStore struct {
	mu        sync.RWMutex
	schema    SchemaProvider
	documents map[string]DocumentNode
	entities  map[string]Entity
	order     []string
	rels      []Relationship
	appears   map[string]map[string]bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. schema supplies node colors.
func NewMemoryStore(schema SchemaProvider) *MemoryStore {
	if schema == nil {
		schema = NewRegistry()
	}
	return &MemoryStore{
		schema:    schema,
		documents: make(map[string]DocumentNode),
		entities:  make(map[string]Entity),
		appears:   make(map[string]map[string]bool),
	}
}

// UpsertDocument implements Store.
func (s *MemoryStore) UpsertDocument(_ context.Context, doc DocumentNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

// UpsertGraph implements Store.
func (s *MemoryStore) UpsertGraph(_ context.Context, documentID string, entities []Entity, relationships []Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		prev, ok := s.entities[e.ID]
		if !ok {
			s.order = append(s.order, e.ID)
			prev = Entity{ID: e.ID, Properties: map[string]any{}}
		}
		prev.Type, prev.Name = e.Type, e.Name
		for k, v := range e.Properties {
			prev.Properties[k] = v
		}
		s.entities[e.ID] = prev
		if _, ok := s.documents[documentID]; ok {
			if s.appears[e.ID] == nil {
				s.appears[e.ID] = make(map[string]bool)
			}
			s.appears[e.ID][documentID] = true
		}
	}
	for _, r := range relationships {
		if _, ok := s.entities[r.Source]; !ok {
			continue
		}
		if _, ok := s.entities[r.Target]; !ok {
			continue
		}
		props := make(map[string]any, len(r.Properties)+1)
		for k, v := range r.Properties {
			props[k] = v
		}
		props[PropDocumentID] = documentID
		r.Properties = props
		s.rels = append(s.rels, r)
	}
	return nil
}

// DocumentGraph implements Store.
func (s *MemoryStore) DocumentGraph(_ context.Context, documentID string) (Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(r Relationship) bool { return r.Properties[PropDocumentID] == documentID }), nil
}

// FolderGraph implements Store.
func (s *MemoryStore) FolderGraph(_ context.Context, folderID string) (Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]bool)
	for id, d := range s.documents {
		if d.FolderID == folderID {
			docs[id] = true
		}
	}
	return s.collect(func(r Relationship) bool {
		id, _ := r.Properties[PropDocumentID].(string)
		return docs[id]
	}), nil
}

// EntityGraph implements Store.
func (s *MemoryStore) EntityGraph(_ context.Context, name, entityType string) (Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match := func(id string) bool {
		e := s.entities[id]
		return strings.EqualFold(e.Name, name) && (entityType == "" || e.Type == entityType)
	}
	return s.collect(func(r Relationship) bool { return match(r.Source) || match(r.Target) }), nil
}

// Entity implements Store.
func (s *MemoryStore) Entity(_ context.Context, id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Node{}, ErrEntityNotFound
	}
	return s.node(e), nil
}

// DeleteDocument implements Store.
func (s *MemoryStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rels[:0]
	for _, r := range s.rels {
		if r.Properties[PropDocumentID] != documentID {
			kept = append(kept, r)
		}
	}
	s.rels = kept
	delete(s.documents, documentID)
	for _, docs := range s.appears {
		delete(docs, documentID)
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close(context.Context) error { return nil }

// EntityCount returns the number of stored entities.
func (s *MemoryStore) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// AppearsIn reports whether an entity is linked to a document.
func (s *MemoryStore) AppearsIn(entityID, documentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appears[entityID][documentID]
}

func (s *MemoryStore) collect(keep func(Relationship) bool) Graph {
	b := newGraphBuilder()
	for _, r := range s.rels {
		if !keep(r) {
			continue
		}
		b.node(s.node(s.entities[r.Source]))
		b.node(s.node(s.entities[r.Target]))
		b.edge(Edge{Source: r.Source, Target: r.Target, Type: r.Type, Properties: r.Properties})
	}
	return b.g
}

func (s *MemoryStore) node(e Entity) Node {
	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	return Node{ID: e.ID, Type: e.Type, Name: e.Name, Color: s.schema.Color(e.Type), Properties: props}
}

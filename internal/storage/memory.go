package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process vector store using brute-force cosine
// similarity. It mirrors QdrantStore's behavior for tests and single-node
// runs without Qdrant.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	records   map[string]Record
}

// NewMemoryStore creates an empty store for vectors of dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	if dimension <= 0 {
		dimension = VectorDimension
	}
	return &MemoryStore{dimension: dimension, records: make(map[string]Record)}
}

// Dimension returns the vector size the store accepts.
func (s *MemoryStore) Dimension() int {
	return s.dimension
}

// Upsert implements the vector store contract.
func (s *MemoryStore) Upsert(_ context.Context, records []Record) error {
	for i, r := range records {
		if r.Embedding != nil && len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Embedding), s.dimension)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		meta := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		meta[FieldChunkID] = r.ID
		meta[FieldHasEmbedding] = r.Embedding != nil
		r.Metadata = meta
		s.records[r.ID] = r
	}
	return nil
}

// Query implements the vector store contract.
func (s *MemoryStore) Query(_ context.Context, vector []float32, filter map[string]any, limit int) ([]Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, id := range s.order {
		r := s.records[id]
		if r.Embedding == nil || !matchesFilter(r.Metadata, filter) {
			continue
		}
		m := toMemoryMatch(r)
		m.Score = cosine(vector, r.Embedding)
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return truncate(matches, limit), nil
}

// Scroll implements the vector store contract.
func (s *MemoryStore) Scroll(_ context.Context, filter map[string]any, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, id := range s.order {
		r := s.records[id]
		if matchesFilter(r.Metadata, filter) {
			matches = append(matches, toMemoryMatch(r))
		}
	}
	return truncate(matches, limit), nil
}

// Recent implements the vector store contract.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		matches = append(matches, toMemoryMatch(s.records[s.order[i]]))
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return asInt64(matches[i].Metadata[FieldIndexedAt]) > asInt64(matches[j].Metadata[FieldIndexedAt])
	})
	return truncate(matches, limit), nil
}

// DeleteDocument implements the vector store contract.
func (s *MemoryStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if s.records[id].Metadata[FieldDocumentID] == documentID {
			delete(s.records, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func toMemoryMatch(r Record) Match {
	meta := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		meta[k] = v
	}
	return Match{ID: r.ID, Text: r.Text, Metadata: meta}
}

func matchesFilter(meta, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func truncate(m []Match, limit int) []Match {
	if limit > 0 && len(m) > limit {
		return m[:limit]
	}
	return m
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection settings for QdrantStore.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantStore keeps chunks in a Qdrant collection with a named "content"
// vector. Chunks without embeddings are stored with an empty vector map so
// their payload stays filterable.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantStore creates a Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}
	if s.collection == "" {
		s.collection = DefaultCollection
	}
	if s.dimension <= 0 {
		s.dimension = VectorDimension
	}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return s, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
func (s *QdrantStore) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(newBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStore) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Dimension returns the vector size of the collection.
func (s *QdrantStore) Dimension() int {
	return s.dimension
}

// EnsureCollection creates the collection and its payload indexes if they
// do not exist. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			VectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}
	return nil
}

// createPayloadIndexes indexes the fields used by filters and ordering.
func (s *QdrantStore) createPayloadIndexes(ctx context.Context) error {
	fields := map[string]qdrant.FieldType{
		FieldDocumentID:   qdrant.FieldType_FieldTypeKeyword,
		FieldChunkID:      qdrant.FieldType_FieldTypeKeyword,
		"folder_id":       qdrant.FieldType_FieldTypeKeyword,
		"file_type":       qdrant.FieldType_FieldTypeKeyword,
		"language":        qdrant.FieldType_FieldTypeKeyword,
		"chunk_index":     qdrant.FieldType_FieldTypeInteger,
		FieldIndexedAt:    qdrant.FieldType_FieldTypeInteger,
		FieldHasEmbedding: qdrant.FieldType_FieldTypeBool,
	}
	for field, fieldType := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// PointID maps a chunk id onto the UUID Qdrant requires. The mapping is
// stable, so re-indexing a chunk overwrites its previous point.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStore) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(newBackOff(), ctx))
}

// Upsert stores records in batches of 100. Records with an embedding must
// match the collection dimension.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	for i, r := range records {
		if r.Embedding != nil && len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Embedding), s.dimension)
		}
	}

	const batchSize = 100
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, r := range records[i:end] {
			vectors := map[string]*qdrant.Vector{}
			if r.Embedding != nil {
				vectors[VectorName] = qdrant.NewVector(r.Embedding...)
			}
			payload := toPayload(r.Metadata)
			payload[FieldText] = qdrant.NewValueString(r.Text)
			payload[FieldChunkID] = qdrant.NewValueString(r.ID)
			payload[FieldHasEmbedding] = qdrant.NewValueBool(r.Embedding != nil)

			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(r.ID)),
				Vectors: qdrant.NewVectorsMap(vectors),
				Payload: payload,
			})
		}
		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Query returns the nearest chunks to vector, optionally restricted by a
// metadata equality filter.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, filter map[string]any, limit int) ([]Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	vectorName := VectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &vectorName,
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := toMatch(r.Payload)
		m.Score = float64(r.Score)
		matches = append(matches, m)
	}
	return matches, nil
}

// Scroll returns up to limit chunks matching filter without vector ranking.
func (s *QdrantStore) Scroll(ctx context.Context, filter map[string]any, limit int) ([]Match, error) {
	return s.scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         toFilter(filter),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
}

// Recent returns the most recently indexed chunks.
func (s *QdrantStore) Recent(ctx context.Context, limit int) ([]Match, error) {
	return s.scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		OrderBy: &qdrant.OrderBy{
			Key:       FieldIndexedAt,
			Direction: qdrant.Direction_Desc.Enum(),
		},
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(false),
	})
}

func (s *QdrantStore) scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]Match, error) {
	results, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll chunks: %w", err)
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, toMatch(r.Payload))
	}
	return matches, nil
}

// DeleteDocument removes every chunk of a document.
func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(FieldDocumentID, documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

func toPayload(metadata map[string]any) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(metadata)+3)
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			payload[k] = qdrant.NewValueString(val)
		case bool:
			payload[k] = qdrant.NewValueBool(val)
		case int:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int64:
			payload[k] = qdrant.NewValueInt(val)
		case float32:
			payload[k] = qdrant.NewValueDouble(float64(val))
		case float64:
			payload[k] = qdrant.NewValueDouble(val)
		case nil:
		default:
			payload[k] = qdrant.NewValueString(fmt.Sprint(val))
		}
	}
	return payload
}

func toFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			must = append(must, qdrant.NewMatch(k, val))
		case bool:
			must = append(must, qdrant.NewMatchBool(k, val))
		case int:
			must = append(must, qdrant.NewMatchInt(k, int64(val)))
		case int64:
			must = append(must, qdrant.NewMatchInt(k, val))
		case float64:
			must = append(must, qdrant.NewRange(k, &qdrant.Range{Gte: &val, Lte: &val}))
		default:
			must = append(must, qdrant.NewMatch(k, fmt.Sprint(val)))
		}
	}
	return &qdrant.Filter{Must: must}
}

func toMatch(payload map[string]*qdrant.Value) Match {
	m := Match{Metadata: make(map[string]any, len(payload))}
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			m.Metadata[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			m.Metadata[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			m.Metadata[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			m.Metadata[k] = kind.BoolValue
		}
	}
	m.ID, _ = m.Metadata[FieldChunkID].(string)
	m.Text, _ = m.Metadata[FieldText].(string)
	delete(m.Metadata, FieldText)
	return m
}

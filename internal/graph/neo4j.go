package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds connection settings for Neo4jStore.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// documentLabel labels document nodes. It differs from the Document entity
// type so extracted entities never merge into file nodes.
const documentLabel = "SourceDocument"

// Neo4jStore is a Store backed by Neo4j. Entity nodes are labelled with
// their canonical type, so only normalized types may reach it.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	schema   SchemaProvider
	logger   *slog.Logger
}

var _ Store = (*Neo4jStore)(nil)

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, schema SchemaProvider, logger *slog.Logger) (*Neo4jStore, error) {
	if schema == nil {
		schema = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return &Neo4jStore{driver: driver, database: cfg.Database, schema: schema, logger: logger}, nil
}

// EnsureConstraints creates unique id constraints for documents and every
// canonical entity type. Idempotent.
func (s *Neo4jStore) EnsureConstraints(ctx context.Context) error {
	labels := append([]string{documentLabel}, s.schema.EntityTypes()...)
	for _, label := range labels {
		q := fmt.Sprintf("CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", label, label)
		if _, err := s.run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create constraint for %s: %w", label, err)
		}
	}
	return nil
}

// Health verifies the driver can reach the server.
func (s *Neo4jStore) Health(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

// Close implements Store.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
}

// UpsertDocument implements Store.
func (s *Neo4jStore) UpsertDocument(ctx context.Context, doc DocumentNode) error {
	params := map[string]any{"id": doc.ID, "name": doc.Name, "folder_id": nil}
	if doc.FolderID != "" {
		params["folder_id"] = doc.FolderID
	}
	_, err := s.run(ctx, `
		MERGE (d:SourceDocument {id: $id})
		SET d.name = $name, d.folder_id = $folder_id`, params)
	if err != nil {
		return fmt.Errorf("failed to store document node: %w", err)
	}
	return nil
}

// UpsertGraph implements Store. Entities are merged per canonical label and
// linked to the document with APPEARS_IN; relationships are merged per
// document so each document keeps its own copy.
func (s *Neo4jStore) UpsertGraph(ctx context.Context, documentID string, entities []Entity, relationships []Relationship) error {
	byType := make(map[string][]any)
	for _, e := range entities {
		label := s.schema.NormalizeEntityType(e.Type)
		byType[label] = append(byType[label], map[string]any{
			"id":    e.ID,
			"name":  e.Name,
			"color": s.schema.Color(label),
			"props": e.Properties,
		})
	}
	for label, rows := range byType {
		q := fmt.Sprintf(`
			UNWIND $rows AS row
			MERGE (e:%s {id: row.id})
			SET e += row.props, e.name = row.name, e.color = row.color
			WITH e
			OPTIONAL MATCH (d:SourceDocument {id: $document_id})
			FOREACH (_ IN CASE WHEN d IS NULL THEN [] ELSE [1] END | MERGE (e)-[:APPEARS_IN]->(d))`, label)
		if _, err := s.run(ctx, q, map[string]any{"rows": rows, "document_id": documentID}); err != nil {
			return fmt.Errorf("failed to store %s entities: %w", label, err)
		}
	}

	relsByType := make(map[string][]any)
	for _, r := range relationships {
		t := s.schema.NormalizeRelationshipType(r.Type)
		relsByType[t] = append(relsByType[t], map[string]any{
			"source": r.Source,
			"target": r.Target,
			"props":  r.Properties,
		})
	}
	for t, rows := range relsByType {
		q := fmt.Sprintf(`
			UNWIND $rows AS row
			MATCH (src {id: row.source}) WHERE NOT src:SourceDocument
			MATCH (dst {id: row.target}) WHERE NOT dst:SourceDocument
			MERGE (src)-[r:%s {document_id: $document_id}]->(dst)
			SET r += row.props`, t)
		if _, err := s.run(ctx, q, map[string]any{"rows": rows, "document_id": documentID}); err != nil {
			return fmt.Errorf("failed to store %s relationships: %w", t, err)
		}
	}
	return nil
}

// DocumentGraph implements Store.
func (s *Neo4jStore) DocumentGraph(ctx context.Context, documentID string) (Graph, error) {
	return s.query(ctx, `
		MATCH (e1)-[r]->(e2)
		WHERE r.document_id = $document_id
		RETURN e1, r, e2`, map[string]any{"document_id": documentID})
}

// FolderGraph implements Store.
func (s *Neo4jStore) FolderGraph(ctx context.Context, folderID string) (Graph, error) {
	return s.query(ctx, `
		MATCH (d:SourceDocument {folder_id: $folder_id})
		WITH collect(d.id) AS ids
		MATCH (e1)-[r]->(e2)
		WHERE r.document_id IN ids
		RETURN e1, r, e2`, map[string]any{"folder_id": folderID})
}

// EntityGraph implements Store. It returns every relationship touching an
// entity with the given name, optionally restricted to one type.
func (s *Neo4jStore) EntityGraph(ctx context.Context, name, entityType string) (Graph, error) {
	q := `
		MATCH (e)-[r]-(related)
		WHERE toLower(e.name) = toLower($name) AND NOT e:SourceDocument AND NOT related:SourceDocument`
	if entityType != "" {
		q += fmt.Sprintf(" AND e:%s", s.schema.NormalizeEntityType(entityType))
	}
	q += " RETURN startNode(r) AS e1, r, endNode(r) AS e2"
	return s.query(ctx, q, map[string]any{"name": name})
}

// Entity implements Store.
func (s *Neo4jStore) Entity(ctx context.Context, id string) (Node, error) {
	res, err := s.run(ctx, `
		MATCH (e {id: $id})
		WHERE NOT e:SourceDocument
		RETURN e LIMIT 1`, map[string]any{"id": id})
	if err != nil {
		return Node{}, fmt.Errorf("failed to get entity: %w", err)
	}
	if len(res.Records) == 0 {
		return Node{}, ErrEntityNotFound
	}
	n, _, err := neo4j.GetRecordValue[neo4j.Node](res.Records[0], "e")
	if err != nil {
		return Node{}, fmt.Errorf("failed to decode entity: %w", err)
	}
	return s.toNode(n), nil
}

// DeleteDocument implements Store. Shared entity nodes are kept.
func (s *Neo4jStore) DeleteDocument(ctx context.Context, documentID string) error {
	params := map[string]any{"document_id": documentID}
	res, err := s.run(ctx, `
		MATCH ()-[r]->()
		WHERE r.document_id = $document_id
		DELETE r`, params)
	if err != nil {
		return fmt.Errorf("failed to delete relationships: %w", err)
	}
	relsDeleted := res.Summary.Counters().RelationshipsDeleted()

	res, err = s.run(ctx, `
		MATCH (d:SourceDocument {id: $document_id})
		DETACH DELETE d`, params)
	if err != nil {
		return fmt.Errorf("failed to delete document node: %w", err)
	}
	s.logger.Info("deleted document graph",
		"document_id", documentID,
		"relationships_deleted", relsDeleted,
		"documents_deleted", res.Summary.Counters().NodesDeleted())
	return nil
}

func (s *Neo4jStore) query(ctx context.Context, q string, params map[string]any) (Graph, error) {
	res, err := s.run(ctx, q, params)
	if err != nil {
		return Graph{}, fmt.Errorf("graph query failed: %w", err)
	}

	b := newGraphBuilder()
	for _, rec := range res.Records {
		src, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "e1")
		if err != nil {
			return Graph{}, fmt.Errorf("failed to decode node: %w", err)
		}
		dst, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "e2")
		if err != nil {
			return Graph{}, fmt.Errorf("failed to decode node: %w", err)
		}
		rel, _, err := neo4j.GetRecordValue[neo4j.Relationship](rec, "r")
		if err != nil {
			return Graph{}, fmt.Errorf("failed to decode relationship: %w", err)
		}
		from, to := s.toNode(src), s.toNode(dst)
		b.node(from)
		b.node(to)
		b.edge(Edge{Source: from.ID, Target: to.ID, Type: rel.Type, Properties: rel.Props})
	}
	return b.g, nil
}

func (s *Neo4jStore) toNode(n neo4j.Node) Node {
	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		props[k] = v
	}
	id, _ := props["id"].(string)
	name, _ := props["name"].(string)
	delete(props, "id")
	delete(props, "name")
	delete(props, "color")

	label := DefaultEntityType
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	return Node{ID: id, Type: label, Name: name, Color: s.schema.Color(label), Properties: props}
}

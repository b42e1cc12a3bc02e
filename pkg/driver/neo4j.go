package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/marketgraph/marketgraph/pkg/types"
)

// Neo4jDriver implements GraphDriver on a Neo4j database.
//
// Entities are stored as (:Entity) nodes and relationships as
// [:RELATES] edges with a relation_type property; keeping the Cypher
// type static lets one query shape serve the whole closed relation set.
// Open property maps are serialized to a JSON string because Neo4j
// properties only hold primitives and homogeneous lists.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver connects to a Neo4j instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{client: client, database: database}, nil
}

func (n *Neo4jDriver) PutEntity(ctx context.Context, entity *types.GraphEntity) error {
	propsJSON, err := json.Marshal(entity.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal entity properties: %w", err)
	}

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (e:Entity {uuid: $id, workspace_id: $workspace_id})
			SET e.entity_type = $entity_type,
			    e.name = $name,
			    e.properties = $properties,
			    e.embedding = $embedding,
			    e.created_at = $created_at,
			    e.updated_at = $updated_at
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":           entity.ID,
			"workspace_id": entity.WorkspaceID,
			"entity_type":  string(entity.Type),
			"name":         entity.Name,
			"properties":   string(propsJSON),
			"embedding":    float32sToAny(entity.Embedding),
			"created_at":   entity.CreatedAt,
			"updated_at":   entity.UpdatedAt,
		})
		return nil, err
	})
	if err != nil {
		return wrapBackend("neo4j put entity", err)
	}
	return nil
}

func (n *Neo4jDriver) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (e:Entity {uuid: $id, workspace_id: $workspace_id})
			RETURN e.uuid AS uuid, e.workspace_id AS workspace_id,
			       e.entity_type AS entity_type, e.name AS name,
			       e.properties AS properties, e.embedding AS embedding,
			       e.created_at AS created_at, e.updated_at AS updated_at
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"id":           id,
			"workspace_id": workspaceID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapBackend("neo4j get entity", err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, nil
	}
	return entityFromRecord(records[0])
}

func (n *Neo4jDriver) DeleteEntity(ctx context.Context, workspaceID, id string) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (e:Entity {uuid: $id, workspace_id: $workspace_id})
			DETACH DELETE e
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":           id,
			"workspace_id": workspaceID,
		})
		return nil, err
	})
	if err != nil {
		return wrapBackend("neo4j delete entity", err)
	}
	return nil
}

func (n *Neo4jDriver) QueryEntities(ctx context.Context, workspaceID string, query EntityQuery) ([]*types.GraphEntity, error) {
	clauses := []string{"e.workspace_id = $workspace_id"}
	params := map[string]any{"workspace_id": workspaceID}

	if query.Type != nil {
		clauses = append(clauses, "e.entity_type = $entity_type")
		params["entity_type"] = string(*query.Type)
	}
	if query.NamePattern != "" {
		clauses = append(clauses, "toLower(e.name) CONTAINS toLower($name_pattern)")
		params["name_pattern"] = query.NamePattern
	}

	cypher := `
		MATCH (e:Entity)
		WHERE ` + strings.Join(clauses, " AND ") + `
		RETURN e.uuid AS uuid, e.workspace_id AS workspace_id,
		       e.entity_type AS entity_type, e.name AS name,
		       e.properties AS properties, e.embedding AS embedding,
		       e.created_at AS created_at, e.updated_at AS updated_at
		ORDER BY e.created_at, e.uuid
	`
	if query.Limit > 0 {
		cypher += " LIMIT $limit"
		params["limit"] = query.Limit
	}

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapBackend("neo4j query entities", err)
	}

	records := result.([]*db.Record)
	entities := make([]*types.GraphEntity, 0, len(records))
	for _, record := range records {
		entity, err := entityFromRecord(record)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func (n *Neo4jDriver) PutRelationship(ctx context.Context, rel *types.GraphRelationship) error {
	propsJSON, err := json.Marshal(rel.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship properties: %w", err)
	}

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (s:Entity {uuid: $source_id, workspace_id: $workspace_id})
			MATCH (t:Entity {uuid: $target_id, workspace_id: $workspace_id})
			MERGE (s)-[r:RELATES {uuid: $id}]->(t)
			SET r.workspace_id = $workspace_id,
			    r.relation_type = $relation_type,
			    r.weight = $weight,
			    r.properties = $properties,
			    r.created_at = $created_at,
			    r.updated_at = $updated_at
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":            rel.ID,
			"workspace_id":  rel.WorkspaceID,
			"source_id":     rel.SourceID,
			"target_id":     rel.TargetID,
			"relation_type": string(rel.Type),
			"weight":        rel.Weight,
			"properties":    string(propsJSON),
			"created_at":    rel.CreatedAt,
			"updated_at":    rel.UpdatedAt,
		})
		return nil, err
	})
	if err != nil {
		return wrapBackend("neo4j put relationship", err)
	}
	return nil
}

func (n *Neo4jDriver) GetRelationship(ctx context.Context, workspaceID, id string) (*types.GraphRelationship, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (s:Entity)-[r:RELATES {uuid: $id, workspace_id: $workspace_id}]->(t:Entity)
			RETURN r.uuid AS uuid, r.workspace_id AS workspace_id,
			       s.uuid AS source_id, t.uuid AS target_id,
			       r.relation_type AS relation_type, r.weight AS weight,
			       r.properties AS properties,
			       r.created_at AS created_at, r.updated_at AS updated_at
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"id":           id,
			"workspace_id": workspaceID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapBackend("neo4j get relationship", err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, nil
	}
	return relationshipFromRecord(records[0])
}

func (n *Neo4jDriver) DeleteRelationship(ctx context.Context, workspaceID, id string) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH ()-[r:RELATES {uuid: $id, workspace_id: $workspace_id}]->()
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":           id,
			"workspace_id": workspaceID,
		})
		return nil, err
	})
	if err != nil {
		return wrapBackend("neo4j delete relationship", err)
	}
	return nil
}

func (n *Neo4jDriver) QueryRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error) {
	var match string
	switch direction {
	case types.DirectionOut:
		match = `MATCH (s:Entity {uuid: $entity_id})-[r:RELATES {workspace_id: $workspace_id}]->(t:Entity)`
	case types.DirectionIn:
		match = `MATCH (s:Entity)-[r:RELATES {workspace_id: $workspace_id}]->(t:Entity {uuid: $entity_id})`
	default:
		match = `MATCH (s:Entity)-[r:RELATES {workspace_id: $workspace_id}]-(t:Entity)
			WHERE s.uuid = $entity_id OR t.uuid = $entity_id`
	}

	cypher := match + `
		RETURN DISTINCT r.uuid AS uuid, r.workspace_id AS workspace_id,
		       startNode(r).uuid AS source_id, endNode(r).uuid AS target_id,
		       r.relation_type AS relation_type, r.weight AS weight,
		       r.properties AS properties,
		       r.created_at AS created_at, r.updated_at AS updated_at
		ORDER BY created_at, uuid
	`

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"workspace_id": workspaceID,
			"entity_id":    entityID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapBackend("neo4j query relationships", err)
	}

	records := result.([]*db.Record)
	rels := make([]*types.GraphRelationship, 0, len(records))
	for _, record := range records {
		rel, err := relationshipFromRecord(record)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// EntityExists implements GlobalProber with a workspace-agnostic match
// on the entity uuid.
func (n *Neo4jDriver) EntityExists(ctx context.Context, id string) (bool, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (e:Entity {uuid: $id}) RETURN count(e) AS c`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return false, wrapBackend("neo4j entity exists", err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return false, nil
	}
	if c, ok := records[0].Get("c"); ok {
		if count, ok := c.(int64); ok {
			return count > 0, nil
		}
	}
	return false, nil
}

func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

func (n *Neo4jDriver) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// CreateIndices creates the uniqueness and lookup indices the adapter
// relies on. Safe to call repeatedly.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT entity_uuid IF NOT EXISTS FOR (e:Entity) REQUIRE (e.uuid, e.workspace_id) IS UNIQUE`,
		`CREATE INDEX entity_workspace IF NOT EXISTS FOR (e:Entity) ON (e.workspace_id)`,
		`CREATE INDEX entity_type IF NOT EXISTS FOR (e:Entity) ON (e.workspace_id, e.entity_type)`,
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return wrapBackend("neo4j create indices", err)
		}
	}
	return nil
}

func entityFromRecord(record *db.Record) (*types.GraphEntity, error) {
	entity := &types.GraphEntity{
		ID:          stringField(record, "uuid"),
		WorkspaceID: stringField(record, "workspace_id"),
		Type:        types.EntityType(stringField(record, "entity_type")),
		Name:        stringField(record, "name"),
		Embedding:   floatField(record, "embedding"),
		CreatedAt:   timeField(record, "created_at"),
		UpdatedAt:   timeField(record, "updated_at"),
	}
	if entity.ID == "" {
		return nil, fmt.Errorf("entity record missing uuid")
	}

	if props := stringField(record, "properties"); props != "" {
		if err := json.Unmarshal([]byte(props), &entity.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity properties: %w", err)
		}
	}
	return entity, nil
}

func relationshipFromRecord(record *db.Record) (*types.GraphRelationship, error) {
	rel := &types.GraphRelationship{
		ID:          stringField(record, "uuid"),
		WorkspaceID: stringField(record, "workspace_id"),
		SourceID:    stringField(record, "source_id"),
		TargetID:    stringField(record, "target_id"),
		Type:        types.RelationType(stringField(record, "relation_type")),
		CreatedAt:   timeField(record, "created_at"),
		UpdatedAt:   timeField(record, "updated_at"),
	}
	if rel.ID == "" {
		return nil, fmt.Errorf("relationship record missing uuid")
	}

	if w, ok := record.Get("weight"); ok {
		if f, ok := w.(float64); ok {
			rel.Weight = f
		}
	}
	if props := stringField(record, "properties"); props != "" {
		if err := json.Unmarshal([]byte(props), &rel.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relationship properties: %w", err)
		}
	}
	return rel, nil
}

func stringField(record *db.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func timeField(record *db.Record, key string) time.Time {
	if v, ok := record.Get(key); ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func floatField(record *db.Record, key string) []float32 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(list))
	for _, item := range list {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

// float32sToAny widens an embedding for the Neo4j parameter encoder,
// which accepts []any but not []float32.
func float32sToAny(v []float32) []any {
	if v == nil {
		return nil
	}
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/marketgraph/marketgraph/pkg/store"
	"github.com/marketgraph/marketgraph/pkg/types"
)

// SnapshotWriter dumps a workspace's graph to Parquet files for
// offline analysis in column-store tooling.
type SnapshotWriter struct {
	baseDir string
	store   *store.Store
}

// NewSnapshotWriter creates a writer rooted at baseDir. The entities
// and relationships subdirectories are created up front.
func NewSnapshotWriter(baseDir string, s *store.Store) (*SnapshotWriter, error) {
	for _, d := range []string{"entities", "relationships"} {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return &SnapshotWriter{baseDir: baseDir, store: s}, nil
}

// parquetEntity is the flat Parquet schema for an entity row. The open
// properties map is serialized to a JSON string column.
type parquetEntity struct {
	ID          string     `parquet:"id"`
	WorkspaceID string     `parquet:"workspace_id"`
	EntityType  string     `parquet:"entity_type"`
	Name        string     `parquet:"name"`
	Properties  string     `parquet:"properties"`
	Embedding   []float32  `parquet:"embedding"`
	CreatedAt   *time.Time `parquet:"created_at"`
	UpdatedAt   *time.Time `parquet:"updated_at"`
}

// parquetRelationship is the flat Parquet schema for a relationship row.
type parquetRelationship struct {
	ID           string     `parquet:"id"`
	WorkspaceID  string     `parquet:"workspace_id"`
	SourceID     string     `parquet:"source_id"`
	TargetID     string     `parquet:"target_id"`
	RelationType string     `parquet:"relation_type"`
	Weight       float64    `parquet:"weight"`
	Properties   string     `parquet:"properties"`
	CreatedAt    *time.Time `parquet:"created_at"`
	UpdatedAt    *time.Time `parquet:"updated_at"`
}

// WriteSnapshot writes every entity and relationship in the workspace
// to a pair of timestamped Parquet files and returns their paths.
func (w *SnapshotWriter) WriteSnapshot(ctx context.Context, workspaceID string) (entityPath, relationshipPath string, err error) {
	entities, err := w.store.FindEntities(ctx, workspaceID, nil, "", 0)
	if err != nil {
		return "", "", err
	}

	rows := make([]parquetEntity, 0, len(entities))
	var rels []*types.GraphRelationship
	for _, entity := range entities {
		propsJSON, err := json.Marshal(entity.Properties)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal properties: %w", err)
		}
		row := parquetEntity{
			ID:          entity.ID,
			WorkspaceID: entity.WorkspaceID,
			EntityType:  string(entity.Type),
			Name:        entity.Name,
			Properties:  string(propsJSON),
			Embedding:   entity.Embedding,
		}
		if !entity.CreatedAt.IsZero() {
			row.CreatedAt = &entity.CreatedAt
		}
		if !entity.UpdatedAt.IsZero() {
			row.UpdatedAt = &entity.UpdatedAt
		}
		rows = append(rows, row)

		outgoing, err := w.store.GetRelationships(ctx, workspaceID, entity.ID, types.DirectionOut)
		if err != nil {
			return "", "", err
		}
		rels = append(rels, outgoing...)
	}

	stamp := time.Now().UnixNano()
	entityPath = filepath.Join(w.baseDir, "entities", fmt.Sprintf("entities_%s_%d.parquet", workspaceID, stamp))
	if len(rows) > 0 {
		if err := parquet.WriteFile(entityPath, rows); err != nil {
			return "", "", fmt.Errorf("failed to write entity snapshot: %w", err)
		}
	}

	relRows := make([]parquetRelationship, 0, len(rels))
	for _, rel := range rels {
		propsJSON, err := json.Marshal(rel.Properties)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal properties: %w", err)
		}
		row := parquetRelationship{
			ID:           rel.ID,
			WorkspaceID:  rel.WorkspaceID,
			SourceID:     rel.SourceID,
			TargetID:     rel.TargetID,
			RelationType: string(rel.Type),
			Weight:       rel.Weight,
			Properties:   string(propsJSON),
		}
		if !rel.CreatedAt.IsZero() {
			row.CreatedAt = &rel.CreatedAt
		}
		if !rel.UpdatedAt.IsZero() {
			row.UpdatedAt = &rel.UpdatedAt
		}
		relRows = append(relRows, row)
	}

	relationshipPath = filepath.Join(w.baseDir, "relationships", fmt.Sprintf("relationships_%s_%d.parquet", workspaceID, stamp))
	if len(relRows) > 0 {
		if err := parquet.WriteFile(relationshipPath, relRows); err != nil {
			return "", "", fmt.Errorf("failed to write relationship snapshot: %w", err)
		}
	}

	return entityPath, relationshipPath, nil
}

// Package store implements the entity/relationship layer of the
// knowledge graph. It owns validation, workspace isolation, referential
// integrity, and the delete cascade; the persistence backend below it
// stores records verbatim.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marketgraph/marketgraph/pkg/driver"
	"github.com/marketgraph/marketgraph/pkg/embedder"
	"github.com/marketgraph/marketgraph/pkg/types"
)

// Store provides workspace-isolated CRUD over graph entities and
// relationships. All writes go through the Store; collaborators never
// touch the backend directly.
type Store struct {
	driver   driver.GraphDriver
	embedder embedder.Client
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedder attaches an embedding client. Without one, entities are
// persisted without embeddings and semantic queries fall back to
// unweighted cost.
func WithEmbedder(client embedder.Client) Option {
	return func(s *Store) {
		s.embedder = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store over the given persistence backend.
func NewStore(d driver.GraphDriver, opts ...Option) *Store {
	s := &Store{
		driver: d,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver exposes the underlying backend for read-only traversal layers.
func (s *Store) Driver() driver.GraphDriver {
	return s.driver
}

// AddEntity validates, assigns an id and timestamps, computes an
// embedding on a best-effort basis, and persists a new entity. An
// embedding failure is logged and the entity is created without a
// vector; a backend failure aborts the create.
func (s *Store) AddEntity(ctx context.Context, workspaceID string, entityType types.EntityType, name string, properties map[string]any) (string, error) {
	now := time.Now().UTC()
	entity := &types.GraphEntity{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Type:        entityType,
		Name:        name,
		Properties:  properties,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := entity.ValidateForCreate(); err != nil {
		return "", fmt.Errorf("add entity: %w", err)
	}

	entity.Embedding = s.embed(ctx, entity)

	if err := s.driver.PutEntity(ctx, entity); err != nil {
		return "", fmt.Errorf("add entity: %w", err)
	}
	return entity.ID, nil
}

// GetEntity retrieves an entity by id within a workspace. A cross-tenant
// lookup returns (nil, nil) exactly like a missing entity; the other
// tenant's data is never observable.
func (s *Store) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	if workspaceID == "" {
		return nil, types.ErrEmptyWorkspaceID
	}
	if id == "" {
		return nil, nil
	}
	entity, err := s.driver.GetEntity(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	if entity == nil || entity.WorkspaceID != workspaceID {
		return nil, nil
	}
	return entity, nil
}

// EntityUpdate carries the mutable fields of an entity. Nil fields are
// left unchanged.
type EntityUpdate struct {
	Name       *string
	Properties map[string]any
}

// UpdateEntity applies an update, bumps updated_at, and recomputes the
// embedding when name or properties changed. Returns the updated entity
// or ErrNotFound when no such entity exists in the workspace.
func (s *Store) UpdateEntity(ctx context.Context, workspaceID, id string, update EntityUpdate) (*types.GraphEntity, error) {
	entity, err := s.GetEntity(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("update entity %s: %w", id, types.ErrNotFound)
	}

	changed := false
	if update.Name != nil && *update.Name != entity.Name {
		entity.Name = *update.Name
		changed = true
	}
	if update.Properties != nil {
		entity.Properties = update.Properties
		changed = true
	}
	if err := entity.Validate(); err != nil {
		return nil, fmt.Errorf("update entity: %w", err)
	}

	entity.UpdatedAt = time.Now().UTC()
	if changed {
		entity.Embedding = s.embed(ctx, entity)
	}

	if err := s.driver.PutEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("update entity: %w", err)
	}
	return entity, nil
}

// DeleteEntity removes an entity and every relationship incident to it,
// relationships first so no edge ever dangles. Returns whether the
// entity existed.
func (s *Store) DeleteEntity(ctx context.Context, workspaceID, id string) (bool, error) {
	entity, err := s.GetEntity(ctx, workspaceID, id)
	if err != nil {
		return false, err
	}
	if entity == nil {
		return false, nil
	}

	rels, err := s.driver.QueryRelationships(ctx, workspaceID, id, types.DirectionBoth)
	if err != nil {
		return false, fmt.Errorf("delete entity: %w", err)
	}
	for _, rel := range rels {
		if err := s.driver.DeleteRelationship(ctx, workspaceID, rel.ID); err != nil {
			return false, fmt.Errorf("delete entity: cascade relationship %s: %w", rel.ID, err)
		}
	}

	if err := s.driver.DeleteEntity(ctx, workspaceID, id); err != nil {
		return false, fmt.Errorf("delete entity: %w", err)
	}
	return true, nil
}

// FindEntities lists workspace entities filtered by type and a
// case-insensitive name substring, in creation-time order.
func (s *Store) FindEntities(ctx context.Context, workspaceID string, entityType *types.EntityType, namePattern string, limit int) ([]*types.GraphEntity, error) {
	if workspaceID == "" {
		return nil, types.ErrEmptyWorkspaceID
	}
	if entityType != nil && !entityType.Valid() {
		return nil, types.ErrInvalidEntityType
	}
	entities, err := s.driver.QueryEntities(ctx, workspaceID, driver.EntityQuery{
		Type:        entityType,
		NamePattern: namePattern,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	return entities, nil
}

// AddRelationship validates both endpoints, clamps the weight into
// [0,1], and persists a new relationship. Endpoints from a workspace
// other than workspaceID fail with ErrWorkspaceViolation; an endpoint
// that does not exist at all fails with ErrNotFound.
func (s *Store) AddRelationship(ctx context.Context, workspaceID, sourceID, targetID string, relationType types.RelationType, weight float64, properties map[string]any) (string, error) {
	now := time.Now().UTC()
	rel := &types.GraphRelationship{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        relationType,
		Weight:      types.ClampWeight(weight),
		Properties:  properties,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rel.Validate(); err != nil {
		return "", fmt.Errorf("add relationship: %w", err)
	}

	for _, endpointID := range []string{sourceID, targetID} {
		if err := s.checkEndpoint(ctx, workspaceID, endpointID); err != nil {
			return "", fmt.Errorf("add relationship: %w", err)
		}
	}

	if err := s.driver.PutRelationship(ctx, rel); err != nil {
		return "", fmt.Errorf("add relationship: %w", err)
	}
	return rel.ID, nil
}

// checkEndpoint verifies an endpoint exists inside workspaceID. An
// entity that exists in another workspace is a WorkspaceViolation, not
// a NotFound; the distinction keeps cross-tenant references loud.
func (s *Store) checkEndpoint(ctx context.Context, workspaceID, entityID string) error {
	entity, err := s.driver.GetEntity(ctx, workspaceID, entityID)
	if err != nil {
		return err
	}
	if entity != nil {
		return nil
	}
	// Absent in this workspace. Probe whether it lives elsewhere so the
	// caller sees the violation instead of a generic miss.
	elsewhere, err := s.entityExistsAnywhere(ctx, entityID)
	if err != nil {
		return err
	}
	if elsewhere {
		return fmt.Errorf("entity %s: %w", entityID, types.ErrWorkspaceViolation)
	}
	return fmt.Errorf("entity %s: %w", entityID, types.ErrNotFound)
}

// entityExistsAnywhere reports whether any workspace holds the entity.
// Backends key strictly by (workspace, id), so this is only answerable
// through the driver when it supports a global probe; the memory and
// badger drivers do via the GlobalProber extension.
func (s *Store) entityExistsAnywhere(ctx context.Context, entityID string) (bool, error) {
	prober, ok := s.driver.(driver.GlobalProber)
	if !ok {
		return false, nil
	}
	return prober.EntityExists(ctx, entityID)
}

// GetRelationship retrieves a relationship by id within a workspace.
// Returns (nil, nil) when absent or owned by another tenant.
func (s *Store) GetRelationship(ctx context.Context, workspaceID, id string) (*types.GraphRelationship, error) {
	if workspaceID == "" {
		return nil, types.ErrEmptyWorkspaceID
	}
	rel, err := s.driver.GetRelationship(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	if rel == nil || rel.WorkspaceID != workspaceID {
		return nil, nil
	}
	return rel, nil
}

// GetRelationships lists relationships incident to an entity, filtered
// by direction, in creation-time order. A missing entity yields an
// empty slice.
func (s *Store) GetRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error) {
	if workspaceID == "" {
		return nil, types.ErrEmptyWorkspaceID
	}
	switch direction {
	case types.DirectionIn, types.DirectionOut, types.DirectionBoth:
	default:
		direction = types.DirectionBoth
	}
	rels, err := s.driver.QueryRelationships(ctx, workspaceID, entityID, direction)
	if err != nil {
		return nil, fmt.Errorf("get relationships: %w", err)
	}
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].CreatedAt.Before(rels[j].CreatedAt)
	})
	return rels, nil
}

// DeleteRelationship removes a relationship. Returns whether it existed.
func (s *Store) DeleteRelationship(ctx context.Context, workspaceID, id string) (bool, error) {
	rel, err := s.GetRelationship(ctx, workspaceID, id)
	if err != nil {
		return false, err
	}
	if rel == nil {
		return false, nil
	}
	if err := s.driver.DeleteRelationship(ctx, workspaceID, id); err != nil {
		return false, fmt.Errorf("delete relationship: %w", err)
	}
	return true, nil
}

// embed computes the entity's embedding from its name and properties.
// Failures are logged and swallowed; semantic features are best-effort
// on top of an embedding-free baseline.
func (s *Store) embed(ctx context.Context, entity *types.GraphEntity) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.EmbedSingle(ctx, embeddingText(entity))
	if err != nil {
		s.logger.Warn("embedding failed, continuing without vector",
			"entity_id", entity.ID,
			"workspace_id", entity.WorkspaceID,
			"error", err)
		return nil
	}
	return vec
}

// embeddingText renders the entity into the text that gets embedded.
// Properties are serialized so a property change produces a different
// cache key downstream.
func embeddingText(entity *types.GraphEntity) string {
	text := string(entity.Type) + ": " + entity.Name
	if len(entity.Properties) > 0 {
		if props, err := json.Marshal(entity.Properties); err == nil {
			text += " " + string(props)
		}
	}
	return text
}

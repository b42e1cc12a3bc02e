package driver

import (
	"context"
	"fmt"

	"github.com/marketgraph/marketgraph/pkg/types"
)

// GraphProvider represents the type of persistence backend.
type GraphProvider string

const (
	GraphProviderMemory GraphProvider = "memory"
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderBadger GraphProvider = "badger"
)

// EntityQuery constrains a workspace-scoped entity listing.
type EntityQuery struct {
	// Type filters by entity type when non-nil.
	Type *types.EntityType
	// NamePattern is a case-insensitive substring match on the name.
	// Empty matches everything.
	NamePattern string
	// Limit bounds the result set. Zero or negative means no limit.
	Limit int
}

// GraphDriver is the persistence backend contract. Every call is keyed
// by (workspace_id, id); workspace_id is never optional. Lookups for
// absent records return (nil, nil); infrastructure failures are the
// only errors a read may produce.
//
// Drivers persist records verbatim. Validation, referential integrity,
// and the delete cascade are the store's responsibility.
type GraphDriver interface {
	// PutEntity creates or replaces an entity.
	PutEntity(ctx context.Context, entity *types.GraphEntity) error

	// GetEntity retrieves an entity by (workspace, id). Returns (nil, nil)
	// when no such entity exists in that workspace.
	GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error)

	// DeleteEntity removes an entity. Deleting an absent entity is not
	// an error.
	DeleteEntity(ctx context.Context, workspaceID, id string) error

	// QueryEntities lists workspace entities matching the query in
	// creation-time order.
	QueryEntities(ctx context.Context, workspaceID string, query EntityQuery) ([]*types.GraphEntity, error)

	// PutRelationship creates or replaces a relationship.
	PutRelationship(ctx context.Context, rel *types.GraphRelationship) error

	// GetRelationship retrieves a relationship by (workspace, id).
	// Returns (nil, nil) when absent.
	GetRelationship(ctx context.Context, workspaceID, id string) (*types.GraphRelationship, error)

	// DeleteRelationship removes a relationship. Deleting an absent
	// relationship is not an error.
	DeleteRelationship(ctx context.Context, workspaceID, id string) error

	// QueryRelationships lists relationships incident to an entity in
	// creation-time order, filtered by direction relative to that entity.
	QueryRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error)

	// Provider returns the backend type.
	Provider() GraphProvider

	// Close releases all resources held by the driver.
	Close(ctx context.Context) error
}

// GlobalProber is an optional extension some drivers implement. It
// answers whether an entity id exists in any workspace, letting the
// store report a cross-tenant reference as a workspace violation
// instead of a generic miss. Drivers that cannot answer cheaply simply
// do not implement it.
type GlobalProber interface {
	EntityExists(ctx context.Context, id string) (bool, error)
}

// wrapBackend tags an infrastructure failure so callers can match it
// with errors.Is(err, types.ErrBackendUnavailable).
func wrapBackend(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrBackendUnavailable, err)
}

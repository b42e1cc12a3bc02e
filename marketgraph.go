package marketgraph

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketgraph/marketgraph/pkg/analytics"
	"github.com/marketgraph/marketgraph/pkg/driver"
	"github.com/marketgraph/marketgraph/pkg/embedder"
	"github.com/marketgraph/marketgraph/pkg/query"
	"github.com/marketgraph/marketgraph/pkg/store"
	"github.com/marketgraph/marketgraph/pkg/types"
)

// MarketGraph is the main interface for interacting with the knowledge
// graph. Builders mutate it through the store operations; reporting
// layers read it through the query and analytics operations.
type MarketGraph interface {
	// AddEntity creates a typed entity and returns its id.
	AddEntity(ctx context.Context, workspaceID string, entityType types.EntityType, name string, properties map[string]any) (string, error)

	// GetEntity retrieves an entity, or nil when absent in the workspace.
	GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error)

	// UpdateEntity applies a partial update and returns the new state.
	UpdateEntity(ctx context.Context, workspaceID, id string, update store.EntityUpdate) (*types.GraphEntity, error)

	// DeleteEntity removes an entity and every incident relationship.
	DeleteEntity(ctx context.Context, workspaceID, id string) (bool, error)

	// FindEntities lists workspace entities in creation-time order.
	FindEntities(ctx context.Context, workspaceID string, entityType *types.EntityType, namePattern string, limit int) ([]*types.GraphEntity, error)

	// AddRelationship creates a typed edge between two entities.
	AddRelationship(ctx context.Context, workspaceID, sourceID, targetID string, relationType types.RelationType, weight float64, properties map[string]any) (string, error)

	// GetRelationships lists an entity's incident relationships.
	GetRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error)

	// DeleteRelationship removes a relationship.
	DeleteRelationship(ctx context.Context, workspaceID, id string) (bool, error)

	// FindPath searches for a path between two entities.
	FindPath(ctx context.Context, workspaceID, fromID, toID string, maxDepth int, mode types.PathMode) (*types.PathResult, error)

	// Subgraph extracts a bounded neighborhood around a center entity.
	Subgraph(ctx context.Context, workspaceID, centerID string, depth, maxEntities int) (*types.SubGraph, error)

	// FindPattern enumerates structural matches of a pattern.
	FindPattern(ctx context.Context, workspaceID string, pattern *types.GraphPattern, limit int) ([]*types.PatternMatch, error)

	// Analytics computes workspace-level graph metrics.
	Analytics(ctx context.Context, workspaceID string) (*types.GraphAnalytics, error)

	// Export converts a subgraph into the generic node-link form.
	Export(sub *types.SubGraph) *types.NodeLinkGraph

	// Close closes all connections and cleans up resources.
	Close(ctx context.Context) error
}

// Client is the main implementation of the MarketGraph interface.
type Client struct {
	driver   driver.GraphDriver
	embedder embedder.Client
	store    *store.Store
	engine   *query.Engine
	analyzer *analytics.Analyzer
	config   *Config
	logger   *slog.Logger
}

// Config holds configuration for the client.
type Config struct {
	// TimeZone for reporting timestamps
	TimeZone *time.Location
	// CentralityTopN bounds the analytics centrality ranking
	CentralityTopN int
}

// NewClient creates a client over the given backend. The embedder may
// be nil; semantic features then fall back to their unweighted
// baseline.
func NewClient(d driver.GraphDriver, embedderClient embedder.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = &Config{TimeZone: time.UTC}
	}
	if logger == nil {
		logger = slog.Default()
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if embedderClient != nil {
		storeOpts = append(storeOpts, store.WithEmbedder(embedderClient))
	}
	s := store.NewStore(d, storeOpts...)

	analyzerOpts := []analytics.Option{analytics.WithLogger(logger)}
	if config.CentralityTopN > 0 {
		analyzerOpts = append(analyzerOpts, analytics.WithCentralityTopN(config.CentralityTopN))
	}

	return &Client{
		driver:   d,
		embedder: embedderClient,
		store:    s,
		engine:   query.NewEngine(s, query.WithLogger(logger)),
		analyzer: analytics.NewAnalyzer(s, analyzerOpts...),
		config:   config,
		logger:   logger,
	}, nil
}

func (c *Client) AddEntity(ctx context.Context, workspaceID string, entityType types.EntityType, name string, properties map[string]any) (string, error) {
	return c.store.AddEntity(ctx, workspaceID, entityType, name, properties)
}

func (c *Client) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	return c.store.GetEntity(ctx, workspaceID, id)
}

func (c *Client) UpdateEntity(ctx context.Context, workspaceID, id string, update store.EntityUpdate) (*types.GraphEntity, error) {
	return c.store.UpdateEntity(ctx, workspaceID, id, update)
}

func (c *Client) DeleteEntity(ctx context.Context, workspaceID, id string) (bool, error) {
	return c.store.DeleteEntity(ctx, workspaceID, id)
}

func (c *Client) FindEntities(ctx context.Context, workspaceID string, entityType *types.EntityType, namePattern string, limit int) ([]*types.GraphEntity, error) {
	return c.store.FindEntities(ctx, workspaceID, entityType, namePattern, limit)
}

func (c *Client) AddRelationship(ctx context.Context, workspaceID, sourceID, targetID string, relationType types.RelationType, weight float64, properties map[string]any) (string, error) {
	return c.store.AddRelationship(ctx, workspaceID, sourceID, targetID, relationType, weight, properties)
}

func (c *Client) GetRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error) {
	return c.store.GetRelationships(ctx, workspaceID, entityID, direction)
}

func (c *Client) DeleteRelationship(ctx context.Context, workspaceID, id string) (bool, error) {
	return c.store.DeleteRelationship(ctx, workspaceID, id)
}

func (c *Client) FindPath(ctx context.Context, workspaceID, fromID, toID string, maxDepth int, mode types.PathMode) (*types.PathResult, error) {
	return c.engine.FindPath(ctx, workspaceID, fromID, toID, maxDepth, mode)
}

func (c *Client) Subgraph(ctx context.Context, workspaceID, centerID string, depth, maxEntities int) (*types.SubGraph, error) {
	return c.engine.Subgraph(ctx, workspaceID, centerID, depth, maxEntities)
}

func (c *Client) FindPattern(ctx context.Context, workspaceID string, pattern *types.GraphPattern, limit int) ([]*types.PatternMatch, error) {
	return c.engine.FindPattern(ctx, workspaceID, pattern, limit)
}

func (c *Client) Analytics(ctx context.Context, workspaceID string) (*types.GraphAnalytics, error) {
	return c.analyzer.Analytics(ctx, workspaceID)
}

func (c *Client) Export(sub *types.SubGraph) *types.NodeLinkGraph {
	return analytics.Export(sub)
}

// Close closes the backend connection and the embedder.
func (c *Client) Close(ctx context.Context) error {
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			c.logger.Warn("failed to close embedder", "error", err)
		}
	}
	return c.driver.Close(ctx)
}

// GetDriver returns the underlying graph driver
func (c *Client) GetDriver() driver.GraphDriver {
	return c.driver
}

// GetEmbedder returns the embedder client
func (c *Client) GetEmbedder() embedder.Client {
	return c.embedder
}

// GetStore returns the entity/relationship store
func (c *Client) GetStore() *store.Store {
	return c.store
}

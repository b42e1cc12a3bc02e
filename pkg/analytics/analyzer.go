// Package analytics computes workspace-level graph metrics and exports
// graph data for downstream reporting.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/marketgraph/marketgraph/pkg/store"
	"github.com/marketgraph/marketgraph/pkg/types"
	"github.com/marketgraph/marketgraph/pkg/utils"
)

// DefaultCentralityTopN bounds the centrality ranking.
const DefaultCentralityTopN = 10

// Analyzer computes metrics over a workspace's graph.
type Analyzer struct {
	store  *store.Store
	logger *slog.Logger
	topN   int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithCentralityTopN sets how many entities the centrality ranking keeps.
func WithCentralityTopN(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.topN = n
		}
	}
}

// NewAnalyzer creates an Analyzer over the given store.
func NewAnalyzer(s *store.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:  s,
		logger: slog.Default(),
		topN:   DefaultCentralityTopN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// graphView is a fully loaded snapshot of one workspace's graph, built
// once per analytics call so every metric reads consistent data.
type graphView struct {
	entities []*types.GraphEntity
	rels     []*types.GraphRelationship

	// undirected adjacency: entity id -> neighbor id -> edge count
	adjacency map[string]map[string]int
}

func (a *Analyzer) loadGraph(ctx context.Context, workspaceID string) (*graphView, error) {
	entities, err := a.store.FindEntities(ctx, workspaceID, nil, "", 0)
	if err != nil {
		return nil, err
	}

	view := &graphView{
		entities:  entities,
		adjacency: make(map[string]map[string]int, len(entities)),
	}
	for _, entity := range entities {
		view.adjacency[entity.ID] = make(map[string]int)
	}

	// Outgoing edges per entity cover every relationship exactly once.
	for _, entity := range entities {
		rels, err := a.store.GetRelationships(ctx, workspaceID, entity.ID, types.DirectionOut)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			srcAdj, okSrc := view.adjacency[rel.SourceID]
			dstAdj, okDst := view.adjacency[rel.TargetID]
			if !okSrc || !okDst {
				// Dangling edge written around the cascade. Skip it so
				// metrics stay computable on a corrupted backend.
				a.logger.Warn("skipping relationship with missing endpoint",
					"relationship_id", rel.ID,
					"workspace_id", workspaceID)
				continue
			}
			view.rels = append(view.rels, rel)
			srcAdj[rel.TargetID]++
			dstAdj[rel.SourceID]++
		}
	}
	return view, nil
}

// Analytics computes the full metrics report for a workspace. An empty
// workspace yields a zeroed report, not an error.
func (a *Analyzer) Analytics(ctx context.Context, workspaceID string) (*types.GraphAnalytics, error) {
	view, err := a.loadGraph(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	report := &types.GraphAnalytics{
		WorkspaceID:        workspaceID,
		EntityCount:        len(view.entities),
		RelationshipCount:  len(view.rels),
		EntityCounts:       make(map[types.EntityType]int),
		RelationshipCounts: make(map[types.RelationType]int),
		ComputedAt:         time.Now().UTC(),
	}
	for _, entity := range view.entities {
		report.EntityCounts[entity.Type]++
	}
	for _, rel := range view.rels {
		report.RelationshipCounts[rel.Type]++
	}

	n := len(view.entities)
	e := len(view.rels)
	if n > 1 {
		// Directed graph: at most n*(n-1) distinct edges.
		report.Density = float64(e) / float64(n*(n-1))
	}
	if n > 0 {
		report.AvgDegree = 2.0 * float64(e) / float64(n)
	}

	report.Centrality = a.centrality(view)
	report.Components = components(view)
	report.Clusters = labelPropagation(view.adjacency)
	return report, nil
}

// centrality ranks entities by a direct-adjacency betweenness proxy:
// an entity scores one point for every pair of its neighbors that has
// no direct edge between them, so the score counts the pairs the
// entity bridges. An approximation of betweenness over length-2 paths
// only, cubic in the worst case, not exact shortest-path betweenness.
func (a *Analyzer) centrality(view *graphView) []types.CentralityScore {
	n := len(view.entities)
	if n < 3 {
		return nil
	}

	names := make(map[string]string, n)
	for _, entity := range view.entities {
		names[entity.ID] = entity.Name
	}

	scored := make([]utils.ScoredItem[types.CentralityScore], 0, n)
	for _, entity := range view.entities {
		neighbors := make([]string, 0, len(view.adjacency[entity.ID]))
		for id := range view.adjacency[entity.ID] {
			neighbors = append(neighbors, id)
		}
		sort.Strings(neighbors)

		between := 0
		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				if _, direct := view.adjacency[neighbors[i]][neighbors[j]]; !direct {
					between++
				}
			}
		}

		// Normalize by the number of neighbor pairs the entity could bridge.
		score := 0.0
		if pairs := (n - 1) * (n - 2) / 2; pairs > 0 {
			score = float64(between) / float64(pairs)
		}
		scored = append(scored, utils.ScoredItem[types.CentralityScore]{
			Item: types.CentralityScore{
				EntityID: entity.ID,
				Name:     names[entity.ID],
				Score:    score,
			},
			Score: score,
		})
	}

	top := utils.TopKByScore(scored, a.topN)
	out := make([]types.CentralityScore, 0, len(top))
	for _, item := range top {
		out = append(out, item.Item)
	}
	return out
}

// components finds connected components with an iterative depth-first
// traversal over the undirected view of the graph. Each component's
// member ids are sorted; components are ordered largest first.
func components(view *graphView) [][]string {
	visited := make(map[string]bool, len(view.entities))
	var result [][]string

	for _, entity := range view.entities {
		if visited[entity.ID] {
			continue
		}

		var component []string
		stack := []string{entity.ID}
		visited[entity.ID] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, id)
			for neighbor := range view.adjacency[id] {
				if !visited[neighbor] {
					visited[neighbor] = true
					stack = append(stack, neighbor)
				}
			}
		}
		sort.Strings(component)
		result = append(result, component)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if len(result[i]) != len(result[j]) {
			return len(result[i]) > len(result[j])
		}
		return result[i][0] < result[j][0]
	})
	return result
}

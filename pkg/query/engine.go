// Package query implements graph traversal over the store: path
// finding, bounded subgraph extraction, and declarative pattern
// matching. The engine is stateless; every call owns its visited-set,
// so concurrent queries need no locking.
package query

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/marketgraph/marketgraph/pkg/store"
	"github.com/marketgraph/marketgraph/pkg/types"
	"github.com/marketgraph/marketgraph/pkg/utils"
)

// Engine runs read-only traversals against a Store.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a query engine over the given store.
func NewEngine(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// step is one traversal move: the relationship crossed and the entity
// id reached. Relationships are crossed in either direction; every
// relation type has a defined reverse, so the graph is navigable both
// ways.
type step struct {
	rel    *types.GraphRelationship
	nextID string
}

// neighbors lists the steps available from an entity, in the store's
// relationship listing order.
func (e *Engine) neighbors(ctx context.Context, workspaceID, entityID string) ([]step, error) {
	rels, err := e.store.GetRelationships(ctx, workspaceID, entityID, types.DirectionBoth)
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(rels))
	for _, rel := range rels {
		next := rel.TargetID
		if next == entityID {
			next = rel.SourceID
		}
		steps = append(steps, step{rel: rel, nextID: next})
	}
	return steps, nil
}

// FindPath searches for a path between two entities, bounded by
// maxDepth hops. Returns (nil, nil) when either endpoint is missing or
// no path exists within the bound.
func (e *Engine) FindPath(ctx context.Context, workspaceID, fromID, toID string, maxDepth int, mode types.PathMode) (*types.PathResult, error) {
	if maxDepth <= 0 {
		return nil, fmt.Errorf("find path: %w", types.ErrInvalidLimit)
	}

	from, err := e.store.GetEntity(ctx, workspaceID, fromID)
	if err != nil {
		return nil, err
	}
	to, err := e.store.GetEntity(ctx, workspaceID, toID)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, nil
	}
	if fromID == toID {
		return &types.PathResult{
			Entities: []*types.GraphEntity{from},
			Mode:     mode,
		}, nil
	}

	switch mode {
	case types.PathWeighted:
		return e.cheapestPath(ctx, workspaceID, from, toID, maxDepth, mode, func(_ context.Context, rel *types.GraphRelationship, _ string) (float64, error) {
			return rel.Weight, nil
		})
	case types.PathSemantic:
		return e.cheapestPath(ctx, workspaceID, from, toID, maxDepth, mode, e.semanticCost(from))
	default:
		return e.shortestPath(ctx, workspaceID, from, toID, maxDepth)
	}
}

// shortestPath is an unweighted breadth-first search. The first path to
// reach the target wins; ties resolve by the store's listing order
// because the frontier preserves it.
func (e *Engine) shortestPath(ctx context.Context, workspaceID string, from *types.GraphEntity, toID string, maxDepth int) (*types.PathResult, error) {
	type parentLink struct {
		prevID string
		rel    *types.GraphRelationship
	}

	visited := map[string]bool{from.ID: true}
	parents := make(map[string]parentLink)
	frontier := []string{from.ID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		for _, id := range frontier {
			steps, err := e.neighbors(ctx, workspaceID, id)
			if err != nil {
				return nil, err
			}
			for _, st := range steps {
				if visited[st.nextID] {
					continue
				}
				visited[st.nextID] = true
				parents[st.nextID] = parentLink{prevID: id, rel: st.rel}
				if st.nextID == toID {
					return e.buildPath(ctx, workspaceID, from, toID, types.PathShortest, func(id string) (string, *types.GraphRelationship) {
						link := parents[id]
						return link.prevID, link.rel
					}, 0)
				}
				next = append(next, st.nextID)
			}
		}
		frontier = next
	}
	return nil, nil
}

// costFunc prices one traversal step.
type costFunc func(ctx context.Context, rel *types.GraphRelationship, nextID string) (float64, error)

// semanticCost prices a hop by embedding distance from the path origin.
// An entity without an embedding costs the unweighted fallback of 1.0.
func (e *Engine) semanticCost(origin *types.GraphEntity) costFunc {
	return func(ctx context.Context, _ *types.GraphRelationship, nextID string) (float64, error) {
		if len(origin.Embedding) == 0 {
			return 1.0, nil
		}
		next, err := e.store.GetEntity(ctx, origin.WorkspaceID, nextID)
		if err != nil {
			return 0, err
		}
		if next == nil || len(next.Embedding) == 0 {
			return 1.0, nil
		}
		return 1.0 - utils.CosineSimilarity(origin.Embedding, next.Embedding), nil
	}
}

// pqItem is a priority-queue entry for best-first search.
type pqItem struct {
	id   string
	cost float64
	hops int
	seq  int
}

type pathQueue []*pqItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	// Insertion order breaks cost ties, keeping results deterministic.
	return q[i].seq < q[j].seq
}
func (q pathQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pathQueue) Push(x any) { *q = append(*q, x.(*pqItem)) }

func (q *pathQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// cheapestPath is a Dijkstra-style best-first search bounded by maxDepth
// hops. Search state is keyed by (node, hops), not by node alone: a
// cheap route that reaches a node with no hop budget left must not
// block a costlier route that reaches it with budget to spare. Within
// one state, cost is relaxed whenever a cheaper route appears.
func (e *Engine) cheapestPath(ctx context.Context, workspaceID string, from *types.GraphEntity, toID string, maxDepth int, mode types.PathMode, cost costFunc) (*types.PathResult, error) {
	type stateKey struct {
		id   string
		hops int
	}
	type parentLink struct {
		prev stateKey
		rel  *types.GraphRelationship
	}

	start := stateKey{id: from.ID, hops: 0}
	best := map[stateKey]float64{start: 0}
	parents := make(map[stateKey]parentLink)
	done := make(map[stateKey]bool)

	pq := &pathQueue{{id: from.ID, cost: 0, hops: 0}}
	heap.Init(pq)
	seq := 1

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := heap.Pop(pq).(*pqItem)
		key := stateKey{id: current.id, hops: current.hops}
		if done[key] {
			continue
		}
		done[key] = true

		if current.id == toID {
			// Walk parent links backwards from the goal state. The
			// callback ignores its argument and advances the cursor
			// because the same node can appear at several hop counts.
			cursor := key
			return e.buildPath(ctx, workspaceID, from, toID, mode, func(string) (string, *types.GraphRelationship) {
				link := parents[cursor]
				cursor = link.prev
				return link.prev.id, link.rel
			}, current.cost)
		}
		if current.hops >= maxDepth {
			continue
		}

		steps, err := e.neighbors(ctx, workspaceID, current.id)
		if err != nil {
			return nil, err
		}
		for _, st := range steps {
			nextKey := stateKey{id: st.nextID, hops: current.hops + 1}
			if done[nextKey] {
				continue
			}
			stepCost, err := cost(ctx, st.rel, st.nextID)
			if err != nil {
				return nil, err
			}
			candidate := current.cost + stepCost
			if known, seen := best[nextKey]; seen && known <= candidate {
				continue
			}
			best[nextKey] = candidate
			parents[nextKey] = parentLink{prev: key, rel: st.rel}
			heap.Push(pq, &pqItem{id: st.nextID, cost: candidate, hops: nextKey.hops, seq: seq})
			seq++
		}
	}
	return nil, nil
}

// buildPath walks parent links back from the target and materializes
// the entities along the way.
func (e *Engine) buildPath(ctx context.Context, workspaceID string, from *types.GraphEntity, toID string, mode types.PathMode, parent func(string) (string, *types.GraphRelationship), cost float64) (*types.PathResult, error) {
	var ids []string
	var rels []*types.GraphRelationship

	for id := toID; id != from.ID; {
		prevID, rel := parent(id)
		ids = append(ids, id)
		rels = append(rels, rel)
		id = prevID
	}
	// Reverse into origin-to-target order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
		rels[i], rels[j] = rels[j], rels[i]
	}

	entities := []*types.GraphEntity{from}
	for _, id := range ids {
		entity, err := e.store.GetEntity(ctx, workspaceID, id)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, fmt.Errorf("build path: entity %s: %w", id, types.ErrNotFound)
		}
		entities = append(entities, entity)
	}

	return &types.PathResult{
		Entities:      entities,
		Relationships: rels,
		Cost:          cost,
		Hops:          len(rels),
		Mode:          mode,
	}, nil
}

// Subgraph extracts the neighborhood around a center entity with a
// breadth-limited traversal. Expansion stops when depth is exhausted or
// maxEntities is reached; the center is always included and partial
// results are valid. A missing center yields (nil, nil).
func (e *Engine) Subgraph(ctx context.Context, workspaceID, centerID string, depth, maxEntities int) (*types.SubGraph, error) {
	if depth < 0 {
		depth = 0
	}

	center, err := e.store.GetEntity(ctx, workspaceID, centerID)
	if err != nil {
		return nil, err
	}
	if center == nil {
		return nil, nil
	}

	included := map[string]*types.GraphEntity{centerID: center}
	order := []string{centerID}
	relSeen := make(map[string]bool)
	var rels []*types.GraphRelationship

	frontier := []string{centerID}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		for _, id := range frontier {
			if maxEntities > 0 && len(included) >= maxEntities {
				break
			}
			steps, err := e.neighbors(ctx, workspaceID, id)
			if err != nil {
				return nil, err
			}
			for _, st := range steps {
				if _, ok := included[st.nextID]; !ok {
					if maxEntities > 0 && len(included) >= maxEntities {
						continue
					}
					entity, err := e.store.GetEntity(ctx, workspaceID, st.nextID)
					if err != nil {
						return nil, err
					}
					if entity == nil {
						continue
					}
					included[st.nextID] = entity
					order = append(order, st.nextID)
					next = append(next, st.nextID)
				}
				if !relSeen[st.rel.ID] {
					relSeen[st.rel.ID] = true
					rels = append(rels, st.rel)
				}
			}
		}
		frontier = next
	}

	entities := make([]*types.GraphEntity, 0, len(order))
	for _, id := range order {
		entities = append(entities, included[id])
	}
	// Drop edges whose far endpoint was cut by the entity cap.
	kept := rels[:0]
	for _, rel := range rels {
		if _, okS := included[rel.SourceID]; !okS {
			continue
		}
		if _, okT := included[rel.TargetID]; !okT {
			continue
		}
		kept = append(kept, rel)
	}

	return &types.SubGraph{
		Entities:      entities,
		Relationships: kept,
		CenterID:      centerID,
		Depth:         depth,
	}, nil
}

// FindPattern enumerates structural matches of a declarative pattern.
// Each candidate root is expanded with an explicit worklist and its own
// visited-set; a match qualifies only when the traversal reaches at
// least pattern.MinDepth.
func (e *Engine) FindPattern(ctx context.Context, workspaceID string, pattern *types.GraphPattern, limit int) ([]*types.PatternMatch, error) {
	if pattern == nil {
		return nil, nil
	}
	maxDepth := pattern.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}

	roots, err := e.patternRoots(ctx, workspaceID, pattern)
	if err != nil {
		return nil, err
	}

	var matches []*types.PatternMatch
	for _, root := range roots {
		if limit > 0 && len(matches) >= limit {
			break
		}
		match, err := e.matchFrom(ctx, workspaceID, root, pattern, maxDepth)
		if err != nil {
			return nil, err
		}
		if match != nil {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// patternRoots lists candidate starting entities: type-constrained and
// filtered by the pattern's exact-match property constraints.
func (e *Engine) patternRoots(ctx context.Context, workspaceID string, pattern *types.GraphPattern) ([]*types.GraphEntity, error) {
	var roots []*types.GraphEntity
	if len(pattern.EntityTypes) == 0 {
		all, err := e.store.FindEntities(ctx, workspaceID, nil, "", 0)
		if err != nil {
			return nil, err
		}
		roots = all
	} else {
		for _, entityType := range pattern.EntityTypes {
			et := entityType
			batch, err := e.store.FindEntities(ctx, workspaceID, &et, "", 0)
			if err != nil {
				return nil, err
			}
			roots = append(roots, batch...)
		}
	}

	if len(pattern.Properties) == 0 {
		return roots, nil
	}
	filtered := roots[:0]
	for _, root := range roots {
		if matchesProperties(root, pattern.Properties) {
			filtered = append(filtered, root)
		}
	}
	return filtered, nil
}

// matchesProperties checks exact-match constraints. Properties are an
// open schemaless map, so values may be slices or nested maps;
// DeepEqual handles those where == would panic.
func matchesProperties(entity *types.GraphEntity, constraints map[string]any) bool {
	for key, want := range constraints {
		got, ok := entity.Properties[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// matchFrom expands one root. The worklist carries (entity id, depth)
// pairs; a per-attempt visited-set prevents cycles without sharing
// state across roots.
func (e *Engine) matchFrom(ctx context.Context, workspaceID string, root *types.GraphEntity, pattern *types.GraphPattern, maxDepth int) (*types.PatternMatch, error) {
	type workItem struct {
		id    string
		depth int
	}

	visited := map[string]bool{root.ID: true}
	entities := []*types.GraphEntity{root}
	var rels []*types.GraphRelationship
	relSeen := make(map[string]bool)
	deepest := 0

	worklist := []workItem{{id: root.ID, depth: 0}}
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := worklist[0]
		worklist = worklist[1:]
		if item.depth >= maxDepth {
			continue
		}

		steps, err := e.neighbors(ctx, workspaceID, item.id)
		if err != nil {
			return nil, err
		}
		for _, st := range steps {
			if !pattern.AllowsRelationType(st.rel.Type) {
				continue
			}
			if visited[st.nextID] {
				continue
			}
			next, err := e.store.GetEntity(ctx, workspaceID, st.nextID)
			if err != nil {
				return nil, err
			}
			if next == nil || !pattern.AllowsEntityType(next.Type) {
				continue
			}

			visited[st.nextID] = true
			entities = append(entities, next)
			if !relSeen[st.rel.ID] {
				relSeen[st.rel.ID] = true
				rels = append(rels, st.rel)
			}
			if item.depth+1 > deepest {
				deepest = item.depth + 1
			}
			worklist = append(worklist, workItem{id: st.nextID, depth: item.depth + 1})
		}
	}

	if deepest < pattern.MinDepth {
		return nil, nil
	}

	return &types.PatternMatch{
		RootID:        root.ID,
		Entities:      entities,
		Relationships: rels,
		Depth:         deepest,
		Confidence:    confidence(pattern, entities, rels, deepest, maxDepth),
	}, nil
}

// confidence scores a match from a 0.5 base plus how selectively typed
// the matched entities and relationships are, plus how much of the
// allowed depth the traversal reached. Capped at 1.0.
func confidence(pattern *types.GraphPattern, entities []*types.GraphEntity, rels []*types.GraphRelationship, deepest, maxDepth int) float64 {
	typeRatio := 1.0
	if len(pattern.EntityTypes) > 0 && len(entities) > 0 {
		matched := 0
		for _, entity := range entities {
			if pattern.AllowsEntityType(entity.Type) {
				matched++
			}
		}
		typeRatio = float64(matched) / float64(len(entities))
	}

	relRatio := 1.0
	if len(pattern.RelationTypes) > 0 && len(rels) > 0 {
		matched := 0
		for _, rel := range rels {
			if pattern.AllowsRelationType(rel.Type) {
				matched++
			}
		}
		relRatio = float64(matched) / float64(len(rels))
	}

	depthRatio := 1.0
	if maxDepth > 0 {
		depthRatio = float64(deepest) / float64(maxDepth)
	}

	score := 0.5 + 0.3*typeRatio + 0.2*relRatio + 0.1*depthRatio
	if score > 1.0 {
		score = 1.0
	}
	return score
}

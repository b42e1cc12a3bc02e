package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgraph/marketgraph/pkg/driver"
	"github.com/marketgraph/marketgraph/pkg/embedder"
	"github.com/marketgraph/marketgraph/pkg/store"
	"github.com/marketgraph/marketgraph/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s := store.NewStore(driver.NewMemoryDriver(),
		store.WithEmbedder(embedder.NewStaticClient(16)))
	return NewEngine(s), s
}

func addEntity(t *testing.T, s *store.Store, ws string, typ types.EntityType, name string) string {
	t.Helper()
	id, err := s.AddEntity(context.Background(), ws, typ, name, nil)
	require.NoError(t, err)
	return id
}

func addRel(t *testing.T, s *store.Store, ws, from, to string, typ types.RelationType, weight float64) string {
	t.Helper()
	id, err := s.AddRelationship(context.Background(), ws, from, to, typ, weight, nil)
	require.NoError(t, err)
	return id
}

func TestFindPathDirect(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityCompany, "Globex")
	addRel(t, s, "w1", a, b, types.RelationCompetesWith, 1.0)

	path, err := e.FindPath(ctx, "w1", a, b, 3, types.PathShortest)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 1, path.Hops)
	require.Len(t, path.Entities, 2)
	require.Len(t, path.Relationships, 1)
	assert.Equal(t, a, path.Entities[0].ID)
	assert.Equal(t, b, path.Entities[1].ID)
}

func TestFindPathTwoHops(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	c := addEntity(t, s, "w1", types.EntityPainPoint, "Churn")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)
	addRel(t, s, "w1", b, c, types.RelationHasPainPoint, 1.0)

	path, err := e.FindPath(ctx, "w1", a, c, 3, types.PathShortest)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Hops)
	require.Len(t, path.Entities, 3)
	assert.Equal(t, []string{a, b, c}, []string{path.Entities[0].ID, path.Entities[1].ID, path.Entities[2].ID})
	assert.Len(t, path.Relationships, 2)
}

func TestFindPathRespectsMaxDepth(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	c := addEntity(t, s, "w1", types.EntityPainPoint, "Churn")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)
	addRel(t, s, "w1", b, c, types.RelationHasPainPoint, 1.0)

	path, err := e.FindPath(ctx, "w1", a, c, 1, types.PathShortest)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindPathMissingEndpoint(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")

	path, err := e.FindPath(ctx, "w1", a, "no-such-entity", 3, types.PathShortest)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindPathWeightedPrefersCheaperRoute(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityCompany, "Globex")
	mid := addEntity(t, s, "w1", types.EntityChannel, "LinkedIn")

	// Direct edge costs 0.9; the detour totals 0.3.
	addRel(t, s, "w1", a, b, types.RelationCompetesWith, 0.9)
	addRel(t, s, "w1", a, mid, types.RelationUsesChannel, 0.15)
	addRel(t, s, "w1", mid, b, types.RelationChannelUsedBy, 0.15)

	path, err := e.FindPath(ctx, "w1", a, b, 3, types.PathWeighted)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Hops)
	assert.InDelta(t, 0.3, path.Cost, 1e-9)
	require.Len(t, path.Entities, 3)
	assert.Equal(t, mid, path.Entities[1].ID)
}

func TestFindPathWeightedRelaxes(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// b is expanded first (cost 0.05) and discovers d at 0.85; c is
	// expanded next and must relax d's best-known cost down to 0.2.
	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityChannel, "Paid search")
	c := addEntity(t, s, "w1", types.EntityChannel, "LinkedIn")
	d := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	addRel(t, s, "w1", a, b, types.RelationUsesChannel, 0.05)
	addRel(t, s, "w1", a, c, types.RelationUsesChannel, 0.1)
	addRel(t, s, "w1", b, d, types.RelationTargets, 0.8)
	addRel(t, s, "w1", c, d, types.RelationTargets, 0.1)

	path, err := e.FindPath(ctx, "w1", a, d, 3, types.PathWeighted)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.InDelta(t, 0.2, path.Cost, 1e-9)
	assert.Equal(t, c, path.Entities[1].ID)
}

func TestFindPathSemanticFallsBackWithoutEmbeddings(t *testing.T) {
	s := store.NewStore(driver.NewMemoryDriver())
	e := NewEngine(s)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	c := addEntity(t, s, "w1", types.EntityPainPoint, "Churn")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)
	addRel(t, s, "w1", b, c, types.RelationHasPainPoint, 1.0)

	// No embedder: every hop costs the 1.0 fallback, so the semantic
	// result matches the unweighted one.
	path, err := e.FindPath(ctx, "w1", a, c, 3, types.PathSemantic)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Hops)
	assert.InDelta(t, 2.0, path.Cost, 1e-9)
}

func TestFindPathSameEntity(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")

	path, err := e.FindPath(ctx, "w1", a, a, 3, types.PathShortest)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 0, path.Hops)
	assert.Len(t, path.Entities, 1)
	assert.Empty(t, path.Relationships)
}

func TestSubgraphDepthZero(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)

	sub, err := e.Subgraph(ctx, "w1", a, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Len(t, sub.Entities, 1)
	assert.Equal(t, a, sub.Entities[0].ID)
	assert.Empty(t, sub.Relationships)
}

func TestSubgraphMaxEntities(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	center := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	for _, name := range []string{"SMB founders", "Churn", "LinkedIn", "Onboarding", "Referrals"} {
		id := addEntity(t, s, "w1", types.EntityChannel, name)
		addRel(t, s, "w1", center, id, types.RelationUsesChannel, 1.0)
	}

	sub, err := e.Subgraph(ctx, "w1", center, 2, 3)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Len(t, sub.Entities, 3)
	assert.Equal(t, center, sub.Entities[0].ID)
	// Every kept edge joins two included entities.
	ids := make(map[string]bool, len(sub.Entities))
	for _, entity := range sub.Entities {
		ids[entity.ID] = true
	}
	for _, rel := range sub.Relationships {
		assert.True(t, ids[rel.SourceID])
		assert.True(t, ids[rel.TargetID])
	}
}

func TestSubgraphMissingCenter(t *testing.T) {
	e, _ := newTestEngine(t)

	sub, err := e.Subgraph(context.Background(), "w1", "no-such-entity", 2, 0)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestSubgraphTwoLevels(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	c := addEntity(t, s, "w1", types.EntityPainPoint, "Churn")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)
	addRel(t, s, "w1", b, c, types.RelationHasPainPoint, 1.0)

	one, err := e.Subgraph(ctx, "w1", a, 1, 0)
	require.NoError(t, err)
	assert.Len(t, one.Entities, 2)
	assert.Len(t, one.Relationships, 1)

	two, err := e.Subgraph(ctx, "w1", a, 2, 0)
	require.NoError(t, err)
	assert.Len(t, two.Entities, 3)
	assert.Len(t, two.Relationships, 2)
}

func TestFindPatternBasic(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	c := addEntity(t, s, "w1", types.EntityPainPoint, "Churn")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)
	addRel(t, s, "w1", b, c, types.RelationHasPainPoint, 1.0)

	pattern := &types.GraphPattern{
		EntityTypes:   []types.EntityType{types.EntityCompany, types.EntityICP, types.EntityPainPoint},
		RelationTypes: []types.RelationType{types.RelationHasICP, types.RelationHasPainPoint},
		MinDepth:      2,
		MaxDepth:      2,
	}

	matches, err := e.FindPattern(ctx, "w1", pattern, 0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// The company root reaches the pain point at depth 2.
	var rootMatch *types.PatternMatch
	for _, m := range matches {
		if m.RootID == a {
			rootMatch = m
		}
	}
	require.NotNil(t, rootMatch)
	assert.Equal(t, 2, rootMatch.Depth)
	assert.Len(t, rootMatch.Entities, 3)
	assert.Len(t, rootMatch.Relationships, 2)
	assert.InDelta(t, 1.0, rootMatch.Confidence, 1e-9)
}

func TestFindPatternMinDepthGate(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)

	pattern := &types.GraphPattern{
		EntityTypes: []types.EntityType{types.EntityCompany, types.EntityICP},
		MinDepth:    3,
		MaxDepth:    3,
	}

	matches, err := e.FindPattern(ctx, "w1", pattern, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindPatternPropertyConstraint(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	acme, err := s.AddEntity(ctx, "w1", types.EntityCompany, "Acme", map[string]any{"tier": "enterprise"})
	require.NoError(t, err)
	_, err = s.AddEntity(ctx, "w1", types.EntityCompany, "Globex", map[string]any{"tier": "smb"})
	require.NoError(t, err)
	icp := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	addRel(t, s, "w1", acme, icp, types.RelationHasICP, 1.0)

	pattern := &types.GraphPattern{
		EntityTypes: []types.EntityType{types.EntityCompany, types.EntityICP},
		MinDepth:    1,
		MaxDepth:    1,
		Properties:  map[string]any{"tier": "enterprise"},
	}

	matches, err := e.FindPattern(ctx, "w1", pattern, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, acme, matches[0].RootID)
}

func TestFindPatternLimit(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	for _, name := range []string{"Acme", "Globex", "Initech"} {
		company := addEntity(t, s, "w1", types.EntityCompany, name)
		icp := addEntity(t, s, "w1", types.EntityICP, name+" buyers")
		addRel(t, s, "w1", company, icp, types.RelationHasICP, 1.0)
	}

	pattern := &types.GraphPattern{
		EntityTypes: []types.EntityType{types.EntityCompany, types.EntityICP},
		MinDepth:    1,
		MaxDepth:    1,
	}

	matches, err := e.FindPattern(ctx, "w1", pattern, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestWorkspaceIsolationInQueries(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityCompany, "Globex")
	addRel(t, s, "w1", a, b, types.RelationCompetesWith, 1.0)

	// The same ids queried from another workspace resolve to nothing.
	path, err := e.FindPath(ctx, "w2", a, b, 3, types.PathShortest)
	require.NoError(t, err)
	assert.Nil(t, path)

	sub, err := e.Subgraph(ctx, "w2", a, 2, 0)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestFindPathWeightedHopBoundKeepsShorterRoute(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// The cheap three-hop chain reaches hub first with no hop budget
	// left; the costlier two-hop route through hub must still be found.
	start := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	a := addEntity(t, s, "w1", types.EntityCompany, "Globex")
	b := addEntity(t, s, "w1", types.EntityCompany, "Initech")
	hub := addEntity(t, s, "w1", types.EntityCompany, "Umbrella")
	goal := addEntity(t, s, "w1", types.EntityCompany, "Hooli")
	addRel(t, s, "w1", start, a, types.RelationCompetesWith, 0.01)
	addRel(t, s, "w1", a, b, types.RelationCompetesWith, 0.01)
	addRel(t, s, "w1", b, hub, types.RelationCompetesWith, 0.01)
	addRel(t, s, "w1", start, hub, types.RelationCompetesWith, 0.9)
	addRel(t, s, "w1", hub, goal, types.RelationCompetesWith, 0.1)

	path, err := e.FindPath(ctx, "w1", start, goal, 3, types.PathWeighted)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 2, path.Hops)
	assert.InDelta(t, 1.0, path.Cost, 1e-9)
	require.Len(t, path.Entities, 3)
	assert.Equal(t, hub, path.Entities[1].ID)
}

func TestFindPatternSliceValuedPropertyConstraint(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	tagged, err := s.AddEntity(ctx, "w1", types.EntityCompany, "Acme",
		map[string]any{"tags": []any{"saas", "b2b"}})
	require.NoError(t, err)
	_, err = s.AddEntity(ctx, "w1", types.EntityCompany, "Globex",
		map[string]any{"tags": []any{"hardware"}})
	require.NoError(t, err)

	pattern := &types.GraphPattern{
		EntityTypes: []types.EntityType{types.EntityCompany},
		MaxDepth:    1,
		Properties:  map[string]any{"tags": []any{"saas", "b2b"}},
	}

	matches, err := e.FindPattern(ctx, "w1", pattern, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, tagged, matches[0].RootID)
}

func TestQueriesStopOnCancelledContext(t *testing.T) {
	e, s := newTestEngine(t)

	a := addEntity(t, s, "w1", types.EntityCompany, "Acme")
	b := addEntity(t, s, "w1", types.EntityICP, "SMB founders")
	c := addEntity(t, s, "w1", types.EntityPainPoint, "Churn")
	addRel(t, s, "w1", a, b, types.RelationHasICP, 1.0)
	addRel(t, s, "w1", b, c, types.RelationHasPainPoint, 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.FindPath(ctx, "w1", a, c, 3, types.PathShortest)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.FindPath(ctx, "w1", a, c, 3, types.PathWeighted)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.Subgraph(ctx, "w1", a, 2, 0)
	assert.ErrorIs(t, err, context.Canceled)

	pattern := &types.GraphPattern{
		EntityTypes: []types.EntityType{types.EntityCompany, types.EntityICP},
		MaxDepth:    2,
	}
	_, err = e.FindPattern(ctx, "w1", pattern, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

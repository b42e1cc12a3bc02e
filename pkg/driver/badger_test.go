package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgraph/marketgraph/pkg/types"
)

func newTestBadger(t *testing.T) *BadgerDriver {
	t.Helper()
	d, err := NewBadgerDriver("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close(context.Background())
	})
	return d
}

func TestBadgerDriverEntityRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestBadger(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	entity := testEntity("w1", "e1", "Acme", types.EntityCompany, now)
	entity.Embedding = []float32{0.1, 0.2, 0.3}
	require.NoError(t, d.PutEntity(ctx, entity))

	got, err := d.GetEntity(ctx, "w1", "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, types.EntityCompany, got.Type)
	assert.Equal(t, entity.Embedding, got.Embedding)
	assert.True(t, got.CreatedAt.Equal(now))

	missing, err := d.GetEntity(ctx, "w1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	crossTenant, err := d.GetEntity(ctx, "w2", "e1")
	require.NoError(t, err)
	assert.Nil(t, crossTenant)
}

func TestBadgerDriverAdjacency(t *testing.T) {
	ctx := context.Background()
	d := newTestBadger(t)
	now := time.Now().UTC()

	require.NoError(t, d.PutRelationship(ctx, testRelationship("w1", "r1", "a", "b", types.RelationHasICP, now)))
	require.NoError(t, d.PutRelationship(ctx, testRelationship("w1", "r2", "b", "c", types.RelationHasPainPoint, now.Add(time.Second))))

	out, err := d.QueryRelationships(ctx, "w1", "a", types.DirectionOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)

	both, err := d.QueryRelationships(ctx, "w1", "b", types.DirectionBoth)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	require.NoError(t, d.DeleteRelationship(ctx, "w1", "r1"))

	both, err = d.QueryRelationships(ctx, "w1", "b", types.DirectionBoth)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "r2", both[0].ID)

	// Deleting an absent relationship is a no-op.
	assert.NoError(t, d.DeleteRelationship(ctx, "w1", "r1"))
}

func TestBadgerDriverQueryEntitiesOrder(t *testing.T) {
	ctx := context.Background()
	d := newTestBadger(t)
	base := time.Now().UTC()

	// Insert out of creation order on purpose.
	require.NoError(t, d.PutEntity(ctx, testEntity("w1", "e2", "Beta", types.EntityICP, base.Add(time.Second))))
	require.NoError(t, d.PutEntity(ctx, testEntity("w1", "e1", "Acme", types.EntityCompany, base)))

	all, err := d.QueryEntities(ctx, "w1", EntityQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e1", all[0].ID)
	assert.Equal(t, "e2", all[1].ID)
}

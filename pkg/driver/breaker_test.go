package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgraph/marketgraph/pkg/types"
)

// failingDriver fails every call, simulating a backend outage.
type failingDriver struct {
	MemoryDriver
	err error
}

func (f *failingDriver) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	return nil, f.err
}

func (f *failingDriver) PutEntity(ctx context.Context, entity *types.GraphEntity) error {
	return f.err
}

func TestBreakerDriverPassThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	inner := NewMemoryDriver()
	d := NewBreakerDriver(inner, DefaultBreakerConfig(), nil)

	entity := testEntity("w1", "e1", "Acme", types.EntityCompany, time.Now().UTC())
	require.NoError(t, d.PutEntity(ctx, entity))

	got, err := d.GetEntity(ctx, "w1", "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)

	missing, err := d.GetEntity(ctx, "w1", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBreakerDriverOpensOnSustainedFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("connection refused")
	d := NewBreakerDriver(&failingDriver{err: boom}, BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		ReadyToTripRatio: 0.5,
	}, nil)

	// Drive enough failures to trip the breaker.
	for i := 0; i < 5; i++ {
		_, _ = d.GetEntity(ctx, "w1", "e1")
	}

	_, err := d.GetEntity(ctx, "w1", "e1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBackendUnavailable,
		"an open breaker must surface as backend unavailable, not as empty results")
}

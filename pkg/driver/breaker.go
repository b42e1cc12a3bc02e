package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/marketgraph/marketgraph/pkg/types"
)

// BreakerConfig tunes the circuit breaker wrapped around a backend.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns conservative breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// BreakerDriver decorates a GraphDriver with a circuit breaker. When the
// backend fails repeatedly the breaker opens and every call fails fast
// with types.ErrBackendUnavailable instead of piling up timeouts. An
// outage is therefore always surfaced as an error, never as an empty
// result set.
type BreakerDriver struct {
	inner GraphDriver
	cb    *gobreaker.CircuitBreaker
	log   *slog.Logger
}

// NewBreakerDriver wraps inner with a circuit breaker.
func NewBreakerDriver(inner GraphDriver, cfg BreakerConfig, log *slog.Logger) *BreakerDriver {
	if log == nil {
		log = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("graph-backend-%s", inner.Provider()),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("backend circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerDriver{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
		log:   log,
	}
}

// execute runs fn through the breaker, mapping open-circuit errors to
// the shared backend-unavailable sentinel.
func (d *BreakerDriver) execute(fn func() (any, error)) (any, error) {
	result, err := d.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit breaker open", types.ErrBackendUnavailable)
	}
	return result, err
}

func (d *BreakerDriver) PutEntity(ctx context.Context, entity *types.GraphEntity) error {
	_, err := d.execute(func() (any, error) {
		return nil, d.inner.PutEntity(ctx, entity)
	})
	return err
}

func (d *BreakerDriver) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	result, err := d.execute(func() (any, error) {
		return d.inner.GetEntity(ctx, workspaceID, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.GraphEntity), nil
}

func (d *BreakerDriver) DeleteEntity(ctx context.Context, workspaceID, id string) error {
	_, err := d.execute(func() (any, error) {
		return nil, d.inner.DeleteEntity(ctx, workspaceID, id)
	})
	return err
}

func (d *BreakerDriver) QueryEntities(ctx context.Context, workspaceID string, query EntityQuery) ([]*types.GraphEntity, error) {
	result, err := d.execute(func() (any, error) {
		return d.inner.QueryEntities(ctx, workspaceID, query)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.GraphEntity), nil
}

func (d *BreakerDriver) PutRelationship(ctx context.Context, rel *types.GraphRelationship) error {
	_, err := d.execute(func() (any, error) {
		return nil, d.inner.PutRelationship(ctx, rel)
	})
	return err
}

func (d *BreakerDriver) GetRelationship(ctx context.Context, workspaceID, id string) (*types.GraphRelationship, error) {
	result, err := d.execute(func() (any, error) {
		return d.inner.GetRelationship(ctx, workspaceID, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.GraphRelationship), nil
}

func (d *BreakerDriver) DeleteRelationship(ctx context.Context, workspaceID, id string) error {
	_, err := d.execute(func() (any, error) {
		return nil, d.inner.DeleteRelationship(ctx, workspaceID, id)
	})
	return err
}

func (d *BreakerDriver) QueryRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error) {
	result, err := d.execute(func() (any, error) {
		return d.inner.QueryRelationships(ctx, workspaceID, entityID, direction)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*types.GraphRelationship), nil
}

// EntityExists delegates to the inner driver when it implements
// GlobalProber; otherwise it reports false without an error.
func (d *BreakerDriver) EntityExists(ctx context.Context, id string) (bool, error) {
	prober, ok := d.inner.(GlobalProber)
	if !ok {
		return false, nil
	}
	result, err := d.execute(func() (any, error) {
		return prober.EntityExists(ctx, id)
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (d *BreakerDriver) Provider() GraphProvider {
	return d.inner.Provider()
}

func (d *BreakerDriver) Close(ctx context.Context) error {
	return d.inner.Close(ctx)
}

package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingClient records how many texts the backend was actually asked
// to embed, so cache hit behavior can be asserted.
type countingClient struct {
	inner Client
	calls int
}

func (c *countingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls += len(texts)
	return c.inner.Embed(ctx, texts)
}

func (c *countingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.EmbedSingle(ctx, text)
}

func (c *countingClient) Dimensions() int { return c.inner.Dimensions() }
func (c *countingClient) Close() error    { return c.inner.Close() }

func TestStaticClientDeterministic(t *testing.T) {
	s := NewStaticClient(64)

	a, err := s.EmbedSingle(context.Background(), "acme corp")
	require.NoError(t, err)
	b, err := s.EmbedSingle(context.Background(), "acme corp")
	require.NoError(t, err)
	c, err := s.EmbedSingle(context.Background(), "globex")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestStaticClientNormalized(t *testing.T) {
	s := NewStaticClient(32)
	vec, err := s.EmbedSingle(context.Background(), "pricing page")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestCachingClientSingle(t *testing.T) {
	counter := &countingClient{inner: NewStaticClient(16)}
	cache := NewCachingClient(counter)

	v1, err := cache.EmbedSingle(context.Background(), "enterprise plan")
	require.NoError(t, err)
	v2, err := cache.EmbedSingle(context.Background(), "enterprise plan")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, counter.calls)
}

func TestCachingClientBatchPartialHit(t *testing.T) {
	counter := &countingClient{inner: NewStaticClient(16)}
	cache := NewCachingClient(counter)

	_, err := cache.EmbedSingle(context.Background(), "alpha")
	require.NoError(t, err)

	vecs, err := cache.Embed(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// alpha was cached, only beta and gamma hit the backend.
	assert.Equal(t, 3, counter.calls)

	direct, err := NewStaticClient(16).EmbedSingle(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, direct, vecs[1])
}

func TestCachingClientInvalidate(t *testing.T) {
	counter := &countingClient{inner: NewStaticClient(16)}
	cache := NewCachingClient(counter)

	_, err := cache.EmbedSingle(context.Background(), "churn risk")
	require.NoError(t, err)
	cache.Invalidate("churn risk")
	_, err = cache.EmbedSingle(context.Background(), "churn risk")
	require.NoError(t, err)

	assert.Equal(t, 2, counter.calls)
}

package embedder

import (
	"context"
	"sync"
)

// CachingClient memoizes embeddings by input text. Because the key is
// the text itself, an entity update that changes name or properties
// produces a different key and re-embeds naturally; stale vectors are
// never served for changed content.
type CachingClient struct {
	inner Client

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewCachingClient wraps inner with an in-memory embedding cache.
func NewCachingClient(inner Client) *CachingClient {
	return &CachingClient{
		inner: inner,
		cache: make(map[string][]float32),
	}
}

// Embed generates embeddings, serving repeated texts from cache.
func (c *CachingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	c.mu.RLock()
	for i, text := range texts {
		if vec, ok := c.cache[text]; ok {
			results[i] = vec
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return results, nil
	}

	fresh, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for i, vec := range fresh {
		results[missingIdx[i]] = vec
		c.cache[missing[i]] = vec
	}
	c.mu.Unlock()

	return results, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *CachingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	if vec, ok := c.cache[text]; ok {
		c.mu.RUnlock()
		return vec, nil
	}
	c.mu.RUnlock()

	vec, err := c.inner.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[text] = vec
	c.mu.Unlock()
	return vec, nil
}

// Invalidate drops a cached text, forcing the next lookup to re-embed.
func (c *CachingClient) Invalidate(text string) {
	c.mu.Lock()
	delete(c.cache, text)
	c.mu.Unlock()
}

// Dimensions returns the number of dimensions in the embeddings.
func (c *CachingClient) Dimensions() int {
	return c.inner.Dimensions()
}

// Close cleans up the wrapped client.
func (c *CachingClient) Close() error {
	return c.inner.Close()
}

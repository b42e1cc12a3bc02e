package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// StaticClient produces deterministic pseudo-embeddings derived from a
// hash of the input text. It stands in for a real provider in tests
// where no model should be loaded.
type StaticClient struct {
	dims int
}

// NewStaticClient creates a deterministic embedder with the given
// number of dimensions.
func NewStaticClient(dims int) *StaticClient {
	if dims <= 0 {
		dims = 64
	}
	return &StaticClient{dims: dims}
}

// Embed generates deterministic embeddings for the given texts.
func (s *StaticClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vector(text)
	}
	return out, nil
}

// EmbedSingle generates a deterministic embedding for the given text.
func (s *StaticClient) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (s *StaticClient) Dimensions() int {
	return s.dims
}

// Close is a no-op.
func (s *StaticClient) Close() error {
	return nil
}

func (s *StaticClient) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, s.dims)
	var norm float64
	for i := range vec {
		// xorshift keeps successive components decorrelated.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

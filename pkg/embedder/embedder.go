// Package embedder provides text embedding clients for semantic graph
// queries. Embeddings are a best-effort enhancement: every caller must
// keep working when the provider fails or no provider is configured.
package embedder

import "context"

// Client generates fixed-length float vectors for text. Stateless from
// the engine's point of view.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length this client produces.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds common embedding client settings.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

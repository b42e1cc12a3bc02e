package embedder

import (
	"context"
	"fmt"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// LocalClient implements Client on an in-process sentence-transformer
// model. No network calls, useful for air-gapped deployments.
type LocalClient struct {
	client *embedeverything.Embedder
	config *Config
}

// NewLocalClient loads a local embedding model.
func NewLocalClient(config *Config) (*LocalClient, error) {
	if config.Model == "" {
		config.Model = "all-MiniLM-L6-v2"
	}
	if config.Dimensions == 0 {
		config.Dimensions = 384
	}

	client, err := embedeverything.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model: %w", err)
	}

	return &LocalClient{client: client, config: config}, nil
}

// Embed generates embeddings for the given texts.
func (c *LocalClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// go-embedeverything does not support context yet
	embeddings, err := c.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *LocalClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (c *LocalClient) Dimensions() int {
	return c.config.Dimensions
}

// Close cleans up any resources.
func (c *LocalClient) Close() error {
	c.client.Close()
	return nil
}

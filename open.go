package marketgraph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/marketgraph/marketgraph/pkg/config"
	"github.com/marketgraph/marketgraph/pkg/driver"
	"github.com/marketgraph/marketgraph/pkg/embedder"
)

// Open assembles a Client from file/env configuration: it builds the
// persistence backend, wraps it in a circuit breaker when enabled, and
// wires the configured embedding provider.
func Open(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logger == nil {
		logger = slog.Default()
	}

	d, err := openDriver(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CircuitBreaker.Enabled {
		d = driver.NewBreakerDriver(d, driver.BreakerConfig{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, logger)
	}

	embedderClient, err := openEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	return NewClient(d, embedderClient, &Config{
		TimeZone:       time.UTC,
		CentralityTopN: cfg.Analytics.CentralityTopN,
	}, logger)
}

func openDriver(cfg *config.Config) (driver.GraphDriver, error) {
	switch cfg.Database.Driver {
	case "memory":
		return driver.NewMemoryDriver(), nil
	case "badger", "":
		return driver.NewBadgerDriver(cfg.Database.URI)
	case "neo4j":
		return driver.NewNeo4jDriver(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openEmbedder(cfg *config.Config) (embedder.Client, error) {
	embedderConfig := &embedder.Config{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	}

	var client embedder.Client
	switch cfg.Embedding.Provider {
	case "openai":
		client = embedder.NewOpenAIClient(embedderConfig)
	case "local", "":
		local, err := embedder.NewLocalClient(embedderConfig)
		if err != nil {
			return nil, err
		}
		client = local
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Embedding.Cache {
		client = embedder.NewCachingClient(client)
	}
	return client, nil
}

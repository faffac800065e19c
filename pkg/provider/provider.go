// Package provider computes embedding vectors for indexed chunks.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragbridge/pkg/config"
	provideropenai "ragbridge/pkg/provider/openai"
)

// Embedder turns chunk texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

func New(cfg *config.Config) (Embedder, error) {
	providerID := strings.ToLower(strings.TrimSpace(cfg.Embedder.Provider))
	if providerID == "" {
		providerID = "placeholder"
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving embedding provider", "provider", providerID)

	switch providerID {
	case "placeholder":
		return NewPlaceholder(cfg.Search.VectorDim), nil
	case "openai":
		client, err := provideropenai.New(cfg.Embedder, cfg.Search.VectorDim)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", providerID)
	}
}

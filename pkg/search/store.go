package search

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragbridge/pkg/config"
)

const (
	BackendOpenSearch = "opensearch"
	BackendQdrant     = "qdrant"
	BackendMemory     = "memory"
)

// NewStore builds the backend selected by cfg.Backend.
func NewStore(cfg config.SearchConfig, log *slog.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendOpenSearch:
		store, err := NewOpenSearch(OpenSearchOptions{
			Address:   cfg.OpenSearchHost,
			Index:     cfg.IndexName,
			Dimension: cfg.VectorDim,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendQdrant:
		store, err := NewQdrant(QdrantOptions{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			Collection: cfg.IndexName,
			Dimension:  cfg.VectorDim,
		}, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendMemory:
		return NewMemoryStore(cfg.VectorDim), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

// Package search stores chunk vectors and answers nearest-neighbour queries.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// keyNamespace seeds deterministic chunk ids so re-indexing overwrites.
var keyNamespace = uuid.MustParse("6f1c1f0e-5d1a-4a59-9c4f-3f7f5c0b9a11")

var (
	// ErrNotFound means a query matched no document.
	ErrNotFound = errors.New("no matching document")

	ErrInvalidVector = errors.New("invalid vector")
)

// Result is one search hit.
type Result struct {
	DocID   string `json:"doc_id"`
	ChunkID int    `json:"chunk_id"`
	Content string `json:"content"`
}

// Record is one indexed chunk.
type Record struct {
	DocID   string    `json:"doc_id"`
	ChunkID int       `json:"chunk_id"`
	Content string    `json:"content"`
	Vector  []float32 `json:"vector"`
}

// Store is a vector index backend.
type Store interface {
	// EnsureIndex creates the index if missing. An existing index is not an error.
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, record Record) error
	// Nearest returns up to k hits ordered by ascending distance.
	Nearest(ctx context.Context, vector []float32, k int) ([]Result, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// DocumentKey is the stable id of one chunk in a backend.
func DocumentKey(docID string, chunkID int) string {
	return uuid.NewSHA1(keyNamespace, []byte(fmt.Sprintf("%s#%d", docID, chunkID))).String()
}

// FormatResult renders a hit the way answers are sent to clients.
func FormatResult(result Result) string {
	return fmt.Sprintf("Документ: %s, фрагмент #%d, текст: %s", result.DocID, result.ChunkID, result.Content)
}

// ParseVector decodes a JSON array of numbers.
func ParseVector(payload string) ([]float32, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidVector)
	}

	var values []float64
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}

	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v)
	}
	return vector, nil
}

// Searcher runs single-hit queries against a Store.
type Searcher struct {
	store Store
	log   *slog.Logger
}

func NewSearcher(store Store, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{store: store, log: log.With("component", "search")}
}

// Search returns the closest chunk to vector or ErrNotFound.
func (s *Searcher) Search(ctx context.Context, vector []float32) (Result, error) {
	if len(vector) == 0 {
		return Result{}, fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}

	hits, err := s.store.Nearest(ctx, vector, 1)
	if err != nil {
		return Result{}, fmt.Errorf("nearest neighbour query: %w", err)
	}
	if len(hits) == 0 {
		s.log.Debug("Search returned no hits", "dimension", len(vector))
		return Result{}, ErrNotFound
	}

	return hits[0], nil
}

package search

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is a brute-force L2 store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	created bool
	records map[string]Record
}

func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim, records: make(map[string]Record)}
}

func (m *MemoryStore) EnsureIndex(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = true
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, record Record) error {
	if m.dim > 0 && len(record.Vector) != m.dim {
		return fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(record.Vector), m.dim)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey(record.DocID, record.ChunkID)] = record
	return nil
}

func (m *MemoryStore) Nearest(_ context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		result   Result
		distance float64
	}
	candidates := make([]scored, 0, len(m.records))
	for _, record := range m.records {
		if len(record.Vector) != len(vector) {
			continue
		}
		candidates = append(candidates, scored{
			result:   Result{DocID: record.DocID, ChunkID: record.ChunkID, Content: record.Content},
			distance: squaredL2(record.Vector, vector),
		})
	}

	slices.SortFunc(candidates, func(a, b scored) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		default:
			return compareResults(a.result, b.result)
		}
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]Result, 0, k)
	for _, c := range candidates[:k] {
		results = append(results, c.result)
	}
	return results, nil
}

// Len reports how many chunks are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func compareResults(a, b Result) int {
	if a.DocID != b.DocID {
		if a.DocID < b.DocID {
			return -1
		}
		return 1
	}
	return a.ChunkID - b.ChunkID
}

func recordKey(docID string, chunkID int) string {
	return fmt.Sprintf("%s#%d", docID, chunkID)
}

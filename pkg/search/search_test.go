package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
}

func (*failingStore) Nearest(context.Context, []float32, int) ([]Result, error) {
	return nil, errors.New("connection refused")
}

func TestFormatResult(t *testing.T) {
	t.Parallel()

	got := FormatResult(Result{DocID: "a.txt", ChunkID: 2, Content: "hello"})
	require.Equal(t, "Документ: a.txt, фрагмент #2, текст: hello", got)
}

func TestParseVector(t *testing.T) {
	t.Parallel()

	vector, err := ParseVector(" [0.1, 2, -3.5] ")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 2, -3.5}, vector)

	for _, payload := range []string{"", "hello", `{"v":1}`, `["a"]`} {
		_, err := ParseVector(payload)
		require.ErrorIs(t, err, ErrInvalidVector, payload)
	}
}

func TestSearcherReturnsClosestChunk(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(2)
	ctx := context.Background()
	require.NoError(t, store.EnsureIndex(ctx))
	require.NoError(t, store.Upsert(ctx, Record{DocID: "a.txt", ChunkID: 0, Content: "far", Vector: []float32{10, 10}}))
	require.NoError(t, store.Upsert(ctx, Record{DocID: "a.txt", ChunkID: 1, Content: "near", Vector: []float32{1, 1}}))

	result, err := NewSearcher(store, nil).Search(ctx, []float32{0.9, 1.1})
	require.NoError(t, err)
	require.Equal(t, Result{DocID: "a.txt", ChunkID: 1, Content: "near"}, result)
}

func TestSearcherNoHits(t *testing.T) {
	t.Parallel()

	_, err := NewSearcher(NewMemoryStore(2), nil).Search(context.Background(), []float32{1, 2})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearcherRejectsEmptyVector(t *testing.T) {
	t.Parallel()

	_, err := NewSearcher(NewMemoryStore(2), nil).Search(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidVector)
}

func TestSearcherWrapsBackendFailure(t *testing.T) {
	t.Parallel()

	_, err := NewSearcher(&failingStore{MemoryStore: NewMemoryStore(1)}, nil).Search(context.Background(), []float32{1})
	require.ErrorContains(t, err, "connection refused")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpsertOverwritesChunk(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(1)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, Record{DocID: "a", ChunkID: 0, Content: "old", Vector: []float32{1}}))
	require.NoError(t, store.Upsert(ctx, Record{DocID: "a", ChunkID: 0, Content: "new", Vector: []float32{1}}))
	require.Equal(t, 1, store.Len())

	require.ErrorIs(t, store.Upsert(ctx, Record{DocID: "a", ChunkID: 1, Vector: []float32{1, 2}}), ErrInvalidVector)

	hits, err := store.Nearest(ctx, []float32{1}, 5)
	require.NoError(t, err)
	require.Equal(t, []Result{{DocID: "a", ChunkID: 0, Content: "new"}}, hits)
}

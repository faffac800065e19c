package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOpenSearch struct {
	mu        sync.Mutex
	created   bool
	mapping   map[string]any
	docs      map[string]map[string]any
	queries   []map[string]any
	refreshes []string
}

func (f *fakeOpenSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)
	path := strings.Trim(r.URL.Path, "/")

	switch {
	case path == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)

	case path == "docs" && r.Method == http.MethodPut:
		if f.created {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"root_cause":[{"type":"resource_already_exists_exception","reason":"index [docs] already exists","index":"docs"}],"type":"resource_already_exists_exception","reason":"index [docs] already exists","index":"docs"},"status":400}`)
			return
		}
		f.created = true
		_ = json.Unmarshal(body, &f.mapping)
		_, _ = io.WriteString(w, `{"acknowledged":true,"shards_acknowledged":true,"index":"docs"}`)

	case strings.HasPrefix(path, "docs/_doc/"):
		var doc map[string]any
		_ = json.Unmarshal(body, &doc)
		id := strings.TrimPrefix(path, "docs/_doc/")
		f.docs[id] = doc
		f.refreshes = append(f.refreshes, r.URL.Query().Get("refresh"))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"_index":"docs","_id":"`+id+`","_version":1,"result":"created","_shards":{"total":1,"successful":1,"failed":0},"_seq_no":0,"_primary_term":1}`)

	case path == "docs/_search":
		var query map[string]any
		_ = json.Unmarshal(body, &query)
		f.queries = append(f.queries, query)
		_, _ = io.WriteString(w, `{"took":1,"timed_out":false,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0},"hits":{"total":{"value":1,"relation":"eq"},"max_score":0.9,"hits":[{"_index":"docs","_id":"hit-3","_score":0.9,"_source":{"doc_id":"a.txt","chunk_id":3,"content":"found it","vector":[0.1]}}]}}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"not_found","reason":"unexpected path"},"status":404}`)
	}
}

func newTestOpenSearch(t *testing.T) (*OpenSearchStore, *fakeOpenSearch) {
	t.Helper()

	fake := &fakeOpenSearch{docs: map[string]map[string]any{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewOpenSearch(OpenSearchOptions{Address: server.URL, Index: "docs", Dimension: 2}, testLogger())
	require.NoError(t, err)
	return store, fake
}

func TestOpenSearchEnsureIndexToleratesExisting(t *testing.T) {
	t.Parallel()

	store, fake := newTestOpenSearch(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureIndex(ctx))
	require.NoError(t, store.EnsureIndex(ctx))

	vector := fake.mapping["mappings"].(map[string]any)["properties"].(map[string]any)["vector"].(map[string]any)
	require.Equal(t, "knn_vector", vector["type"])
	require.EqualValues(t, 2, vector["dimension"])
	require.Equal(t, map[string]any{"name": "hnsw", "space_type": "l2", "engine": "nmslib"}, vector["method"])
	require.Equal(t, map[string]any{"knn": true}, fake.mapping["settings"].(map[string]any)["index"])
}

func TestOpenSearchUpsertIndexesRecord(t *testing.T) {
	t.Parallel()

	store, fake := newTestOpenSearch(t)
	err := store.Upsert(context.Background(), Record{DocID: "a.txt", ChunkID: 0, Content: "hello", Vector: []float32{0.5, 1}})
	require.NoError(t, err)

	doc := fake.docs[DocumentKey("a.txt", 0)]
	require.Equal(t, "a.txt", doc["doc_id"])
	require.EqualValues(t, 0, doc["chunk_id"])
	require.Equal(t, "hello", doc["content"])
	require.Len(t, doc["vector"], 2)
	require.Equal(t, []string{"true"}, fake.refreshes)

	err = store.Upsert(context.Background(), Record{DocID: "a.txt", ChunkID: 1, Vector: []float32{1}})
	require.ErrorIs(t, err, ErrInvalidVector)
}

func TestOpenSearchNearestSendsKNNQuery(t *testing.T) {
	t.Parallel()

	store, fake := newTestOpenSearch(t)
	hits, err := store.Nearest(context.Background(), []float32{0.25, 0.5}, 1)
	require.NoError(t, err)
	require.Equal(t, []Result{{DocID: "a.txt", ChunkID: 3, Content: "found it"}}, hits)

	require.Len(t, fake.queries, 1)
	query := fake.queries[0]
	require.EqualValues(t, 1, query["size"])
	knn := query["query"].(map[string]any)["knn"].(map[string]any)["vector"].(map[string]any)
	require.EqualValues(t, 1, knn["k"])
	require.Equal(t, []any{0.25, 0.5}, knn["vector"])
}

func TestOpenSearchCreateFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"type":"security_exception","reason":"no permissions"},"status":403}`)
	}))
	defer server.Close()

	store, err := NewOpenSearch(OpenSearchOptions{Address: server.URL, Index: "docs", Dimension: 2}, testLogger())
	require.NoError(t, err)
	require.Error(t, store.EnsureIndex(context.Background()))
}

func TestOpenSearchPing(t *testing.T) {
	t.Parallel()

	store, _ := newTestOpenSearch(t)
	require.NoError(t, store.Ping(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer down.Close()

	unauthorized, err := NewOpenSearch(OpenSearchOptions{Address: down.URL, Index: "docs", Dimension: 2}, testLogger())
	require.NoError(t, err)
	require.ErrorContains(t, unauthorized.Ping(context.Background()), "ping opensearch index docs")
}

func TestNewOpenSearchValidation(t *testing.T) {
	t.Parallel()

	_, err := NewOpenSearch(OpenSearchOptions{Index: "docs", Dimension: 2}, nil)
	require.Error(t, err)
	_, err = NewOpenSearch(OpenSearchOptions{Address: "http://x", Dimension: 2}, nil)
	require.Error(t, err)
	_, err = NewOpenSearch(OpenSearchOptions{Address: "http://x", Index: "docs"}, nil)
	require.Error(t, err)
}

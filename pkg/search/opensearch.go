package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

const alreadyExistsType = "resource_already_exists_exception"

// OpenSearchOptions configures an OpenSearchStore.
type OpenSearchOptions struct {
	Address   string
	Index     string
	Dimension int
	Timeout   time.Duration
}

// OpenSearchStore keeps chunks in an OpenSearch k-NN index.
type OpenSearchStore struct {
	client *opensearchapi.Client
	index  string
	dim    int
	log    *slog.Logger
}

func NewOpenSearch(opts OpenSearchOptions, log *slog.Logger) (*OpenSearchStore, error) {
	if strings.TrimSpace(opts.Address) == "" {
		return nil, errors.New("opensearch address is required")
	}
	if opts.Index == "" {
		return nil, errors.New("index name is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}
	if log == nil {
		log = slog.Default()
	}

	cfg := opensearch.Config{Addresses: []string{opts.Address}}
	if opts.Timeout > 0 {
		cfg.Transport = &http.Transport{ResponseHeaderTimeout: opts.Timeout}
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{Client: cfg})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &OpenSearchStore{
		client: client,
		index:  opts.Index,
		dim:    opts.Dimension,
		log:    log.With("component", "search.opensearch", "index", opts.Index),
	}, nil
}

// IndexBody is the settings and mapping the index is created with.
func IndexBody(dimension int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"doc_id":   map[string]any{"type": "keyword"},
				"chunk_id": map[string]any{"type": "integer"},
				"content":  map[string]any{"type": "text"},
				"vector": map[string]any{
					"type":      "knn_vector",
					"dimension": dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "l2",
						"engine":     "nmslib",
					},
				},
			},
		},
	}
}

// QueryBody is the k-NN query for vector.
func QueryBody(vector []float32, k int) map[string]any {
	return map[string]any{
		"size": k,
		"query": map[string]any{
			"knn": map[string]any{
				"vector": map[string]any{
					"vector": vector,
					"k":      k,
				},
			},
		},
	}
}

func (s *OpenSearchStore) EnsureIndex(ctx context.Context) error {
	body, err := json.Marshal(IndexBody(s.dim))
	if err != nil {
		return fmt.Errorf("encode index body: %w", err)
	}

	_, err = s.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: s.index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		if strings.Contains(err.Error(), alreadyExistsType) {
			s.log.Debug("Index already exists")
			return nil
		}
		return fmt.Errorf("create index %s: %w", s.index, err)
	}

	s.log.Info("Index created", "dimension", s.dim)
	return nil
}

func (s *OpenSearchStore) Upsert(ctx context.Context, record Record) error {
	if len(record.Vector) != s.dim {
		return fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(record.Vector), s.dim)
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.client.Index(ctx, opensearchapi.IndexReq{
		Index:      s.index,
		DocumentID: DocumentKey(record.DocID, record.ChunkID),
		Body:       bytes.NewReader(body),
		Params:     opensearchapi.IndexParams{Refresh: "true"},
	})
	if err != nil {
		return fmt.Errorf("index %s chunk %d: %w", record.DocID, record.ChunkID, err)
	}
	return nil
}

func (s *OpenSearchStore) Nearest(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	body, err := json.Marshal(QueryBody(vector, k))
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	resp, err := s.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{s.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}

	results := make([]Result, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var result Result
		if err := json.Unmarshal(hit.Source, &result); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *OpenSearchStore) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("ping opensearch index %s: %w", s.index, err)
	}
	return nil
}

func (s *OpenSearchStore) Close() error { return nil }

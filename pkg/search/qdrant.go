package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// QdrantOptions configures a QdrantStore.
type QdrantOptions struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// QdrantStore keeps chunks in a Qdrant collection over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
	dim         int
	log         *slog.Logger
}

func NewQdrant(opts QdrantOptions, log *slog.Logger) (*QdrantStore, error) {
	if opts.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	if opts.Collection == "" {
		return nil, errors.New("collection name is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s: %w", addr, err)
	}

	store := newQdrantWithClients(qdrant.NewCollectionsClient(conn), qdrant.NewPointsClient(conn), opts, log)
	store.conn = conn
	return store, nil
}

func newQdrantWithClients(collections qdrant.CollectionsClient, points qdrant.PointsClient, opts QdrantOptions, log *slog.Logger) *QdrantStore {
	if log == nil {
		log = slog.Default()
	}

	return &QdrantStore{
		collections: collections,
		points:      points,
		collection:  opts.Collection,
		dim:         opts.Dimension,
		log:         log.With("component", "search.qdrant", "collection", opts.Collection),
	}
}

func (q *QdrantStore) EnsureIndex(ctx context.Context) error {
	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.NotFound {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dim),
					Distance: qdrant.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}

	q.log.Info("Collection created", "dimension", q.dim)
	return nil
}

func (q *QdrantStore) Upsert(ctx context.Context, record Record) error {
	if len(record.Vector) != q.dim {
		return fmt.Errorf("%w: got dimension %d, want %d", ErrInvalidVector, len(record.Vector), q.dim)
	}

	wait := true
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: DocumentKey(record.DocID, record.ChunkID)}},
			Payload: map[string]*qdrant.Value{
				"doc_id":   {Kind: &qdrant.Value_StringValue{StringValue: record.DocID}},
				"chunk_id": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(record.ChunkID)}},
				"content":  {Kind: &qdrant.Value_StringValue{StringValue: record.Content}},
			},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: record.Vector}}},
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert %s chunk %d: %w", record.DocID, record.ChunkID, err)
	}
	return nil
}

func (q *QdrantStore) Nearest(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.collection, err)
	}

	results := make([]Result, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		results = append(results, Result{
			DocID:   payload["doc_id"].GetStringValue(),
			ChunkID: int(payload["chunk_id"].GetIntegerValue()),
			Content: payload["content"].GetStringValue(),
		})
	}
	return results, nil
}

func (q *QdrantStore) Ping(ctx context.Context) error {
	if _, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("ping qdrant: %w", err)
	}
	return nil
}

func (q *QdrantStore) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"ragbridge/pkg/egress"
	"ragbridge/pkg/search"
	"ragbridge/pkg/workqueue"
)

const defaultSearchTimeout = 10 * time.Second

// Searcher finds the closest chunk to a vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32) (search.Result, error)
}

// SearchExecutor answers a work item holding a JSON vector with the closest chunk.
type SearchExecutor struct {
	searcher Searcher
	sink     egress.Sink
	origins  []string
	timeout  time.Duration
	log      *slog.Logger
}

// NewSearchExecutor answers items from origins only; other topics are logged and skipped.
func NewSearchExecutor(searcher Searcher, sink egress.Sink, origins []string, timeout time.Duration, log *slog.Logger) (*SearchExecutor, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if sink == nil {
		return nil, errors.New("result sink is required")
	}
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &SearchExecutor{
		searcher: searcher,
		sink:     sink,
		origins:  append([]string(nil), origins...),
		timeout:  timeout,
		log:      log.With("component", "worker.search"),
	}, nil
}

func (e *SearchExecutor) Execute(ctx context.Context, item workqueue.Item) error {
	if !slices.Contains(e.origins, item.Topic) {
		e.log.Warn("Unexpected origin topic, result not sent", "topic", item.Topic)
		return nil
	}

	vector, err := search.ParseVector(item.Payload)
	if err != nil {
		return err
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	result, err := e.searcher.Search(searchCtx, vector)
	cancel()
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	answer := search.FormatResult(result)
	destination, err := e.sink.Deliver(ctx, item.Topic, answer)
	if err != nil {
		return fmt.Errorf("deliver result: %w", err)
	}

	e.log.Info("Search result delivered", "topic", item.Topic, "destination", destination, "doc_id", result.DocID, "chunk_id", result.ChunkID)
	return nil
}

package indexer

import (
	"context"
	"log/slog"
	"net/http"

	"ragbridge/pkg/egress"
	"ragbridge/pkg/routing"
	"ragbridge/pkg/server"
)

// Reindexer runs one indexing pass.
type Reindexer interface {
	Reindex(ctx context.Context) Outcome
}

// NewHandler exposes POST /index and GET /health. Each run's outcome is
// delivered to sink under the indexer origin and echoed in the response.
func NewHandler(ix Reindexer, sink egress.Sink, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "indexer.service")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", server.HandleHealth)
	mux.HandleFunc("POST /index", func(w http.ResponseWriter, r *http.Request) {
		log.Info("Indexing requested")
		// A caller that gives up waiting does not abort the run or its delivery.
		runCtx := context.WithoutCancel(r.Context())
		outcome := ix.Reindex(runCtx)

		if sink != nil {
			destination, err := sink.Deliver(runCtx, routing.IndexerOrigin, outcome.JSON())
			if err != nil {
				log.Error("Failed to deliver indexing outcome", "error", err)
			} else {
				log.Info("Indexing outcome delivered", "destination", destination, "status", outcome.Status, "count", outcome.Count)
			}
		}

		server.WriteJSON(w, http.StatusOK, outcome)
	})

	return mux
}

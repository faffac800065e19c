// Package indexer rebuilds the vector index from the documents of the file service.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ragbridge/pkg/provider"
	"ragbridge/pkg/search"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Outcome is the aggregate result of one indexing run.
type Outcome struct {
	Status      string       `json:"status"`
	Count       int          `json:"count"`
	Message     string       `json:"message,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Diagnostic records one document that failed and contributed no chunks.
type Diagnostic struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

// JSON renders the outcome as delivered to the index result queue.
func (o Outcome) JSON() string {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf(`{"status":%q,"count":0,"message":%q}`, StatusError, err.Error())
	}
	return string(raw)
}

// DocumentSource enumerates and fetches documents.
type DocumentSource interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, name string) (string, error)
}

// Options tunes an Indexer.
type Options struct {
	ChunkSize int
	Workers   int
}

type Indexer struct {
	store     search.Store
	source    DocumentSource
	embedder  provider.Embedder
	chunkSize int
	pool      *ants.Pool
	log       *slog.Logger

	// runs are serialized; a second trigger waits for the first.
	runMu sync.Mutex
}

func New(store search.Store, source DocumentSource, embedder provider.Embedder, opts Options, log *slog.Logger) (*Indexer, error) {
	if store == nil {
		return nil, errors.New("search store is required")
	}
	if source == nil {
		return nil, errors.New("document source is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if log == nil {
		log = slog.Default()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create indexing pool: %w", err)
	}

	return &Indexer{
		store:     store,
		source:    source,
		embedder:  embedder,
		chunkSize: opts.ChunkSize,
		pool:      pool,
		log:       log.With("component", "indexer"),
	}, nil
}

// Close releases the worker pool.
func (ix *Indexer) Close() {
	ix.pool.Release()
}

type documentResult struct {
	chunks int
	err    error
}

// Reindex runs one full pass: ensure the index, list documents, and index each one.
// A failing document is recorded as a diagnostic and contributes zero chunks.
func (ix *Indexer) Reindex(ctx context.Context) Outcome {
	ix.runMu.Lock()
	defer ix.runMu.Unlock()

	runID := uuid.NewString()
	log := ix.log.With("run_id", runID)
	startedAt := time.Now()
	log.Info("Indexing run started")

	if err := ix.store.EnsureIndex(ctx); err != nil {
		log.Error("Indexing run failed", "stage", "ensure_index", "error", err)
		return Outcome{Status: StatusError, Message: err.Error()}
	}

	names, err := ix.source.List(ctx)
	if err != nil {
		log.Error("Indexing run failed", "stage", "list", "error", err)
		return Outcome{Status: StatusError, Message: err.Error()}
	}
	log.Info("Documents found", "count", len(names))

	results := make([]documentResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		submitErr := ix.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if recovered := recover(); recovered != nil {
					results[i] = documentResult{err: fmt.Errorf("panic: %v", recovered)}
				}
			}()
			chunks, err := ix.indexDocument(ctx, name)
			results[i] = documentResult{chunks: chunks, err: err}
		})
		if submitErr != nil {
			wg.Done()
			results[i] = documentResult{err: fmt.Errorf("schedule document: %w", submitErr)}
		}
	}
	wg.Wait()

	outcome := Outcome{Status: StatusOK}
	for i, result := range results {
		if result.err != nil {
			log.Error("Document indexing failed", "document", names[i], "error", result.err)
			outcome.Diagnostics = append(outcome.Diagnostics, Diagnostic{Document: names[i], Error: result.err.Error()})
			continue
		}
		outcome.Count += result.chunks
	}

	log.Info("Indexing run completed",
		"chunks", outcome.Count,
		"documents", len(names),
		"failed", len(outcome.Diagnostics),
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return outcome
}

func (ix *Indexer) indexDocument(ctx context.Context, name string) (int, error) {
	text, err := ix.source.Fetch(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	chunks := Chunk(text, ix.chunkSize)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, chunk := range chunks {
		record := search.Record{DocID: name, ChunkID: i, Content: chunk, Vector: vectors[i]}
		if err := ix.store.Upsert(ctx, record); err != nil {
			return 0, fmt.Errorf("upsert chunk %d: %w", i, err)
		}
	}

	ix.log.Debug("Document indexed", "document", name, "chunks", len(chunks))
	return len(chunks), nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragbridge/pkg/files"
	"ragbridge/pkg/indexer"
	"ragbridge/pkg/provider"
	"ragbridge/pkg/server"

	"github.com/spf13/cobra"
)

const fileFetchTimeout = 30 * time.Second

var indexerCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Serve the document indexing endpoint",
	Long:  "Runs POST /index: lists the file service, chunks and embeds each document, and upserts the chunks into the vector index.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("indexer")
		if err != nil {
			return err
		}
		cfg, log := rt.cfg, rt.log

		runCtx, stop := signalContext()
		defer stop()

		store, err := openStore(runCtx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		embedder, err := provider.New(cfg)
		if err != nil {
			return fmt.Errorf("initialize embedder: %w", err)
		}

		source, err := files.NewClient(cfg.Files.ServiceURL, fileFetchTimeout)
		if err != nil {
			return err
		}

		ix, err := indexer.New(store, source, embedder, indexer.Options{
			ChunkSize: cfg.Indexer.ChunkSize,
			Workers:   cfg.Indexer.Workers,
		}, log)
		if err != nil {
			return err
		}
		defer ix.Close()

		sink, err := resultSink(cfg, rt.table, log)
		if err != nil {
			return err
		}

		log.Info("Indexer started", "backend", cfg.Search.Backend, "embedder", cfg.Embedder.Provider, "files", cfg.Files.ServiceURL)
		err = server.Serve(runCtx, server.Addr(cfg.Indexer.Host, cfg.Indexer.Port), indexer.NewHandler(ix, sink, log), log)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("indexer runtime failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexerCmd)
}

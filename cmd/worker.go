package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ragbridge/pkg/search"
	"ragbridge/pkg/server"
	"ragbridge/pkg/worker"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Answer queued messages with the nearest indexed chunk",
	Long:  "Pops vectors from the work queue, runs a nearest-neighbour search and delivers the formatted hit to the origin's egress queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("worker")
		if err != nil {
			return err
		}
		cfg, log := rt.cfg, rt.log

		runCtx, stop := signalContext()
		defer stop()

		queue, err := openQueue(runCtx, cfg, log)
		if err != nil {
			return err
		}
		defer queue.Close()

		store, err := openStore(runCtx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		sink, err := resultSink(cfg, rt.table, log)
		if err != nil {
			return err
		}

		topics := rt.table.Topics()
		executor, err := worker.NewSearchExecutor(search.NewSearcher(store, log), sink, topics, seconds(cfg.Search.TimeoutSeconds), log)
		if err != nil {
			return err
		}

		poller, err := worker.NewPoller(queue, topics, executor, worker.PollerOptions{
			PopTimeout: seconds(cfg.WorkQueue.PopTimeoutSeconds),
			IdleSleep:  time.Duration(cfg.WorkQueue.IdleSleepMillis) * time.Millisecond,
		}, log)
		if err != nil {
			return err
		}

		health := http.NewServeMux()
		health.HandleFunc("GET /health", server.HandleHealth)

		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error {
			return server.Serve(gctx, server.Addr(cfg.Worker.Host, cfg.Worker.Port), health, log)
		})
		g.Go(func() error {
			return poller.Run(gctx)
		})

		log.Info("Worker started", "topics", topics, "backend", cfg.Search.Backend, "delivery", cfg.Delivery.Mode)
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("worker runtime failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

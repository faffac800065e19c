package cmd

import (
	"context"
	"errors"
	"fmt"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/channel"
	"ragbridge/pkg/channel/artemis"
	"ragbridge/pkg/dispatch"
	"ragbridge/pkg/egress"
	"ragbridge/pkg/gateway"
	"ragbridge/pkg/indexer"
	"ragbridge/pkg/server"

	"github.com/spf13/cobra"
)

var translatorHTTPOnly bool

var translatorCmd = &cobra.Command{
	Use:   "translator",
	Short: "Run the broker/HTTP router",
	Long:  "Subscribes to the ingress queues, routes messages to the work queue or the indexer, and sends results to the matching egress queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("translator")
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

		trigger, err := indexer.NewClient(cfg.Indexer.URL, seconds(cfg.Indexer.TimeoutSeconds), log)
		if err != nil {
			return err
		}

		events := bus.NewMessageBus()
		defer events.Close()

		dispatcher, err := dispatch.New(rt.table, queue, log, dispatch.WithIndexTrigger(trigger), dispatch.WithEvents(events))
		if err != nil {
			return err
		}

		producer, err := artemis.NewOneShotProducer(cfg.Broker, log)
		if err != nil {
			return err
		}
		correlator, err := egress.NewCorrelator(rt.table, producer, log, egress.WithEvents(events))
		if err != nil {
			return err
		}

		var ingress channel.Adapter
		if !translatorHTTPOnly {
			adapter, err := artemis.NewAdapter(cfg.Broker, rt.table.Sources(), log)
			if err != nil {
				return fmt.Errorf("configure broker ingress: %w", err)
			}
			ingress = adapter
		}

		svc, err := gateway.NewService(gateway.Options{
			Addr:       server.Addr(cfg.Translator.Host, cfg.Translator.Port),
			Sources:    gateway.Sources{Chat: cfg.Broker.ChatIn, Email: cfg.Broker.EmailIn, Index: cfg.Broker.IndexIn},
			Dispatcher: dispatcher,
			Sink:       correlator,
			Ingress:    ingress,
			Events:     events,
			Queue:      queue,
		}, log)
		if err != nil {
			return err
		}

		log.Info("Translator started", "ingress", rt.table.Sources(), "http_only", translatorHTTPOnly)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("translator runtime failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translatorCmd)
	translatorCmd.Flags().BoolVar(&translatorHTTPOnly, "http-only", false, "serve the HTTP endpoints without subscribing to the broker")
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ragbridge/pkg/channel/artemis"
	"ragbridge/pkg/config"
	"ragbridge/pkg/egress"
	"ragbridge/pkg/logger"
	"ragbridge/pkg/routing"
	"ragbridge/pkg/search"
	"ragbridge/pkg/workqueue"
)

const (
	deliveryHTTP   = "http"
	deliveryBroker = "broker"

	queueBackendRedis  = "redis"
	queueBackendMemory = "memory"

	startupTimeout = 10 * time.Second
)

type process struct {
	cfg   *config.Config
	table *routing.Table
	log   *slog.Logger
}

// loadRuntime loads config, installs the process logger and builds the routing tables.
func loadRuntime(service string) (*process, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging, service)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	table, err := routing.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build routing tables: %w", err)
	}

	return &process{cfg: cfg, table: table, log: slog.Default().With("component", "cmd."+service)}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openQueue connects the configured work-queue backend and pings it.
func openQueue(ctx context.Context, cfg *config.Config, log *slog.Logger) (workqueue.Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.WorkQueue.Backend)) {
	case "", queueBackendRedis:
		queue := workqueue.NewRedis(workqueue.RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)

		pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()
		if err := queue.Ping(pingCtx); err != nil {
			_ = queue.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr(), err)
		}
		return queue, nil
	case queueBackendMemory:
		log.Warn("Memory work queue is process-local; other processes will not see its items")
		return workqueue.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported work queue backend %q", cfg.WorkQueue.Backend)
	}
}

// openStore builds the configured search backend and pings it.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (search.Store, error) {
	store, err := search.NewStore(cfg.Search, log)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect to %s search backend: %w", cfg.Search.Backend, err)
	}
	return store, nil
}

// resultSink picks how worker and indexer results get back to the broker.
func resultSink(cfg *config.Config, table *routing.Table, log *slog.Logger) (egress.Sink, error) {
	switch cfg.Delivery.Mode {
	case deliveryHTTP:
		sink, err := egress.NewCallbackSink(cfg.Translator.URL, seconds(cfg.Translator.ResultTimeoutSeconds), log)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case deliveryBroker:
		producer, err := artemis.NewOneShotProducer(cfg.Broker, log)
		if err != nil {
			return nil, err
		}
		correlator, err := egress.NewCorrelator(table, producer, log)
		if err != nil {
			return nil, err
		}
		return correlator, nil
	default:
		return nil, fmt.Errorf("unsupported delivery mode %q", cfg.Delivery.Mode)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Package worker drains the work queue and runs a task per item.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ragbridge/pkg/workqueue"
)

const (
	DefaultPopTimeout = time.Second
	DefaultIdleSleep  = 100 * time.Millisecond
)

// Executor handles one work item.
type Executor interface {
	Execute(ctx context.Context, item workqueue.Item) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, item workqueue.Item) error

func (f ExecutorFunc) Execute(ctx context.Context, item workqueue.Item) error {
	return f(ctx, item)
}

// PollerOptions tunes the poll loop.
type PollerOptions struct {
	PopTimeout time.Duration
	IdleSleep  time.Duration
}

// Poller pops items from several topics, in priority order, and executes them one at a time.
type Poller struct {
	queue      workqueue.Queue
	topics     []string
	executor   Executor
	popTimeout time.Duration
	idleSleep  time.Duration
	log        *slog.Logger
}

func NewPoller(queue workqueue.Queue, topics []string, executor Executor, opts PollerOptions, log *slog.Logger) (*Poller, error) {
	if queue == nil {
		return nil, errors.New("work queue is required")
	}
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = DefaultPopTimeout
	}
	if opts.IdleSleep < 0 {
		opts.IdleSleep = 0
	}
	if log == nil {
		log = slog.Default()
	}

	return &Poller{
		queue:      queue,
		topics:     append([]string(nil), topics...),
		executor:   executor,
		popTimeout: opts.PopTimeout,
		idleSleep:  opts.IdleSleep,
		log:        log.With("component", "worker.poller"),
	}, nil
}

// Run polls until ctx is cancelled. A closed queue ends the loop with an error.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("Polling work queue", "topics", p.topics)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, workqueue.ErrClosed) {
				return err
			}
			p.log.Warn("Work queue pop failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.idleSleep):
		}
	}
}

// RunOnce performs a single pop and, when an item arrives, executes it.
// Task failures are logged and swallowed; the item is not requeued.
func (p *Poller) RunOnce(ctx context.Context) (bool, error) {
	item, ok, err := p.queue.Pop(ctx, p.topics, p.popTimeout)
	if err != nil {
		return false, fmt.Errorf("pop: %w", err)
	}
	if !ok {
		return false, nil
	}

	p.log.Info("Work item received", "topic", item.Topic, "payload_length", len(item.Payload))
	if err := p.execute(ctx, item); err != nil {
		p.log.Error("Task failed", "topic", item.Topic, "error", err)
	}
	return true, nil
}

func (p *Poller) execute(ctx context.Context, item workqueue.Item) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task panicked: %v", recovered)
		}
	}()

	return p.executor.Execute(ctx, item)
}

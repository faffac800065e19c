// Package workqueue bridges dispatch and the worker poller through named lists.
//
// Producers push on the left and consumers pop on the right, so each topic is
// FIFO. Atomicity between concurrent pushers and poppers is provided by the
// backend's list operations; this package adds no locking of its own on the
// Redis path.
package workqueue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("work queue closed")

// Item is one unit of work popped from a topic.
type Item struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Queue is the work-queue bridge contract.
type Queue interface {
	// Push appends payload to topic. It never blocks on queue size.
	Push(ctx context.Context, topic string, payload string) error
	// Pop waits up to timeout for an item on any of topics, checked in order.
	// ok is false when the timeout elapsed with nothing available.
	Pop(ctx context.Context, topics []string, timeout time.Duration) (item Item, ok bool, err error)
	// Len reports the number of pending items on topic.
	Len(ctx context.Context, topic string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

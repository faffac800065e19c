package workqueue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue with the same FIFO-per-topic semantics as RedisQueue.
// It backs tests and single-process development runs.
type MemoryQueue struct {
	mu     sync.Mutex
	lists  map[string][]string
	wake   chan struct{}
	closed bool
}

func NewMemory() *MemoryQueue {
	return &MemoryQueue{
		lists: make(map[string][]string),
		wake:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(_ context.Context, topic string, payload string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.lists[topic] = append(q.lists[topic], payload)
	close(q.wake)
	q.wake = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, topics []string, timeout time.Duration) (Item, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Item{}, false, ErrClosed
		}
		for _, topic := range topics {
			if pending := q.lists[topic]; len(pending) > 0 {
				payload := pending[0]
				q.lists[topic] = pending[1:]
				q.mu.Unlock()
				return Item{Topic: topic, Payload: payload}, true, nil
			}
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Item{}, false, ctx.Err()
		case <-timer.C:
			return Item{}, false, nil
		case <-wake:
		}
	}
}

func (q *MemoryQueue) Len(_ context.Context, topic string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.lists[topic])), nil
}

func (q *MemoryQueue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.wake)
	}
	return nil
}

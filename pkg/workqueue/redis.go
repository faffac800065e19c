package workqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores each topic as a Redis list (LPUSH / BRPOP).
type RedisQueue struct {
	client *redis.Client
	log    *slog.Logger
}

// RedisOptions locates the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis dials lazily; call Ping to fail fast at startup.
func NewRedis(opts RedisOptions, log *slog.Logger) *RedisQueue {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), log)
}

// NewRedisFromClient wraps an existing client. The queue owns it and closes it on Close.
func NewRedisFromClient(client *redis.Client, log *slog.Logger) *RedisQueue {
	if log == nil {
		log = slog.Default()
	}

	return &RedisQueue{client: client, log: log.With("component", "workqueue.redis")}
}

func (q *RedisQueue) Push(ctx context.Context, topic string, payload string) error {
	size, err := q.client.LPush(ctx, topic, payload).Result()
	if err != nil {
		return fmt.Errorf("push to %s: %w", topic, err)
	}

	q.log.Debug("Work item pushed", "topic", topic, "depth", size, "payload_bytes", len(payload))
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, topics []string, timeout time.Duration) (Item, bool, error) {
	if len(topics) == 0 {
		return Item{}, false, errors.New("pop requires at least one topic")
	}

	result, err := q.client.BRPop(ctx, timeout, topics...).Result()
	if errors.Is(err, redis.Nil) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("pop from %v: %w", topics, err)
	}
	if len(result) != 2 {
		return Item{}, false, fmt.Errorf("pop from %v: unexpected reply of %d elements", topics, len(result))
	}

	return Item{Topic: result[0], Payload: result[1]}, true, nil
}

func (q *RedisQueue) Len(ctx context.Context, topic string) (int64, error) {
	size, err := q.client.LLen(ctx, topic).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", topic, err)
	}

	return size, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

func (q *RedisQueue) Close() error {
	if err := q.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}

	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/k2tzumi/new-emoji-webhook/internal/model"
)

// ErrFull is returned when a bounded queue cannot take more tasks.
var ErrFull = errors.New("queue: full")

// Queue holds notification tasks waiting for delivery.
type Queue interface {
	Enqueue(ctx context.Context, task *model.Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*model.Task, error)
}

// MemoryQueue is a channel-backed queue for single-instance deployments.
type MemoryQueue struct {
	ch chan *model.Task
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch: make(chan *model.Task, size),
	}
}

// Enqueue never blocks; a full buffer returns ErrFull so callers can shed load.
func (q *MemoryQueue) Enqueue(_ context.Context, task *model.Task) error {
	select {
	case q.ch <- task:
		return nil
	default:
		return ErrFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*model.Task, error) {
	select {
	case task := <-q.ch:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// RedisQueue implementation using Redis List
type RedisQueue struct {
	client  *redis.Client
	key     string
	logger  *slog.Logger
	pollFor time.Duration
}

func NewRedisQueue(client *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{
		client:  client,
		key:     key,
		logger:  logger,
		pollFor: time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: encode task %s: %w", task.ID, err)
	}
	// LPUSH to the head, BRPOP from the tail.
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("queue: push task %s: %w", task.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*model.Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// A bounded BRPOP lets cancellation be observed between polls.
		result, err := q.client.BRPop(ctx, q.pollFor, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			q.logger.Warn("redis dequeue error, retrying", "key", q.key, "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		// result is [key, value]
		if len(result) < 2 {
			continue
		}

		var task model.Task
		if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
			q.logger.Error("dropping undecodable task", "key", q.key, "error", err, "raw", result[1])
			continue
		}

		return &task, nil
	}
}

// Len reports the number of queued tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	natspkg "github.com/nats-io/nats.go"

	"github.com/k2tzumi/new-emoji-webhook/internal/model"
)

const natsQueueGroup = "notification-workers"

// NATSQueue publishes tasks to a subject and consumes them through a queue
// group, so each task reaches one worker across all relay instances.
// Core NATS does not persist messages: tasks published while no worker is
// subscribed are lost.
type NATSQueue struct {
	nc      *natspkg.Conn
	subject string
	sub     *natspkg.Subscription
	msgs    chan *natspkg.Msg
	logger  *slog.Logger
}

func NewNATSQueue(nc *natspkg.Conn, subject string, buffer int, logger *slog.Logger) (*NATSQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	msgs := make(chan *natspkg.Msg, buffer)
	sub, err := nc.ChanQueueSubscribe(subject, natsQueueGroup, msgs)
	if err != nil {
		return nil, fmt.Errorf("queue: subscribe %s: %w", subject, err)
	}
	return &NATSQueue{
		nc:      nc,
		subject: subject,
		sub:     sub,
		msgs:    msgs,
		logger:  logger,
	}, nil
}

func (q *NATSQueue) Enqueue(_ context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: encode task %s: %w", task.ID, err)
	}
	if err := q.nc.Publish(q.subject, data); err != nil {
		return fmt.Errorf("queue: publish task %s: %w", task.ID, err)
	}
	return nil
}

func (q *NATSQueue) Dequeue(ctx context.Context) (*model.Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-q.msgs:
			var task model.Task
			if err := json.Unmarshal(msg.Data, &task); err != nil {
				q.logger.Error("dropping undecodable task", "subject", q.subject, "error", err)
				continue
			}
			return &task, nil
		}
	}
}

func (q *NATSQueue) Close() error {
	return q.sub.Unsubscribe()
}

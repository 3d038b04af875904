package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/k2tzumi/new-emoji-webhook/internal/model"
	"github.com/k2tzumi/new-emoji-webhook/internal/queue"
)

// Notifier hands a formatted message to the outgoing side. The webhook
// client delivers synchronously; QueueNotifier defers to the worker pool.
type Notifier interface {
	Notify(ctx context.Context, msg model.NotificationMessage) (model.Receipt, error)
}

// QueueNotifier turns messages into delivery tasks.
type QueueNotifier struct {
	queue      queue.Queue
	maxRetries int
	now        func() time.Time
}

func NewQueueNotifier(q queue.Queue, maxRetries int) *QueueNotifier {
	return &QueueNotifier{
		queue:      q,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

func (n *QueueNotifier) Notify(ctx context.Context, msg model.NotificationMessage) (model.Receipt, error) {
	task := &model.Task{
		ID:         uuid.NewString(),
		Message:    msg,
		MaxRetries: n.maxRetries,
		CreatedAt:  n.now(),
	}
	if err := n.queue.Enqueue(ctx, task); err != nil {
		return model.Receipt{}, fmt.Errorf("handler: enqueue notification: %w", err)
	}
	return model.Receipt{Queued: true, TaskID: task.ID}, nil
}

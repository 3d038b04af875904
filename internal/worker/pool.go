package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/k2tzumi/new-emoji-webhook/internal/metrics"
	"github.com/k2tzumi/new-emoji-webhook/internal/model"
	"github.com/k2tzumi/new-emoji-webhook/internal/queue"
	"github.com/k2tzumi/new-emoji-webhook/internal/webhook"
)

const (
	defaultMaxDelay       = 5 * time.Minute
	defaultAttemptTimeout = 30 * time.Second
)

// Sender makes a single delivery attempt. *webhook.Client implements it.
type Sender interface {
	Invoke(ctx context.Context, message string, threadTS string) (bool, error)
}

// Pool drains a queue with a fixed number of workers and retries failed
// deliveries with exponential backoff. It is the retry layer around the
// single-attempt webhook client.
type Pool struct {
	Size       int
	Queue      queue.Queue
	Sender     Sender
	DeadLetter queue.Queue
	BaseDelay  time.Duration
	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
	// AttemptTimeout bounds one delivery. Attempts are not cancelled by
	// shutdown, only by this timeout.
	AttemptTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time

	wg sync.WaitGroup
}

func NewPool(size int, q queue.Queue, sender Sender, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		Size:           size,
		Queue:          q,
		Sender:         sender,
		BaseDelay:      time.Second,
		MaxDelay:       defaultMaxDelay,
		AttemptTimeout: defaultAttemptTimeout,
		Logger:         logger,
		Now:            time.Now,
	}
}

// Run starts the workers. They stop when ctx is cancelled; Wait blocks
// until they and any pending retry timers have returned.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.Size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	p.Logger.Info("delivery workers started", "workers", p.Size)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := p.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Logger.Warn("dequeue failed", "worker", id, "error", err)
			continue
		}
		p.process(ctx, id, task)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, task *model.Task) {
	logger := p.Logger.With("worker", workerID, "task_id", task.ID, "retry", task.RetryCount)
	logger.Debug("delivering task")

	// A task taken off the queue is finished even when shutdown starts
	// mid-attempt; the Redis and NATS queues have already handed it over.
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.attemptTimeout())
	delivered, err := p.Sender.Invoke(attemptCtx, task.Message.Text, task.Message.ThreadTS)
	cancel()
	if err == nil && delivered {
		logger.Info("task delivered")
		return
	}

	retryable := false
	var netErr *webhook.NetworkAccessError
	switch {
	case errors.As(err, &netErr):
		retryable = netErr.Retryable()
		task.LastError = netErr.Error()
	case err != nil:
		task.LastError = err.Error()
	default:
		// 200 with a body other than "ok": Slack saw the message and said no.
		task.LastError = "webhook responded 200 without ok"
	}
	logger.Warn("task delivery failed", "error", task.LastError, "retryable", retryable)

	if !retryable {
		p.deadLetter(ctx, task)
		return
	}
	p.handleFailure(ctx, task)
}

func (p *Pool) handleFailure(ctx context.Context, task *model.Task) {
	if task.RetryCount >= task.MaxRetries {
		p.Logger.Warn("task reached max retries", "task_id", task.ID, "max_retries", task.MaxRetries)
		p.deadLetter(ctx, task)
		return
	}

	task.RetryCount++
	// Exponential Backoff: base, 2*base, 4*base...
	backoff := p.backoff(task.RetryCount)
	task.NextRetryAt = p.now().Add(backoff)
	metrics.ObserveRetry()

	p.Logger.Info("task scheduled for retry",
		"task_id", task.ID, "in", backoff, "attempt", task.RetryCount, "max_retries", task.MaxRetries)

	// Wait off the worker so other tasks keep flowing.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			p.Logger.Info("requeueing pending retry on shutdown", "task_id", task.ID)
		}
		if err := p.Queue.Enqueue(context.WithoutCancel(ctx), task); err != nil {
			p.Logger.Error("requeue failed", "task_id", task.ID, "error", err)
			p.deadLetter(ctx, task)
		}
	}()
}

func (p *Pool) deadLetter(ctx context.Context, task *model.Task) {
	metrics.ObserveDeadLetter()
	if p.DeadLetter == nil {
		p.Logger.Error("task dropped", "task_id", task.ID, "text", task.Message.Text, "last_error", task.LastError)
		return
	}
	if err := p.DeadLetter.Enqueue(context.WithoutCancel(ctx), task); err != nil {
		p.Logger.Error("dead letter enqueue failed", "task_id", task.ID, "error", err)
	}
}

func (p *Pool) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (p *Pool) attemptTimeout() time.Duration {
	if p.AttemptTimeout > 0 {
		return p.AttemptTimeout
	}
	return defaultAttemptTimeout
}

func (p *Pool) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Package app wires configuration into a running relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	natspkg "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/k2tzumi/new-emoji-webhook/internal/cache"
	"github.com/k2tzumi/new-emoji-webhook/internal/config"
	"github.com/k2tzumi/new-emoji-webhook/internal/event"
	"github.com/k2tzumi/new-emoji-webhook/internal/handler"
	"github.com/k2tzumi/new-emoji-webhook/internal/queue"
	"github.com/k2tzumi/new-emoji-webhook/internal/server"
	"github.com/k2tzumi/new-emoji-webhook/internal/webhook"
	"github.com/k2tzumi/new-emoji-webhook/internal/worker"
)

const (
	redisKeyPrefix = "relay:"
	purgeInterval  = 10 * time.Minute
)

// App owns every long-lived component of the relay.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Dispatcher *event.Dispatcher
	Client     *webhook.Client
	Handler    http.Handler

	pool    *worker.Pool
	purger  *cache.SQLCache
	redis   *redis.Client
	closers []func() error
}

// New builds the relay. Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	store, err := a.buildCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Client = webhook.NewClient(cfg.Slack.IncomingWebhooksURL, webhook.WithLogger(logger))

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dispatcher = event.NewDispatcher(event.Config{
		VerificationToken: cfg.Slack.VerificationToken,
		Scope:             cfg.Cache.Scope,
		TTL:               cfg.Cache.TTL,
	}, store, logger)
	a.Dispatcher.RegisterHandler(handler.EmojiChangedType,
		handler.NewEmojiHandler(cfg.Slack.NotificationMessage, notifier, logger))

	a.Handler = server.NewRouter(cfg.HTTP.EventsPath, handler.NewEventsHandler(a.Dispatcher, logger))
	return a, nil
}

func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("app: connect redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) buildCache(ctx context.Context) (cache.Cache, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisCache(client, redisKeyPrefix), nil
	case config.CacheSQLite, config.CachePostgres:
		dialect := cache.DialectSQLite
		if a.cfg.Cache.Backend == config.CachePostgres {
			dialect = cache.DialectPostgres
		}
		store, err := cache.OpenSQLCache(ctx, dialect, a.cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: open %s cache: %w", a.cfg.Cache.Backend, err)
		}
		a.purger = store
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

func (a *App) buildNotifier(ctx context.Context) (handler.Notifier, error) {
	if a.cfg.Delivery.Mode != config.DeliveryQueue {
		return a.Client, nil
	}

	d := a.cfg.Delivery
	var work, dead queue.Queue
	switch d.Queue {
	case config.QueueRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		work = queue.NewRedisQueue(client, d.QueueKey, a.logger)
		dead = queue.NewRedisQueue(client, d.QueueKey+":dead", a.logger)
	case config.QueueNATS:
		nc, err := natspkg.Connect(d.NATSURL, natspkg.Name("new-emoji-webhook"))
		if err != nil {
			return nil, fmt.Errorf("app: connect nats %s: %w", d.NATSURL, err)
		}
		a.closers = append(a.closers, func() error { return nc.Drain() })
		nq, err := queue.NewNATSQueue(nc, d.QueueKey, d.QueueSize, a.logger)
		if err != nil {
			return nil, err
		}
		work = nq
		// no subscriber drains dead letters on NATS; the pool logs them
	default:
		work = queue.NewMemoryQueue(d.QueueSize)
		dead = queue.NewMemoryQueue(d.QueueSize)
	}

	a.pool = worker.NewPool(d.Workers, work, a.Client, a.logger)
	a.pool.BaseDelay = d.RetryBaseDelay
	a.pool.DeadLetter = dead
	return handler.NewQueueNotifier(work, d.MaxRetries), nil
}

// Run serves HTTP until ctx is cancelled. Workers and the expired-key
// purge run alongside and are stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.pool != nil {
		a.pool.Run(ctx)
	}
	if a.purger != nil {
		go a.purgeLoop(ctx)
	}

	err := server.New(a.cfg.HTTP.Addr, a.Handler, a.logger).Start(ctx)
	cancel()
	if a.pool != nil {
		a.pool.Wait()
	}
	return err
}

func (a *App) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.purger.Purge(ctx)
			if err != nil {
				a.logger.Warn("purge expired idempotency keys", "error", err)
				continue
			}
			a.logger.Debug("purged expired idempotency keys", "rows", n)
		}
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Package event verifies, deduplicates and routes Slack Events API
// envelopes to per-type handlers.
package event

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/k2tzumi/new-emoji-webhook/internal/cache"
	"github.com/k2tzumi/new-emoji-webhook/internal/model"
)

const (
	// DefaultScope qualifies dedup keys so dispatchers sharing a cache
	// don't collide.
	DefaultScope = "EventDispatcher"
	// DefaultTTL is how long an event id is remembered.
	DefaultTTL = 60 * time.Second

	proceededMarker = "proceeded"
)

// Handler processes one event type. A nil output produces an empty
// response body.
type Handler interface {
	Handle(ctx context.Context, payload model.EventPayload) (any, error)
}

type HandlerFunc func(ctx context.Context, payload model.EventPayload) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, payload model.EventPayload) (any, error) {
	return f(ctx, payload)
}

// Result is the outcome of a dispatched envelope.
type Result struct {
	Performed bool
	Output    any
	// Outcome is "handled", "unsupported" or "unknown".
	Outcome string
}

const (
	OutcomeHandled     = "handled"
	OutcomeUnsupported = "unsupported"
	OutcomeUnknown     = "unknown"
)

type Config struct {
	VerificationToken string
	Scope             string
	TTL               time.Duration
}

type Dispatcher struct {
	token  string
	scope  string
	ttl    time.Duration
	cache  cache.Cache
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher(cfg Config, c cache.Cache, logger *slog.Logger) *Dispatcher {
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		token:    cfg.VerificationToken,
		scope:    cfg.Scope,
		ttl:      cfg.TTL,
		cache:    c,
		logger:   logger,
		handlers: map[string]Handler{},
	}
}

// Verify checks the envelope token. It has no side effects; logging the
// rejected token is left to the caller.
func (d *Dispatcher) Verify(env model.Envelope) error {
	if subtle.ConstantTimeCompare([]byte(env.Token), []byte(d.token)) != 1 {
		return &VerificationError{Token: env.Token}
	}
	return nil
}

// RegisterHandler binds h to eventType, replacing any previous handler.
func (d *Dispatcher) RegisterHandler(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// IsDuplicate reports whether eventID was already seen in the dedup window
// and marks it seen otherwise. With an Adder backend the check and mark
// are one atomic operation; a plain Cache falls back to get-then-put, where
// two concurrent redeliveries can both pass.
func (d *Dispatcher) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	key := d.scope + "#" + eventID

	if adder, ok := d.cache.(cache.Adder); ok {
		stored, err := adder.Add(ctx, key, proceededMarker, d.ttl)
		if err != nil {
			return false, fmt.Errorf("event: mark %s: %w", key, err)
		}
		return !stored, nil
	}

	_, seen, err := d.cache.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("event: lookup %s: %w", key, err)
	}
	if seen {
		return true, nil
	}
	if err := d.cache.Put(ctx, key, proceededMarker, d.ttl); err != nil {
		return false, fmt.Errorf("event: mark %s: %w", key, err)
	}
	return false, nil
}

// Dispatch verifies env, drops redeliveries and routes the inner event to
// its handler. Handler errors are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, env model.Envelope) (Result, error) {
	if err := d.Verify(env); err != nil {
		return Result{}, err
	}

	switch env.Kind() {
	case model.KindURLVerification:
		d.logger.Info("url_verification called", "challenge", env.Challenge)
		return Result{
			Performed: true,
			Output:    map[string]string{"challenge": env.Challenge},
			Outcome:   OutcomeHandled,
		}, nil

	case model.KindEventCallback:
		if env.EventID == "" {
			return Result{}, ErrMissingEventID
		}
		duplicate, err := d.IsDuplicate(ctx, env.EventID)
		if err != nil {
			return Result{}, err
		}
		if duplicate {
			return Result{}, &DuplicateEventError{EventID: env.EventID}
		}

		var payload model.EventPayload
		if env.Event != nil {
			payload = *env.Event
		}
		d.logger.Info("event_callback called", "event_id", env.EventID, "event_type", payload.Type)

		handler := d.handlerFor(payload.Type)
		if handler == nil {
			d.logger.Warn("unsupported event", "event_id", env.EventID, "event_type", payload.Type)
			return Result{
				Performed: true,
				Output:    map[string]any{"unsupported": payload},
				Outcome:   OutcomeUnsupported,
			}, nil
		}

		output, err := handler.Handle(ctx, payload)
		if err != nil {
			return Result{}, err
		}
		return Result{Performed: true, Output: output, Outcome: OutcomeHandled}, nil

	default:
		d.logger.Error("unknown event called", "type", env.Type)
		return Result{
			Performed: true,
			Output:    map[string]string{"unknown event": env.Type},
			Outcome:   OutcomeUnknown,
		}, nil
	}
}

func (d *Dispatcher) handlerFor(eventType string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[eventType]
}

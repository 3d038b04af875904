package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"

	"github.com/k2tzumi/new-emoji-webhook/internal/event"
	"github.com/k2tzumi/new-emoji-webhook/internal/metrics"
	"github.com/k2tzumi/new-emoji-webhook/internal/model"
)

// maxBodyBytes bounds inbound envelopes; Slack events are a few KB.
const maxBodyBytes = 1 << 20

// Dispatcher is the part of *event.Dispatcher the HTTP layer needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, env model.Envelope) (event.Result, error)
}

// EventsHandler is the Slack Events API request URL endpoint.
type EventsHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewEventsHandler(d Dispatcher, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		dispatcher: d,
		logger:     logger,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, relayError("relay: method not allowed", goerrors.CategoryMethodNotAllowed,
			http.StatusMethodNotAllowed, TextCodeMethodNotAllowed, map[string]any{"method": r.Method}))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, "", relayWrapError(err, goerrors.CategoryBadInput, "relay: read request body",
			http.StatusBadRequest, TextCodeBadInput, nil))
		return
	}

	var env model.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.fail(w, r, "", relayWrapError(err, goerrors.CategoryBadInput, "relay: invalid JSON body",
			http.StatusBadRequest, TextCodeBadInput, nil))
		return
	}
	kind := env.Kind().String()

	result, err := h.dispatcher.Dispatch(r.Context(), env)
	if err != nil {
		var dupErr *event.DuplicateEventError
		if errors.As(err, &dupErr) {
			h.logger.Info("event_callback duplicate called", "event_id", dupErr.EventID)
			metrics.ObserveEvent(kind, metrics.OutcomeDuplicate)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}

		var verifyErr *event.VerificationError
		if errors.As(err, &verifyErr) {
			h.logger.Warn("invalid verification token", "token", verifyErr.Token)
			metrics.ObserveEvent(kind, metrics.OutcomeRejected)
		} else {
			metrics.ObserveEvent(kind, metrics.OutcomeFailed)
		}
		h.fail(w, r, kind, classify(err))
		return
	}

	metrics.ObserveEvent(kind, result.Outcome)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if result.Output == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(result.Output); err != nil {
		h.logger.Error("encode response failed", "error", err)
	}
}

func (h *EventsHandler) fail(w http.ResponseWriter, r *http.Request, kind string, rich *goerrors.Error) {
	if id := middleware.GetReqID(r.Context()); id != "" {
		rich.WithRequestID(id)
	}

	level := slog.LevelError
	if rich.Code < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	attrs := append(goerrors.ToSlogAttributes(rich), slog.String("kind", kind))
	if rich.Source != nil {
		attrs = append(attrs, slog.String("cause", rich.Source.Error()))
	}
	h.logger.LogAttrs(r.Context(), level, rich.Message, attrs...)

	writeError(w, rich)
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/k2tzumi/new-emoji-webhook/internal/event"
	"github.com/k2tzumi/new-emoji-webhook/internal/queue"
	"github.com/k2tzumi/new-emoji-webhook/internal/webhook"
)

const (
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeBadInput           = "BAD_INPUT"
	TextCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	TextCodeExternalFailure    = "EXTERNAL_FAILURE"
	TextCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	TextCodeInternal           = "INTERNAL"
)

func relayError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func relayWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return relayError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// classify maps a pipeline error to the envelope returned to Slack.
// Duplicates never get here; they are successes.
func classify(err error) *goerrors.Error {
	var (
		verifyErr *event.VerificationError
		netErr    *webhook.NetworkAccessError
	)
	switch {
	case errors.As(err, &verifyErr):
		// not wrapped: the rejected token stays out of the response body
		return relayError("relay: request verification failed", goerrors.CategoryAuth,
			http.StatusUnauthorized, TextCodeUnauthorized, nil)
	case errors.Is(err, event.ErrMissingEventID):
		return relayWrapError(err, goerrors.CategoryBadInput, "relay: event_id is required",
			http.StatusBadRequest, TextCodeBadInput, nil)
	case errors.As(err, &netErr):
		return relayWrapError(err, goerrors.CategoryExternal, "relay: incoming webhook delivery failed",
			http.StatusBadGateway, TextCodeExternalFailure,
			map[string]any{"upstream_status": netErr.StatusCode})
	case errors.Is(err, queue.ErrFull):
		return relayWrapError(err, goerrors.CategoryRateLimit, "relay: delivery queue is full",
			http.StatusServiceUnavailable, TextCodeServiceUnavailable, nil)
	default:
		return relayWrapError(err, goerrors.CategoryInternal, "relay: event handling failed",
			http.StatusInternalServerError, TextCodeInternal, nil)
	}
}

func writeError(w http.ResponseWriter, rich *goerrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rich.Code)
	_ = json.NewEncoder(w).Encode(rich.ToErrorResponse(false, nil))
}

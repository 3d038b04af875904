// Package webhook posts notifications to a Slack incoming webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/k2tzumi/new-emoji-webhook/internal/metrics"
	"github.com/k2tzumi/new-emoji-webhook/internal/model"
)

const (
	contentType = "application/json; charset=UTF-8"
	okBody      = "ok"
)

type payload struct {
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Client delivers messages to one incoming webhook URL. It makes exactly one
// attempt per call; retry policy belongs to the caller.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url: url,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke posts message (and threadTS when non-empty) to the webhook.
//
// It returns true only for HTTP 200 with the literal body "ok". A 200 with
// any other body returns false without error: Slack accepted the request
// but signalled failure in the body. Every other status, and any transport
// fault, is a *NetworkAccessError.
func (c *Client) Invoke(ctx context.Context, message string, threadTS string) (bool, error) {
	body, err := json.Marshal(payload{Text: message, ThreadTS: threadTS})
	if err != nil {
		return false, fmt.Errorf("webhook: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("webhook request build failed", "error", err)
		metrics.ObserveDelivery(metrics.DeliveryNetFail)
		return false, &NetworkAccessError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("webhook transport error", "error", err)
		metrics.ObserveDelivery(metrics.DeliveryNetFail)
		return false, &NetworkAccessError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("webhook response read failed", "status", resp.StatusCode, "error", err)
		metrics.ObserveDelivery(metrics.DeliveryNetFail)
		return false, &NetworkAccessError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}

	if resp.StatusCode == http.StatusOK {
		if string(content) == okBody {
			metrics.ObserveDelivery(metrics.DeliveryOK)
			return true, nil
		}
		metrics.ObserveDelivery(metrics.DeliveryNotOK)
		return false, nil
	}

	c.logger.Warn("incoming webhook error", "status", resp.StatusCode, "content", string(content))
	metrics.ObserveDelivery(metrics.DeliveryHTTPFail)
	return false, &NetworkAccessError{StatusCode: resp.StatusCode, Message: string(content)}
}

// Notify delivers msg synchronously.
func (c *Client) Notify(ctx context.Context, msg model.NotificationMessage) (model.Receipt, error) {
	delivered, err := c.Invoke(ctx, msg.Text, msg.ThreadTS)
	if err != nil {
		return model.Receipt{}, err
	}
	return model.Receipt{Delivered: delivered}, nil
}

// Package metrics holds the relay's Prometheus collectors and the HTTP
// RED middleware.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes recorded by ObserveEvent.
const (
	OutcomeRejected    = "rejected"
	OutcomeDuplicate   = "duplicate"
	OutcomeHandled     = "handled"
	OutcomeUnsupported = "unsupported"
	OutcomeUnknown     = "unknown"
	OutcomeFailed      = "failed"
)

// Delivery results recorded by ObserveDelivery.
const (
	DeliveryOK       = "ok"
	DeliveryNotOK    = "not_ok"
	DeliveryHTTPFail = "http_error"
	DeliveryNetFail  = "transport_error"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"path", "method", "status"})

	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Inbound Slack events by envelope kind and outcome.",
	}, []string{"kind", "outcome"})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_webhook_deliveries_total",
		Help: "Outgoing webhook attempts by result.",
	}, []string{"result"})

	retries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_delivery_retries_total",
		Help: "Queued deliveries scheduled for another attempt.",
	})

	deadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_delivery_dead_letters_total",
		Help: "Queued deliveries given up on.",
	})
)

func ObserveEvent(kind, outcome string) {
	events.WithLabelValues(kind, outcome).Inc()
}

func ObserveDelivery(result string) {
	deliveries.WithLabelValues(result).Inc()
}

func ObserveRetry() {
	retries.Inc()
}

func ObserveDeadLetter() {
	deadLetters.Inc()
}

// Middleware records RED metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Prefer the route pattern so ids in paths don't explode cardinality.
		routeCtx := chi.RouteContext(r.Context())
		path := r.URL.Path
		if routeCtx != nil && routeCtx.RoutePattern() != "" {
			path = routeCtx.RoutePattern()
		}

		status := strconv.Itoa(ww.Status())
		httpDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(path, r.Method, status).Inc()
	})
}

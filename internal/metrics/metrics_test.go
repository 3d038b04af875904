package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveEvent(t *testing.T) {
	before := testutil.ToFloat64(events.WithLabelValues("event_callback", OutcomeDuplicate))
	ObserveEvent("event_callback", OutcomeDuplicate)
	assert.Equal(t, before+1, testutil.ToFloat64(events.WithLabelValues("event_callback", OutcomeDuplicate)))
}

func TestObserveDeliveryAndRetries(t *testing.T) {
	ok := testutil.ToFloat64(deliveries.WithLabelValues(DeliveryOK))
	r := testutil.ToFloat64(retries)
	d := testutil.ToFloat64(deadLetters)

	ObserveDelivery(DeliveryOK)
	ObserveRetry()
	ObserveDeadLetter()

	assert.Equal(t, ok+1, testutil.ToFloat64(deliveries.WithLabelValues(DeliveryOK)))
	assert.Equal(t, r+1, testutil.ToFloat64(retries))
	assert.Equal(t, d+1, testutil.ToFloat64(deadLetters))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/items/{id}", http.MethodGet, "418"))
	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues("/items/{id}", http.MethodGet, "418")))
}

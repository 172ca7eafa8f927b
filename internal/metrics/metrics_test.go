package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.OrderRejected("insufficient_stock")
		m.OrderTransition("confirmed")
		m.PaymentCreated("stripe")
		m.PaymentOutcome("stripe", "completed")
		m.GatewayError("stripe")
		m.Webhook("stripe", "processed")
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderCreated()
	m.OrderCreated()
	m.Webhook("mercadopago", "unresolved")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Webhooks.WithLabelValues("mercadopago", "unresolved")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/orders/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	})
	e.GET("/metrics", echo.WrapHandler(Handler(reg)))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/orders/:id", "404")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ordering_http_requests_total")
}

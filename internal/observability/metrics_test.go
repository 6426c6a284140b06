package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `supplyhub_http_requests_total{code="418",method="GET",route="/test"} 1`)
	require.Contains(t, body, `supplyhub_http_request_duration_seconds_bucket{route="/test"`)
}

func TestDomainMetricsExposed(t *testing.T) {
	metrics := NewMetrics()
	d := metrics.Domain()
	d.StockMovement("in")
	d.StockMovement("in")
	d.Reservation("insufficient")
	d.OrderTransition("pending", "approved")
	d.QuantityRequest("merged")

	body := scrape(t, metrics)
	require.Contains(t, body, `supplyhub_stock_movements_total{type="in"} 2`)
	require.Contains(t, body, `supplyhub_stock_reservations_total{outcome="insufficient"} 1`)
	require.Contains(t, body, `supplyhub_order_transitions_total{from="pending",to="approved"} 1`)
	require.Contains(t, body, `supplyhub_quantity_requests_total{event="merged"} 1`)
}

func TestNilDomainMetricsAreNoops(t *testing.T) {
	var m *Metrics
	d := m.Domain()
	require.Nil(t, d)
	d.StockMovement("out")
	d.OrderTransition("pending", "cancelled")
}

func TestMetricsMiddlewareUnmatchedRoute(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.NotFoundHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/nowhere", nil))

	body := scrape(t, metrics)
	require.Contains(t, body, `supplyhub_http_requests_total{code="404",method="POST",route="unmatched"} 1`)
	require.Contains(t, body, `supplyhub_http_in_flight_requests 0`)
}

package requests_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
)

func router(svc *requests.Service, actor shared.Actor) http.Handler {
	h := requests.NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	})
	r.Route("/quantity-requests", h.MountQuantityRoutes)
	r.Route("/display-requests", h.MountDisplayRoutes)
	return r
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestHandlerRequestFlow(t *testing.T) {
	f := newFixture(t)
	staff := router(f.service, warehouse)
	vendor := router(f.service, supplier)

	rr := call(staff, http.MethodPost, "/quantity-requests", `{"productId":"prod-1","quantity":3}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var q requests.QuantityRequest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &q))

	rr = call(staff, http.MethodPost, "/quantity-requests", `{"productId":"prod-1","quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = call(vendor, http.MethodPost, "/quantity-requests/"+q.ID+"/respond", `{"status":"approved_partial","approvedQuantity":9}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = call(vendor, http.MethodPost, "/quantity-requests/"+q.ID+"/respond", `{"status":"maybe"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = call(vendor, http.MethodPost, "/quantity-requests/"+q.ID+"/respond", `{"status":"approved_partial","approvedQuantity":4}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &q))
	require.Equal(t, 4, *q.ApprovedQuantity)
	require.NotEmpty(t, q.InventoryItemID)

	rr = call(staff, http.MethodDelete, "/quantity-requests/"+q.ID, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = call(vendor, http.MethodPost, "/display-requests", `{"productId":"prod-1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var d requests.DisplayRequest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))

	rr = call(vendor, http.MethodPost, "/display-requests/"+d.ID+"/accept", `{}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = call(staff, http.MethodPost, "/display-requests/"+d.ID+"/accept", `{"notes":"ok"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"quantityRequest"`)

	rr = call(vendor, http.MethodGet, "/quantity-requests?status=pending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"requestedQuantity":1`)
}

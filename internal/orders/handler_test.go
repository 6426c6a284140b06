package orders_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/shared"
)

func router(svc *orders.Service, actor shared.Actor) http.Handler {
	h := orders.NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	})
	r.Route("/orders", h.MountRoutes)
	return r
}

func send(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerOrderFlow(t *testing.T) {
	f := newFixture(t)
	f.stock(t, "a", 4, 2)
	shop := router(f.service, customer)
	staff := router(f.service, warehouse)

	rr := send(shop, http.MethodPost, "/orders", `{"items":[{"productId":"a","quantity":3}]}`, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var o orders.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))
	require.Equal(t, 6.0, o.TotalAmount)

	rr = send(shop, http.MethodPost, "/orders", `{"items":[{"productId":"a","quantity":1}]}`, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = send(shop, http.MethodPost, "/orders", `{"items":[{"productId":"a","quantity":2}]}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "Insufficient Stock")

	rr = send(shop, http.MethodPost, "/orders", `{"items":[{"productId":"a","quantity":0}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = send(shop, http.MethodPost, "/orders/"+o.ID+"/status", `{"status":"approved"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = send(shop, http.MethodPost, "/orders/"+o.ID+"/status", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = send(staff, http.MethodPost, "/orders/bulk-status", `{"ids":["`+o.ID+`"],"status":"shipped"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), o.OrderNumber)

	rr = send(staff, http.MethodPost, "/orders/"+o.ID+"/status", `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = send(shop, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Orders []orders.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Orders, 1)
	require.Equal(t, orders.StatusApproved, list.Orders[0].Status)

	rr = send(shop, http.MethodDelete, "/orders/"+o.ID, "")
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerAdminCancelNeedsReason(t *testing.T) {
	f := newFixture(t)
	f.stock(t, "a", 4, 2)
	shop := router(f.service, customer)
	boss := router(f.service, admin)

	rr := send(shop, http.MethodPost, "/orders", `{"items":[{"productId":"a","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var o orders.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))

	for _, body := range []string{`{"reason":""}`, `{"reason":"   "}`, `{}`} {
		rr = send(boss, http.MethodPost, "/orders/"+o.ID+"/admin-cancel", body)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code, body)
	}

	rr = send(boss, http.MethodPost, "/orders/"+o.ID+"/admin-cancel", `{"reason":"duplicate order"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &o))
	require.Equal(t, orders.StatusCancelled, o.Status)
}

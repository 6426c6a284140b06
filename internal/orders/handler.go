package orders

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/supplyhub/supplyhub/internal/platform/httpx"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes. Callers must authenticate first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Post("/bulk-status", h.handleBulkStatus)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleDelete)
		r.Put("/items", h.handleUpdateItems)
		r.Post("/status", h.handleStatus)
		r.Post("/admin-cancel", h.handleAdminCancel)
	})
}

type listResponse struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

type itemsRequest struct {
	Items []LineInput `json:"items" validate:"required,min=1,dive"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, page, err := h.service.List(r.Context(), actor(r), ListFilter{
		UserID:  q.Get("userId"),
		Status:  Status(q.Get("status")),
		Search:  strings.TrimSpace(q.Get("q")),
		Page:    httpx.QueryInt(r, "page", 1),
		PerPage: httpx.QueryInt(r, "perPage", 20),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Orders: orders, Pagination: page})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	order, err := h.service.Create(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	h.logger.Info("order created", slog.String("order_number", order.OrderNumber), slog.Float64("total", order.TotalAmount))
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateItems(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateItems(r.Context(), actor(r), chi.URLParam(r, "id"), req.Items)
	if err != nil {
		h.fail(w, "update items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var input StatusInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "update status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var input BulkStatusInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, err := h.service.BulkUpdateStatus(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, "bulk status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.AdminCancel(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, "admin cancel", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("orders "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func actor(r *http.Request) shared.Actor {
	a, _ := shared.ActorFromContext(r.Context())
	return a
}

package requests

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supplyhub/supplyhub/internal/platform/httpx"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// Handler wires HTTP endpoints for quantity and display requests.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountQuantityRoutes registers /quantity-requests routes.
func (h *Handler) MountQuantityRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/respond", h.handleRespond)
	r.Post("/{id}/cancel", h.handleCancel)
}

// MountDisplayRoutes registers /display-requests routes.
func (h *Handler) MountDisplayRoutes(r chi.Router) {
	r.Get("/", h.handleListDisplay)
	r.Post("/", h.handleCreateDisplay)
	r.Get("/{id}", h.handleGetDisplay)
	r.Post("/{id}/accept", h.handleAccept)
	r.Post("/{id}/reject", h.handleReject)
}

type quantityList struct {
	Requests   []QuantityRequest `json:"requests"`
	Pagination shared.Pagination `json:"pagination"`
}

type displayList struct {
	Requests   []DisplayRequest  `json:"requests"`
	Pagination shared.Pagination `json:"pagination"`
}

type acceptResponse struct {
	DisplayRequest  DisplayRequest  `json:"displayRequest"`
	QuantityRequest QuantityRequest `json:"quantityRequest"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, page, err := h.service.List(r.Context(), actor(r), ListFilter{
		SupplierID:  q.Get("supplierId"),
		RequestedBy: q.Get("requestedBy"),
		Status:      Status(q.Get("status")),
		Page:        httpx.QueryInt(r, "page", 1),
		PerPage:     httpx.QueryInt(r, "perPage", 20),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []QuantityRequest{}
	}
	httpx.JSON(w, http.StatusOK, quantityList{Requests: out, Pagination: page})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Create(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	status := http.StatusCreated
	if req.MergeCount > 0 {
		status = http.StatusOK
	}
	httpx.JSON(w, status, req)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var input RespondInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Respond(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "respond", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Cancel(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "cancel", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleListDisplay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, page, err := h.service.ListDisplayRequests(r.Context(), actor(r), DisplayFilter{
		SupplierID: q.Get("supplierId"),
		Status:     DisplayStatus(q.Get("status")),
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "perPage", 20),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []DisplayRequest{}
	}
	httpx.JSON(w, http.StatusOK, displayList{Requests: out, Pagination: page})
}

func (h *Handler) handleCreateDisplay(w http.ResponseWriter, r *http.Request) {
	var input DisplayInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.CreateDisplayRequest(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, "create display", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDisplayRequest(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	var input DecisionInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, q, err := h.service.AcceptDisplayRequest(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "accept display", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acceptResponse{DisplayRequest: d, QuantityRequest: q})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var input DecisionInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.RejectDisplayRequest(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "reject display", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("requests "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func actor(r *http.Request) shared.Actor {
	a, _ := shared.ActorFromContext(r.Context())
	return a
}

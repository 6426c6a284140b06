package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/supplyhub/supplyhub/internal/platform/httpx"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes. Callers must authenticate first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Post("/adjustments", h.handleAdjust)
		r.Get("/movements", h.handleMovements)
		r.Put("/details", h.handleDetails)
		r.Post("/publish", h.handlePublish)
		r.Post("/unpublish", h.handleUnpublish)
		r.Post("/discontinue", h.handleDiscontinue)
	})
}

// MountCatalog registers the customer catalog.
func (h *Handler) MountCatalog(r chi.Router) {
	r.Get("/", h.handleCatalog)
}

type adjustmentRequest struct {
	Type     MovementType `json:"type" validate:"required,oneof=in out adjustment"`
	Quantity int          `json:"quantity" validate:"gte=0"`
	Reason   string       `json:"reason" validate:"required,max=255"`
	Notes    string       `json:"notes"`
}

type adjustmentResponse struct {
	Item     Item     `json:"item"`
	Movement Movement `json:"movement"`
}

type listResponse struct {
	Items      []Item            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		SupplierID: q.Get("supplierId"),
		Status:     Status(q.Get("status")),
		Published:  httpx.QueryBool(r, "published"),
		Category:   q.Get("category"),
		Search:     strings.TrimSpace(q.Get("q")),
		Page:       httpx.QueryInt(r, "page", 1),
		PerPage:    httpx.QueryInt(r, "perPage", 20),
	}
	items, page, err := h.service.ListItems(r.Context(), actor(r), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: page})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateItemInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), actor(r), input)
	if err != nil {
		h.fail(w, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var input UpdateItemInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, mv, err := h.service.AdjustStock(r.Context(), actor(r), AdjustInput{
		ItemID:   chi.URLParam(r, "id"),
		Quantity: req.Quantity,
		Type:     req.Type,
		Reason:   req.Reason,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adjustmentResponse{Item: item, Movement: mv})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	id := chi.URLParam(r, "id")
	if !a.IsStaff() {
		// suppliers may read the ledger of their own items
		item, err := h.service.GetItem(r.Context(), a, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if !a.ActsForSupplier(item.SupplierID) {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
	}
	movements, err := h.service.Movements(r.Context(), id, httpx.QueryInt(r, "limit", 100))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	var input DetailsInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.SaveDetails(r.Context(), actor(r), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "save details", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "publish", h.service.Publish)
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "unpublish", h.service.Unpublish)
}

func (h *Handler) handleDiscontinue(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "discontinue", h.service.Discontinue)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, shared.Actor, string) (Item, error)) {
	item, err := fn(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.Catalog(r.Context(), CatalogFilter{
		Category: q.Get("category"),
		Search:   strings.TrimSpace(q.Get("q")),
		Page:     httpx.QueryInt(r, "page", 1),
		PerPage:  httpx.QueryInt(r, "perPage", 20),
	})
	if err != nil {
		h.fail(w, "catalog", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("inventory "+op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func actor(r *http.Request) shared.Actor {
	a, _ := shared.ActorFromContext(r.Context())
	return a
}

package directory

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supplyhub/supplyhub/internal/platform/httpx"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// Handler exposes directory lookups.
type Handler struct {
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers directory routes. Callers must authenticate first.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.handleSuppliers)
	r.Get("/suppliers/{id}", h.handleSupplier)
	r.Get("/suppliers/{id}/products", h.handleSupplierProducts)
	r.Post("/products", h.handleCreateProduct)
	r.Get("/products/{id}", h.handleProduct)
	r.Get("/users/{id}", h.handleUser)
}

func (h *Handler) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Suppliers(r.Context())
	respond(w, out, err)
}

func (h *Handler) handleSupplier(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Supplier(r.Context(), chi.URLParam(r, "id"))
	respond(w, out, err)
}

func (h *Handler) handleSupplierProducts(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.SupplierProducts(r.Context(), chi.URLParam(r, "id"))
	respond(w, out, err)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Product(r.Context(), chi.URLParam(r, "id"))
	respond(w, out, err)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httpx.Bind(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	p, err := h.service.CreateProduct(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if !actor.IsStaff() && actor.ID != id {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	out, err := h.service.User(r.Context(), id)
	respond(w, out, err)
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

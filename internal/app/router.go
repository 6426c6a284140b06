package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supplyhub/supplyhub/internal/audit"
	"github.com/supplyhub/supplyhub/internal/auth"
	"github.com/supplyhub/supplyhub/internal/dashboard"
	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/events"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/observability"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/platform/httpx"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	InventoryHandler *inventory.Handler
	OrdersHandler    *orders.Handler
	RequestsHandler  *requests.Handler
	DirectoryHandler *directory.Handler
	DashboardHandler *dashboard.Handler
	AuditHandler     *audit.Handler
	EventsHandler    *events.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	Ready            func(*http.Request) error
}

// NewRouter constructs the chi.Router with SupplyHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("readiness", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/catalog", params.InventoryHandler.MountCatalog)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthHandler.Middleware().Authenticate)
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
			r.Route("/orders", params.OrdersHandler.MountRoutes)
			r.Route("/quantity-requests", params.RequestsHandler.MountQuantityRoutes)
			r.Route("/display-requests", params.RequestsHandler.MountDisplayRoutes)
			r.Route("/directory", params.DirectoryHandler.MountRoutes)
			if params.DashboardHandler != nil {
				r.Route("/dashboard", params.DashboardHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Group(func(r chi.Router) {
					r.Use(auth.RequireRole(shared.RoleAdmin))
					r.Route("/audit", params.AuditHandler.MountRoutes)
				})
			}
			if params.EventsHandler != nil {
				r.Group(func(r chi.Router) {
					r.Use(auth.RequireStaff())
					r.Route("/events", params.EventsHandler.MountRoutes)
				})
			}
		})
	})

	return r
}

package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/supplyhub/supplyhub/internal/audit"
	"github.com/supplyhub/supplyhub/internal/auth"
	"github.com/supplyhub/supplyhub/internal/dashboard"
	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/events"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/notify"
	"github.com/supplyhub/supplyhub/internal/observability"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/platform/cache"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/jobs"
)

// Deps are the external resources the services are built on.
type Deps struct {
	Config    *Config
	Logger    *slog.Logger
	Backend   *Backend
	Redis     *redis.Client
	Bus       events.Bus
	Queue     notify.Queue
	Inspector jobs.QueueInspector
	Metrics   *observability.Metrics
}

// Services holds the wired domain services.
type Services struct {
	Auth      *auth.Service
	Inventory *inventory.Service
	Orders    *orders.Service
	Requests  *requests.Service
	Directory *directory.Service
	Dashboard *dashboard.Service
	Audit     *audit.Service
	Notifier  *notify.Notifier
}

// NewServices wires the domain services over deps.
func NewServices(deps Deps) *Services {
	cfg, logger, backend := deps.Config, deps.Logger, deps.Backend
	domain := deps.Metrics.Domain()

	dir := directory.NewService(backend.Directory)
	var notifier *notify.Notifier
	if deps.Queue != nil {
		notifier = notify.New(dir, deps.Queue, logger)
	}

	inv := inventory.NewService(backend.Inventory, inventory.ServiceConfig{
		Audit:   backend.Audit,
		Events:  deps.Bus,
		Catalog: cache.NewVersioned(deps.Redis, "catalog", cfg.CatalogTTL),
		Metrics: domain,
		Logger:  logger,
	})
	ordersCfg := orders.ServiceConfig{
		Audit:       backend.Audit,
		Idempotency: backend.Idempotency,
		Events:      deps.Bus,
		Inventory:   inv,
		Metrics:     domain,
		Logger:      logger,
	}
	requestsCfg := requests.ServiceConfig{
		Audit:     backend.Audit,
		Events:    deps.Bus,
		Inventory: inv,
		Metrics:   domain,
		Logger:    logger,
	}
	if notifier != nil {
		ordersCfg.Notifier = notifier
		requestsCfg.Notifier = notifier
	}

	return &Services{
		Auth:      auth.NewService(backend.Users, auth.NewSessionStore(deps.Redis, cfg.SessionTTL)),
		Inventory: inv,
		Orders:    orders.NewService(backend.Orders, ordersCfg),
		Requests:  requests.NewService(backend.Requests, dir, requestsCfg),
		Directory: dir,
		Dashboard: dashboard.NewService(backend.Inventory, backend.Orders, backend.Requests),
		Audit:     audit.NewService(backend.AuditTrail),
		Notifier:  notifier,
	}
}

// NewAPI builds the HTTP handler for the API server.
func NewAPI(deps Deps, svc *Services) http.Handler {
	logger := deps.Logger
	params := RouterParams{
		Logger:           logger,
		Config:           deps.Config,
		AuthHandler:      auth.NewHandler(logger, svc.Auth, deps.Config.IsProduction()),
		InventoryHandler: inventory.NewHandler(logger, svc.Inventory),
		OrdersHandler:    orders.NewHandler(logger, svc.Orders),
		RequestsHandler:  requests.NewHandler(logger, svc.Requests),
		DirectoryHandler: directory.NewHandler(svc.Directory),
		DashboardHandler: dashboard.NewHandler(logger, svc.Dashboard),
		AuditHandler:     audit.NewHandler(logger, svc.Audit),
		Metrics:          deps.Metrics,
		Ready: func(r *http.Request) error {
			if err := deps.Backend.Ping(r.Context()); err != nil {
				return err
			}
			return deps.Redis.Ping(r.Context()).Err()
		},
	}
	if deps.Bus != nil {
		params.EventsHandler = events.NewHandler(deps.Bus, logger)
	}
	if deps.Inspector != nil {
		params.JobHandler = jobs.NewHandler(deps.Inspector, logger)
	}
	return NewRouter(params)
}

// Bootstrap seeds the store with the configured admin account when it has
// none yet.
func Bootstrap(ctx context.Context, cfg *Config, backend *Backend, logger *slog.Logger) error {
	if backend.Memory == nil || cfg.SeedAdminPassword == "" {
		return nil
	}
	if _, err := backend.Users.FindByEmail(ctx, cfg.SeedAdminEmail); err == nil {
		return nil
	}
	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	if err := backend.Memory.PutUser(ctx, auth.User{
		ID:           "admin",
		Name:         "Administrator",
		Email:        cfg.SeedAdminEmail,
		PasswordHash: hash,
		Role:         shared.RoleAdmin,
		IsActive:     true,
	}); err != nil {
		return err
	}
	logger.Info("seeded admin account", slog.String("email", cfg.SeedAdminEmail))
	return nil
}

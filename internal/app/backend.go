package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplyhub/supplyhub/internal/audit"
	"github.com/supplyhub/supplyhub/internal/auth"
	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/platform/db"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/internal/store/memory"
)

// Backend bundles the persistence ports for the selected store driver.
type Backend struct {
	Inventory   inventory.RepositoryPort
	Orders      orders.RepositoryPort
	Requests    requests.RepositoryPort
	Directory   directory.Repository
	Users       auth.Repository
	Audit       shared.AuditRecorder
	AuditTrail  audit.Repository
	Idempotency IdempotencyStore

	// Memory is set when the in-process store is active.
	Memory *memory.Store

	ping  func(context.Context) error
	close func()
}

// IdempotencyStore is implemented by both the postgres and memory stores.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// OpenBackend connects the store named by cfg.StoreDriver.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	if cfg.StoreDriver == StoreMemory {
		logger.Warn("using the in-memory store; data is lost on restart")
		return MemoryBackend(memory.New()), nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour, ConnectTimeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	return PostgresBackend(pool), nil
}

// MemoryBackend exposes store through the repository ports.
func MemoryBackend(store *memory.Store) *Backend {
	return &Backend{
		Inventory:   store.Inventory(),
		Orders:      store.Orders(),
		Requests:    store.Requests(),
		Directory:   store,
		Users:       store,
		Audit:       store,
		AuditTrail:  store.Audit(),
		Idempotency: store,
		Memory:      store,
		ping:        func(context.Context) error { return nil },
		close:       func() {},
	}
}

// PostgresBackend exposes pool through the repository ports.
func PostgresBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{
		Inventory:   inventory.NewRepository(pool),
		Orders:      orders.NewRepository(pool),
		Requests:    requests.NewRepository(pool),
		Directory:   directory.NewRepository(pool),
		Users:       auth.NewRepository(pool),
		Audit:       shared.NewAuditLogger(pool),
		AuditTrail:  audit.NewRepository(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
		ping:        pool.Ping,
		close:       pool.Close,
	}
}

// Ping checks store connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases store resources.
func (b *Backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}

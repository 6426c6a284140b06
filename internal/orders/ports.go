package orders

import (
	"context"

	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// TxRepository extends the ledger's transactional view with order rows.
type TxRepository interface {
	inventory.TxRepository
	GetOrderForUpdate(ctx context.Context, id string) (Order, error)
	InsertOrder(ctx context.Context, order Order) error
	UpdateOrder(ctx context.Context, order Order) error
	DeleteOrder(ctx context.Context, id string) error
}

// RepositoryPort abstracts order persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards order creation against client retries.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StockObserver receives ledger changes after commit.
type StockObserver interface {
	StockChanged(ctx context.Context, actor shared.Actor, action string, items []inventory.Item, movements []inventory.Movement)
}

// Notifier informs order owners about status changes.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, order Order)
}

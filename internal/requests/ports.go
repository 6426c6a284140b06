package requests

import (
	"context"

	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// TxRepository extends the ledger's transactional view with request rows.
type TxRepository interface {
	inventory.TxRepository
	// FindPendingQuantityRequest locks the pending request of a product and
	// supplier pair, if any.
	FindPendingQuantityRequest(ctx context.Context, productID, supplierID string) (QuantityRequest, bool, error)
	GetQuantityRequestForUpdate(ctx context.Context, id string) (QuantityRequest, error)
	InsertQuantityRequest(ctx context.Context, q QuantityRequest) error
	UpdateQuantityRequest(ctx context.Context, q QuantityRequest) error
	DeleteQuantityRequest(ctx context.Context, id string) error
	GetDisplayRequestForUpdate(ctx context.Context, id string) (DisplayRequest, error)
	InsertDisplayRequest(ctx context.Context, d DisplayRequest) error
	UpdateDisplayRequest(ctx context.Context, d DisplayRequest) error
}

// RepositoryPort abstracts request persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetQuantityRequest(ctx context.Context, id string) (QuantityRequest, error)
	ListQuantityRequests(ctx context.Context, filter ListFilter) ([]QuantityRequest, int, error)
	GetDisplayRequest(ctx context.Context, id string) (DisplayRequest, error)
	ListDisplayRequests(ctx context.Context, filter DisplayFilter) ([]DisplayRequest, int, error)
}

// Directory resolves supplier products and suppliers.
type Directory interface {
	Product(ctx context.Context, id string) (directory.Product, error)
	Supplier(ctx context.Context, id string) (directory.Supplier, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockObserver receives ledger changes after commit.
type StockObserver interface {
	StockChanged(ctx context.Context, actor shared.Actor, action string, items []inventory.Item, movements []inventory.Movement)
}

// Notifier sends request related notifications. Implementations must not
// block on delivery.
type Notifier interface {
	QuantityRequestCreated(ctx context.Context, q QuantityRequest)
	QuantityRequestMerged(ctx context.Context, q QuantityRequest, previousRequester, newRequester string, added int)
	QuantityRequestResponded(ctx context.Context, q QuantityRequest)
	DisplayRequestDecided(ctx context.Context, d DisplayRequest)
}

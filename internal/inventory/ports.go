package inventory

import (
	"context"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// TxRepository exposes the row level operations the ledger needs inside a
// transaction. Reads lock the rows they return until commit.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id string) (Item, error)
	ListSupplierItemsForUpdate(ctx context.Context, supplierID string) ([]Item, error)
	InsertItem(ctx context.Context, item Item) error
	SaveItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id string) error
	InsertMovement(ctx context.Context, m Movement) error
	CountPendingRequests(ctx context.Context, productID, supplierID string) (int, error)
	CountOpenOrders(ctx context.Context, itemID string) (int, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error)
	ListMovements(ctx context.Context, itemID string, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CatalogCache caches the published catalog.
type CatalogCache interface {
	Key(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

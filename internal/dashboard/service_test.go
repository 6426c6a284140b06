package dashboard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/dashboard"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/internal/store/memory"
)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	now := time.Now().UTC()
	items := []inventory.Item{
		{ID: "i1", Name: "Lamp", Quantity: 10, MinStockLevel: 2, SupplierID: "sup-1", Status: inventory.StatusInStock, CreatedAt: now},
		{ID: "i2", Name: "Desk", Quantity: 1, MinStockLevel: 2, SupplierID: "sup-1", Status: inventory.StatusLowStock, CreatedAt: now},
		{ID: "i3", Name: "Chair", Quantity: 0, SupplierID: "sup-2", Status: inventory.StatusOutOfStock, CreatedAt: now},
	}
	require.NoError(t, store.Inventory().WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		for _, it := range items {
			if err := tx.InsertItem(ctx, it); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, store.Orders().WithTx(ctx, func(ctx context.Context, tx orders.TxRepository) error {
		if err := tx.InsertOrder(ctx, orders.Order{ID: "o1", OrderNumber: "ORD-1", UserID: "u1", Status: orders.StatusPending, CreatedAt: now}); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, orders.Order{ID: "o2", OrderNumber: "ORD-2", UserID: "u2", Status: orders.StatusShipped, CreatedAt: now})
	}))
	require.NoError(t, store.Requests().WithTx(ctx, func(ctx context.Context, tx requests.TxRepository) error {
		if err := tx.InsertQuantityRequest(ctx, requests.QuantityRequest{ID: "q1", ProductID: "p1", SupplierID: "sup-1", RequestedQuantity: 3, Status: requests.StatusPending, CreatedAt: now}); err != nil {
			return err
		}
		return tx.InsertQuantityRequest(ctx, requests.QuantityRequest{ID: "q2", ProductID: "p2", SupplierID: "sup-2", RequestedQuantity: 3, Status: requests.StatusPending, CreatedAt: now})
	}))
	return store
}

func TestSummaryScopes(t *testing.T) {
	store := seed(t)
	svc := dashboard.NewService(store.Inventory(), store.Orders(), store.Requests())
	ctx := context.Background()

	staff, err := svc.Summary(ctx, shared.Actor{ID: "a", Role: shared.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, 1, staff.Inventory["low_stock"])
	require.Equal(t, 1, staff.Inventory["out_of_stock"])
	require.Equal(t, 2, staff.QuantityRequests["pending"])
	require.Equal(t, 1, staff.Orders["shipped"])

	sup, err := svc.Summary(ctx, shared.Actor{ID: "s", Role: shared.RoleSupplier, SupplierID: "sup-1"})
	require.NoError(t, err)
	require.Equal(t, 0, sup.Inventory["out_of_stock"])
	require.Equal(t, 1, sup.QuantityRequests["pending"])
	require.Nil(t, sup.Orders)

	customer, err := svc.Summary(ctx, shared.Actor{ID: "u1", Role: shared.RoleUser})
	require.NoError(t, err)
	require.Equal(t, 1, customer.Orders["pending"])
	require.Equal(t, 0, customer.Orders["shipped"])
	require.Nil(t, customer.Inventory)

	_, err = svc.Summary(ctx, shared.Actor{})
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

type brokenOrders struct{}

func (brokenOrders) ListOrders(context.Context, orders.ListFilter) ([]orders.Order, int, error) {
	return nil, 0, errors.New("db down")
}

func TestSummaryFailsWhenAnyCountFails(t *testing.T) {
	store := seed(t)
	svc := dashboard.NewService(store.Inventory(), brokenOrders{}, store.Requests())
	_, err := svc.Summary(context.Background(), shared.Actor{ID: "a", Role: shared.RoleAdmin})
	require.ErrorContains(t, err, "db down")
}

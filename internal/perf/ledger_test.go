// Package perf holds load-style tests for the reservation ledger and job
// instrumentation. They run against the in-memory store.
package perf

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/internal/store/memory"
)

var warehouse = shared.Actor{ID: "wh-1", Role: shared.RoleWarehouse}

func setup(tb testing.TB, stock int) (*memory.Store, *orders.Service) {
	tb.Helper()
	store := memory.New()
	inv := inventory.NewService(store.Inventory(), inventory.ServiceConfig{Audit: store})
	svc := orders.NewService(store.Orders(), orders.ServiceConfig{Audit: store, Idempotency: store, Inventory: inv})
	err := store.Inventory().WithTx(context.Background(), func(ctx context.Context, tx inventory.TxRepository) error {
		return tx.InsertItem(ctx, inventory.Item{
			ID: "hot", Name: "Hot item", Quantity: stock, MinStockLevel: 1, UnitPrice: 9.5,
			SupplierID: "sup-1", DetailsSaved: true, IsPublished: true,
			Status: inventory.DeriveStatus(stock, 1), CreatedAt: time.Now(),
		})
	})
	if err != nil {
		tb.Fatalf("seed item: %v", err)
	}
	return store, svc
}

func TestConcurrentCheckoutNeverOversells(t *testing.T) {
	store, svc := setup(t, 30)

	var placed, rejected atomic.Int32
	var g errgroup.Group
	for i := range 20 {
		buyer := shared.Actor{ID: fmt.Sprintf("user-%d", i), Role: shared.RoleUser}
		g.Go(func() error {
			_, err := svc.Create(context.Background(), buyer, orders.CreateInput{
				Items: []orders.LineInput{{ProductID: "hot", Quantity: 3}},
			})
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 10, placed.Load())
	require.EqualValues(t, 10, rejected.Load())

	item, err := store.Inventory().GetItem(context.Background(), "hot")
	require.NoError(t, err)
	require.Equal(t, 30, item.ReservedQuantity)
	require.Equal(t, 30, item.Quantity)
}

func TestConcurrentCancelReleasesEverything(t *testing.T) {
	store, svc := setup(t, 50)
	ctx := context.Background()

	ids := make([]string, 0, 10)
	for i := range 10 {
		o, err := svc.Create(ctx, shared.Actor{ID: fmt.Sprintf("user-%d", i), Role: shared.RoleUser}, orders.CreateInput{
			Items: []orders.LineInput{{ProductID: "hot", Quantity: 5}},
		})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := svc.UpdateStatus(ctx, warehouse, id, orders.StatusInput{Status: orders.StatusCancelled, Reason: "load test"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	item, err := store.Inventory().GetItem(ctx, "hot")
	require.NoError(t, err)
	require.Zero(t, item.ReservedQuantity)
	require.Equal(t, 50, item.Quantity)
}

func BenchmarkCheckoutAndDelete(b *testing.B) {
	_, svc := setup(b, 1_000_000)
	ctx := context.Background()
	buyer := shared.Actor{ID: "user-1", Role: shared.RoleUser}
	b.ReportAllocs()
	for b.Loop() {
		o, err := svc.Create(ctx, buyer, orders.CreateInput{Items: []orders.LineInput{{ProductID: "hot", Quantity: 1}}})
		if err != nil {
			b.Fatal(err)
		}
		if err := svc.Delete(ctx, buyer, o.ID); err != nil {
			b.Fatal(err)
		}
	}
}

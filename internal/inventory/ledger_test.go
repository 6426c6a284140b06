package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/internal/store/memory"
)

func seedItem(t *testing.T, repo inventory.RepositoryPort, item inventory.Item) inventory.Item {
	t.Helper()
	if item.ID == "" {
		item.ID = "item-" + item.Name
	}
	if item.SupplierID == "" {
		item.SupplierID = "sup-1"
	}
	if item.Status == "" {
		item.Status = inventory.DeriveStatus(item.Quantity, item.MinStockLevel)
	}
	item.CreatedAt = time.Now().UTC()
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx inventory.TxRepository) error {
		return tx.InsertItem(ctx, item)
	})
	require.NoError(t, err)
	return item
}

func inTx[T any](t *testing.T, repo inventory.RepositoryPort, fn func(context.Context, inventory.TxRepository) (T, error)) (T, error) {
	t.Helper()
	var out T
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx inventory.TxRepository) error {
		var err error
		out, err = fn(ctx, tx)
		return err
	})
	return out, err
}

func reserve(t *testing.T, repo inventory.RepositoryPort, id string, qty int) error {
	t.Helper()
	_, err := inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
		return inventory.ReserveStock(ctx, tx, inventory.ReservationInput{ItemID: id, Quantity: qty, Actor: "tester"})
	})
	return err
}

func current(t *testing.T, repo inventory.RepositoryPort, id string) inventory.Item {
	t.Helper()
	item, err := repo.GetItem(context.Background(), id)
	require.NoError(t, err)
	require.GreaterOrEqual(t, item.Quantity, 0)
	require.GreaterOrEqual(t, item.ReservedQuantity, 0)
	require.LessOrEqual(t, item.ReservedQuantity, item.Quantity)
	return item
}

func TestLedgerWorkedExample(t *testing.T) {
	repo := memory.New().Inventory()
	item := seedItem(t, repo, inventory.Item{Name: "widget", Quantity: 10, MinStockLevel: 3})

	require.NoError(t, reserve(t, repo, item.ID, 4))
	got := current(t, repo, item.ID)
	require.Equal(t, 4, got.ReservedQuantity)
	require.Equal(t, 6, got.Available())
	require.Equal(t, inventory.StatusInStock, got.Status)

	_, err := inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
		item, _, err := inventory.ConfirmStockDeduction(ctx, tx, inventory.ReservationInput{ItemID: item.ID, Quantity: 4, Reference: "ORD-1"})
		return item, err
	})
	require.NoError(t, err)
	got = current(t, repo, item.ID)
	require.Equal(t, 6, got.Quantity)
	require.Equal(t, 0, got.ReservedQuantity)
	require.Equal(t, inventory.StatusInStock, got.Status)

	_, err = inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
		item, _, err := inventory.AdjustStock(ctx, tx, inventory.AdjustInput{ItemID: item.ID, Quantity: 5, Type: inventory.MovementOut, Reason: "damaged"})
		return item, err
	})
	require.NoError(t, err)
	got = current(t, repo, item.ID)
	require.Equal(t, 1, got.Quantity)
	require.Equal(t, inventory.StatusLowStock, got.Status)

	err = reserve(t, repo, item.ID, 2)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 0, current(t, repo, item.ID).ReservedQuantity)

	movements, err := repo.ListMovements(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, inventory.MovementOut, movements[0].Type)
	require.Equal(t, "damaged", movements[0].Reason)
	require.Equal(t, "Order fulfilment ORD-1", movements[1].Reason)
}

func TestReserveRejectsPartialReservation(t *testing.T) {
	repo := memory.New().Inventory()
	item := seedItem(t, repo, inventory.Item{Name: "bolt", Quantity: 5, ReservedQuantity: 3, MinStockLevel: 1})

	require.ErrorIs(t, reserve(t, repo, item.ID, 3), shared.ErrInsufficientStock)
	require.Equal(t, 3, current(t, repo, item.ID).ReservedQuantity)

	require.NoError(t, reserve(t, repo, item.ID, 2))
	require.Equal(t, 5, current(t, repo, item.ID).ReservedQuantity)

	require.ErrorIs(t, reserve(t, repo, item.ID, 0), shared.ErrValidation)
	require.ErrorIs(t, reserve(t, repo, "missing", 1), shared.ErrNotFound)
}

func TestReleaseUnderflowIsInvariantViolation(t *testing.T) {
	repo := memory.New().Inventory()
	item := seedItem(t, repo, inventory.Item{Name: "nut", Quantity: 5, ReservedQuantity: 2})

	_, err := inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
		return inventory.ReleaseReservation(ctx, tx, inventory.ReservationInput{ItemID: item.ID, Quantity: 3})
	})
	require.ErrorIs(t, err, shared.ErrInvariantViolation)
	require.Equal(t, 2, current(t, repo, item.ID).ReservedQuantity)

	released, err := inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
		return inventory.ReleaseReservation(ctx, tx, inventory.ReservationInput{ItemID: item.ID, Quantity: 2})
	})
	require.NoError(t, err)
	require.Equal(t, 0, released.ReservedQuantity)
	require.Equal(t, 5, released.Quantity)
}

func TestAdjustStockGuards(t *testing.T) {
	repo := memory.New().Inventory()
	item := seedItem(t, repo, inventory.Item{Name: "gear", Quantity: 8, ReservedQuantity: 4, MinStockLevel: 2})

	adjust := func(in inventory.AdjustInput) (inventory.Item, error) {
		in.ItemID = item.ID
		return inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
			item, _, err := inventory.AdjustStock(ctx, tx, in)
			return item, err
		})
	}

	_, err := adjust(inventory.AdjustInput{Quantity: 9, Type: inventory.MovementOut, Reason: "loss"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	_, err = adjust(inventory.AdjustInput{Quantity: 5, Type: inventory.MovementOut, Reason: "loss"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock, "cannot drop below reserved units")
	_, err = adjust(inventory.AdjustInput{Quantity: 3, Type: inventory.MovementAdjustment, Reason: "count"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	_, err = adjust(inventory.AdjustInput{Quantity: 1, Type: inventory.MovementIn})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = adjust(inventory.AdjustInput{Quantity: 1, Type: "transfer", Reason: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 8, current(t, repo, item.ID).Quantity)

	got, err := adjust(inventory.AdjustInput{Quantity: 4, Type: inventory.MovementAdjustment, Reason: "count"})
	require.NoError(t, err)
	require.Equal(t, 4, got.Quantity)
	require.Equal(t, inventory.StatusInStock, got.Status)

	got, err = adjust(inventory.AdjustInput{Quantity: 10, Type: inventory.MovementIn, Reason: "delivery"})
	require.NoError(t, err)
	require.Equal(t, 14, got.Quantity)
}

func TestDiscontinuedSurvivesQuantityChanges(t *testing.T) {
	repo := memory.New().Inventory()
	item := seedItem(t, repo, inventory.Item{Name: "legacy", Quantity: 2, MinStockLevel: 1, Status: inventory.StatusDiscontinued})

	got, err := inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (inventory.Item, error) {
		item, _, err := inventory.AdjustStock(ctx, tx, inventory.AdjustInput{ItemID: item.ID, Quantity: 20, Type: inventory.MovementIn, Reason: "return"})
		return item, err
	})
	require.NoError(t, err)
	require.Equal(t, inventory.StatusDiscontinued, got.Status)
	require.ErrorIs(t, reserve(t, repo, item.ID, 1), shared.ErrInsufficientStock)
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		qty, min int
		want     inventory.Status
	}{
		{0, 3, inventory.StatusOutOfStock},
		{-1, 0, inventory.StatusOutOfStock},
		{3, 3, inventory.StatusLowStock},
		{1, 3, inventory.StatusLowStock},
		{4, 3, inventory.StatusInStock},
		{1, 0, inventory.StatusInStock},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, inventory.DeriveStatus(tc.qty, tc.min), "qty=%d min=%d", tc.qty, tc.min)
	}
}

func TestReceiveSupplyCreatesThenRestocks(t *testing.T) {
	repo := memory.New().Inventory()
	supply := inventory.SupplyInput{
		ProductID:    "prod-1",
		Name:         "Café Lamp",
		SKU:          "LMP-1",
		Category:     "lighting",
		SupplierID:   "sup-1",
		SupplierName: "Lumen",
		UnitPrice:    12.5,
		Quantity:     25,
		Actor:        "supplier-user",
	}
	type result struct {
		item    inventory.Item
		created bool
	}
	receive := func(in inventory.SupplyInput) result {
		res, err := inTx(t, repo, func(ctx context.Context, tx inventory.TxRepository) (result, error) {
			item, _, created, err := inventory.ReceiveSupply(ctx, tx, in)
			return result{item, created}, err
		})
		require.NoError(t, err)
		return res
	}

	first := receive(supply)
	require.True(t, first.created)
	require.Equal(t, 25, first.item.Quantity)
	require.Equal(t, 2, first.item.MinStockLevel)
	require.Equal(t, 50, first.item.MaxStockLevel)
	require.False(t, first.item.IsPublished)
	require.Equal(t, "Lumen", first.item.SupplierName)

	again := supply
	again.Name = "  CAFÉ LAMP "
	again.Quantity = 5
	second := receive(again)
	require.False(t, second.created)
	require.Equal(t, first.item.ID, second.item.ID)
	require.Equal(t, 30, second.item.Quantity)

	otherSKU := supply
	otherSKU.SKU = "LMP-2"
	otherSKU.Quantity = 3
	third := receive(otherSKU)
	require.True(t, third.created)
	require.Equal(t, 1, third.item.MinStockLevel)

	otherSupplier := supply
	otherSupplier.SupplierID = "sup-2"
	require.True(t, receive(otherSupplier).created)

	movements, err := repo.ListMovements(context.Background(), first.item.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, mv := range movements {
		require.Equal(t, inventory.MovementIn, mv.Type)
		require.Equal(t, inventory.ReasonSupplyReplenishment, mv.Reason)
	}
}

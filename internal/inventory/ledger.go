package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/supplyhub/supplyhub/internal/shared"
)

var now = func() time.Time { return time.Now().UTC() }

// AdjustInput describes a stock movement.
type AdjustInput struct {
	ItemID   string
	Quantity int
	Type     MovementType
	Reason   string
	Actor    string
	Notes    string
}

// ReservationInput describes a reservation change for an order line.
type ReservationInput struct {
	ItemID    string
	Quantity  int
	Actor     string
	Reference string
}

// SupplyInput describes approved supplier stock to be received.
type SupplyInput struct {
	ProductID    string
	Name         string
	SKU          string
	Category     string
	Description  string
	SupplierID   string
	SupplierName string
	UnitPrice    float64
	Quantity     int
	Actor        string
	Notes        string
}

// AdjustStock applies an in, out or absolute adjustment and records the
// movement in the same transaction.
func AdjustStock(ctx context.Context, tx TxRepository, in AdjustInput) (Item, Movement, error) {
	if in.ItemID == "" {
		return Item{}, Movement{}, fmt.Errorf("inventory: %w: item id required", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return Item{}, Movement{}, fmt.Errorf("inventory: %w: unknown movement type %q", shared.ErrValidation, in.Type)
	}
	if in.Quantity < 0 || (in.Quantity == 0 && in.Type != MovementAdjustment) {
		return Item{}, Movement{}, fmt.Errorf("inventory: %w: quantity must be positive", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Item{}, Movement{}, fmt.Errorf("inventory: %w: reason required", shared.ErrValidation)
	}
	item, err := tx.GetItemForUpdate(ctx, in.ItemID)
	if err != nil {
		return Item{}, Movement{}, err
	}

	var next int
	switch in.Type {
	case MovementIn:
		next = item.Quantity + in.Quantity
	case MovementOut:
		next = item.Quantity - in.Quantity
		if next < 0 {
			return Item{}, Movement{}, fmt.Errorf("inventory: remove %d from %s with %d on hand: %w", in.Quantity, item.ID, item.Quantity, shared.ErrInsufficientStock)
		}
	case MovementAdjustment:
		next = in.Quantity
	}
	if next < item.ReservedQuantity {
		return Item{}, Movement{}, fmt.Errorf("inventory: quantity %d of %s would fall below %d reserved: %w", next, item.ID, item.ReservedQuantity, shared.ErrInsufficientStock)
	}

	at := now()
	item.Quantity = next
	item.refreshStatus()
	item.UpdatedAt = at
	if err := tx.SaveItem(ctx, item); err != nil {
		return Item{}, Movement{}, err
	}
	mv := Movement{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Actor:     in.Actor,
		Notes:     in.Notes,
		CreatedAt: at,
	}
	if err := tx.InsertMovement(ctx, mv); err != nil {
		return Item{}, Movement{}, err
	}
	return item, mv, nil
}

// ReserveStock holds qty units against an order. Nothing is reserved when
// fewer than qty units are available.
func ReserveStock(ctx context.Context, tx TxRepository, in ReservationInput) (Item, error) {
	item, err := lockForReservation(ctx, tx, in)
	if err != nil {
		return Item{}, err
	}
	if item.Status == StatusDiscontinued {
		return Item{}, fmt.Errorf("inventory: %s is discontinued: %w", item.Name, shared.ErrInsufficientStock)
	}
	if avail := item.Available(); avail < in.Quantity {
		return Item{}, fmt.Errorf("inventory: reserve %d of %s with %d available: %w", in.Quantity, item.Name, avail, shared.ErrInsufficientStock)
	}
	item.ReservedQuantity += in.Quantity
	item.UpdatedAt = now()
	if err := tx.SaveItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ReleaseReservation returns qty reserved units to available stock.
// Releasing more than is reserved is an invariant violation.
func ReleaseReservation(ctx context.Context, tx TxRepository, in ReservationInput) (Item, error) {
	item, err := lockForReservation(ctx, tx, in)
	if err != nil {
		return Item{}, err
	}
	if item.ReservedQuantity < in.Quantity {
		return Item{}, fmt.Errorf("inventory: release %d of %s with %d reserved: %w", in.Quantity, item.ID, item.ReservedQuantity, shared.ErrInvariantViolation)
	}
	item.ReservedQuantity -= in.Quantity
	item.UpdatedAt = now()
	if err := tx.SaveItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ConfirmStockDeduction converts a reservation into a sale, lowering both
// quantity and reservation and recording an out movement.
func ConfirmStockDeduction(ctx context.Context, tx TxRepository, in ReservationInput) (Item, Movement, error) {
	item, err := lockForReservation(ctx, tx, in)
	if err != nil {
		return Item{}, Movement{}, err
	}
	if item.ReservedQuantity < in.Quantity || item.Quantity < in.Quantity {
		return Item{}, Movement{}, fmt.Errorf("inventory: confirm %d of %s with %d reserved: %w", in.Quantity, item.ID, item.ReservedQuantity, shared.ErrInvariantViolation)
	}
	at := now()
	item.Quantity -= in.Quantity
	item.ReservedQuantity -= in.Quantity
	item.refreshStatus()
	item.UpdatedAt = at
	if err := tx.SaveItem(ctx, item); err != nil {
		return Item{}, Movement{}, err
	}
	reason := "Order fulfilment"
	if in.Reference != "" {
		reason = "Order fulfilment " + in.Reference
	}
	mv := Movement{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		Type:      MovementOut,
		Quantity:  in.Quantity,
		Reason:    reason,
		Actor:     in.Actor,
		CreatedAt: at,
	}
	if err := tx.InsertMovement(ctx, mv); err != nil {
		return Item{}, Movement{}, err
	}
	return item, mv, nil
}

func lockForReservation(ctx context.Context, tx TxRepository, in ReservationInput) (Item, error) {
	if in.ItemID == "" {
		return Item{}, fmt.Errorf("inventory: %w: item id required", shared.ErrValidation)
	}
	if in.Quantity <= 0 {
		return Item{}, fmt.Errorf("inventory: %w: quantity must be positive", shared.ErrValidation)
	}
	return tx.GetItemForUpdate(ctx, in.ItemID)
}

// FindExistingItem looks for a supplier's item by case-insensitive name. When
// sku is given, a candidate with its own SKU must match it as well.
func FindExistingItem(ctx context.Context, tx TxRepository, name, supplierID, sku string) (Item, bool, error) {
	if strings.TrimSpace(name) == "" || supplierID == "" {
		return Item{}, false, nil
	}
	items, err := tx.ListSupplierItemsForUpdate(ctx, supplierID)
	if err != nil {
		return Item{}, false, err
	}
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for _, item := range items {
		if item.SupplierID != supplierID || fold.String(strings.TrimSpace(item.Name)) != want {
			continue
		}
		if sku != "" && item.SKU != "" && !strings.EqualFold(strings.TrimSpace(item.SKU), strings.TrimSpace(sku)) {
			continue
		}
		return item, true, nil
	}
	return Item{}, false, nil
}

// ReceiveSupply stocks in approved supplier units, restocking a matching
// item or creating an unpublished one. created reports which happened.
func ReceiveSupply(ctx context.Context, tx TxRepository, in SupplyInput) (item Item, mv Movement, created bool, err error) {
	if in.Quantity <= 0 {
		return Item{}, Movement{}, false, fmt.Errorf("inventory: %w: supply quantity must be positive", shared.ErrValidation)
	}
	existing, found, err := FindExistingItem(ctx, tx, in.Name, in.SupplierID, in.SKU)
	if err != nil {
		return Item{}, Movement{}, false, err
	}
	if found {
		item, mv, err = AdjustStock(ctx, tx, AdjustInput{
			ItemID:   existing.ID,
			Quantity: in.Quantity,
			Type:     MovementIn,
			Reason:   ReasonSupplyReplenishment,
			Actor:    in.Actor,
			Notes:    in.Notes,
		})
		return item, mv, false, err
	}

	at := now()
	item = Item{
		ID:            uuid.NewString(),
		ProductID:     in.ProductID,
		Name:          strings.TrimSpace(in.Name),
		SKU:           in.SKU,
		Category:      in.Category,
		Description:   in.Description,
		Quantity:      in.Quantity,
		MinStockLevel: max(1, in.Quantity/10),
		MaxStockLevel: in.Quantity * 2,
		UnitPrice:     in.UnitPrice,
		SupplierID:    in.SupplierID,
		SupplierName:  in.SupplierName,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	item.refreshStatus()
	if err := tx.InsertItem(ctx, item); err != nil {
		return Item{}, Movement{}, false, err
	}
	mv = Movement{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		Type:      MovementIn,
		Quantity:  in.Quantity,
		Reason:    ReasonSupplyReplenishment,
		Actor:     in.Actor,
		Notes:     in.Notes,
		CreatedAt: at,
	}
	if err := tx.InsertMovement(ctx, mv); err != nil {
		return Item{}, Movement{}, false, err
	}
	return item, mv, true, nil
}

package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// tx satisfies the inventory, orders and requests TxRepository interfaces
// over a working copy of the state.
type tx struct {
	st *state
}

func (t *tx) GetItemForUpdate(ctx context.Context, id string) (inventory.Item, error) {
	item, ok := t.st.items[id]
	if !ok {
		return inventory.Item{}, fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	return copyItem(item), nil
}

func (t *tx) ListSupplierItemsForUpdate(ctx context.Context, supplierID string) ([]inventory.Item, error) {
	var out []inventory.Item
	for _, item := range t.st.items {
		if item.SupplierID == supplierID {
			out = append(out, copyItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) InsertItem(ctx context.Context, item inventory.Item) error {
	if _, ok := t.st.items[item.ID]; ok {
		return fmt.Errorf("inventory: %w: item already exists", shared.ErrConflict)
	}
	t.st.items[item.ID] = copyItem(item)
	return nil
}

func (t *tx) SaveItem(ctx context.Context, item inventory.Item) error {
	if _, ok := t.st.items[item.ID]; !ok {
		return fmt.Errorf("inventory item %s: %w", item.ID, shared.ErrNotFound)
	}
	if item.Quantity < 0 || item.ReservedQuantity < 0 || item.ReservedQuantity > item.Quantity {
		return fmt.Errorf("inventory item %s: %w: quantity %d reserved %d", item.ID, shared.ErrInvariantViolation, item.Quantity, item.ReservedQuantity)
	}
	t.st.items[item.ID] = copyItem(item)
	return nil
}

func (t *tx) DeleteItem(ctx context.Context, id string) error {
	if _, ok := t.st.items[id]; !ok {
		return fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	delete(t.st.items, id)
	return nil
}

func (t *tx) InsertMovement(ctx context.Context, m inventory.Movement) error {
	t.st.movements = append(t.st.movements, m)
	return nil
}

func (t *tx) CountPendingRequests(ctx context.Context, productID, supplierID string) (int, error) {
	n := 0
	for _, q := range t.st.quantity {
		if q.ProductID == productID && q.SupplierID == supplierID && q.Status == requests.StatusPending {
			n++
		}
	}
	return n, nil
}

func (t *tx) CountOpenOrders(ctx context.Context, itemID string) (int, error) {
	n := 0
	for _, o := range t.st.orders {
		if !o.Status.Open() {
			continue
		}
		for _, line := range o.Items {
			if line.ProductID == itemID {
				n++
				break
			}
		}
	}
	return n, nil
}

func (t *tx) GetOrderForUpdate(ctx context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	return copyOrder(o), nil
}

func (t *tx) InsertOrder(ctx context.Context, o orders.Order) error {
	for _, other := range t.st.orders {
		if other.OrderNumber == o.OrderNumber {
			return fmt.Errorf("orders: %w: order number %s already used", shared.ErrConflict, o.OrderNumber)
		}
	}
	t.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *tx) UpdateOrder(ctx context.Context, o orders.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return fmt.Errorf("order %s: %w", o.ID, shared.ErrNotFound)
	}
	t.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *tx) DeleteOrder(ctx context.Context, id string) error {
	if _, ok := t.st.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	delete(t.st.orders, id)
	return nil
}

func (t *tx) FindPendingQuantityRequest(ctx context.Context, productID, supplierID string) (requests.QuantityRequest, bool, error) {
	for _, q := range t.st.quantity {
		if q.ProductID == productID && q.SupplierID == supplierID && q.Status == requests.StatusPending {
			return copyQuantity(q), true, nil
		}
	}
	return requests.QuantityRequest{}, false, nil
}

func (t *tx) GetQuantityRequestForUpdate(ctx context.Context, id string) (requests.QuantityRequest, error) {
	q, ok := t.st.quantity[id]
	if !ok {
		return requests.QuantityRequest{}, fmt.Errorf("quantity request %s: %w", id, shared.ErrNotFound)
	}
	return copyQuantity(q), nil
}

func (t *tx) InsertQuantityRequest(ctx context.Context, q requests.QuantityRequest) error {
	if q.Status == requests.StatusPending {
		if _, dup, _ := t.FindPendingQuantityRequest(ctx, q.ProductID, q.SupplierID); dup {
			return fmt.Errorf("requests: %w: a pending request already exists for %s", shared.ErrConflict, q.ProductName)
		}
	}
	t.st.quantity[q.ID] = copyQuantity(q)
	return nil
}

func (t *tx) UpdateQuantityRequest(ctx context.Context, q requests.QuantityRequest) error {
	if _, ok := t.st.quantity[q.ID]; !ok {
		return fmt.Errorf("quantity request %s: %w", q.ID, shared.ErrNotFound)
	}
	t.st.quantity[q.ID] = copyQuantity(q)
	return nil
}

func (t *tx) DeleteQuantityRequest(ctx context.Context, id string) error {
	if _, ok := t.st.quantity[id]; !ok {
		return fmt.Errorf("quantity request %s: %w", id, shared.ErrNotFound)
	}
	delete(t.st.quantity, id)
	return nil
}

func (t *tx) GetDisplayRequestForUpdate(ctx context.Context, id string) (requests.DisplayRequest, error) {
	d, ok := t.st.display[id]
	if !ok {
		return requests.DisplayRequest{}, fmt.Errorf("display request %s: %w", id, shared.ErrNotFound)
	}
	return d, nil
}

func (t *tx) InsertDisplayRequest(ctx context.Context, d requests.DisplayRequest) error {
	if _, ok := t.st.display[d.ID]; ok {
		return fmt.Errorf("requests: %w: display request %s exists", shared.ErrConflict, d.ID)
	}
	t.st.display[d.ID] = d
	return nil
}

func (t *tx) UpdateDisplayRequest(ctx context.Context, d requests.DisplayRequest) error {
	if _, ok := t.st.display[d.ID]; !ok {
		return fmt.Errorf("display request %s: %w", d.ID, shared.ErrNotFound)
	}
	t.st.display[d.ID] = d
	return nil
}

func copyItem(item inventory.Item) inventory.Item {
	item.Tags = slices.Clone(item.Tags)
	if item.SalePrice != nil {
		v := *item.SalePrice
		item.SalePrice = &v
	}
	return item
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func copyQuantity(q requests.QuantityRequest) requests.QuantityRequest {
	q.Contributors = slices.Clone(q.Contributors)
	if q.ApprovedQuantity != nil {
		v := *q.ApprovedQuantity
		q.ApprovedQuantity = &v
	}
	if q.RespondedAt != nil {
		v := *q.RespondedAt
		q.RespondedAt = &v
	}
	return q
}

var (
	_ inventory.TxRepository = (*tx)(nil)
	_ orders.TxRepository    = (*tx)(nil)
	_ requests.TxRepository  = (*tx)(nil)

	_ inventory.RepositoryPort = InventoryRepo{}
	_ orders.RepositoryPort    = OrdersRepo{}
	_ requests.RepositoryPort  = RequestsRepo{}
)

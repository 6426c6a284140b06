package requests_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/internal/store/memory"
)

var (
	admin     = shared.Actor{ID: "admin-1", Name: "Ada", Role: shared.RoleAdmin}
	warehouse = shared.Actor{ID: "wh-1", Name: "Wes", Role: shared.RoleWarehouse}
	colleague = shared.Actor{ID: "wh-2", Name: "Wil", Role: shared.RoleWarehouse}
	supplier  = shared.Actor{ID: "sup-user", Name: "Sam", Role: shared.RoleSupplier, SupplierID: "sup-1"}
	rival     = shared.Actor{ID: "rival-user", Name: "Rex", Role: shared.RoleSupplier, SupplierID: "sup-2"}
)

type merge struct {
	previous, next string
	added          int
}

type recorder struct {
	mu        sync.Mutex
	created   []requests.QuantityRequest
	merged    []merge
	responded []requests.QuantityRequest
	decided   []requests.DisplayRequest
}

func (r *recorder) QuantityRequestCreated(_ context.Context, q requests.QuantityRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, q)
}

func (r *recorder) QuantityRequestMerged(_ context.Context, _ requests.QuantityRequest, previous, next string, added int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = append(r.merged, merge{previous, next, added})
}

func (r *recorder) QuantityRequestResponded(_ context.Context, q requests.QuantityRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responded = append(r.responded, q)
}

func (r *recorder) DisplayRequestDecided(_ context.Context, d requests.DisplayRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decided = append(r.decided, d)
}

type fixture struct {
	store    *memory.Store
	service  *requests.Service
	notifier *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutSupplier(ctx, directory.Supplier{ID: "sup-1", Name: "Acme", Email: "acme@example.com", IsActive: true}))
	require.NoError(t, store.PutSupplier(ctx, directory.Supplier{ID: "sup-2", Name: "Globex", IsActive: true}))
	now := time.Now()
	require.NoError(t, store.InsertProduct(ctx, directory.Product{ID: "prod-1", SupplierID: "sup-1", Name: "Desk Lamp", SKU: "DL-1", Category: "lighting", UnitPrice: 19.5, CreatedAt: now}))
	require.NoError(t, store.InsertProduct(ctx, directory.Product{ID: "prod-2", SupplierID: "sup-2", Name: "Chair", UnitPrice: 40, CreatedAt: now}))
	notifier := &recorder{}
	inv := inventory.NewService(store.Inventory(), inventory.ServiceConfig{})
	svc := requests.NewService(store.Requests(), directory.NewService(store), requests.ServiceConfig{
		Audit:     store,
		Inventory: inv,
		Notifier:  notifier,
	})
	return fixture{store: store, service: svc, notifier: notifier}
}

func (f fixture) ask(t *testing.T, actor shared.Actor, product string, qty int) requests.QuantityRequest {
	t.Helper()
	q, err := f.service.Create(context.Background(), actor, requests.CreateInput{ProductID: product, Quantity: qty})
	require.NoError(t, err)
	return q
}

func TestPendingRequestsMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.ask(t, warehouse, "prod-1", 10)
	require.Equal(t, requests.StatusPending, first.Status)
	require.Equal(t, "Acme", first.SupplierName)
	second := f.ask(t, colleague, "prod-1", 5)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 15, second.RequestedQuantity)
	require.Equal(t, 1, second.MergeCount)

	list, page, err := f.service.List(ctx, admin, requests.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, page.Total)
	require.Equal(t, 15, list[0].RequestedQuantity)
	require.Equal(t, warehouse.ID, list[0].RequestedBy)

	require.Len(t, f.notifier.created, 1)
	require.Equal(t, []merge{{previous: warehouse.ID, next: colleague.ID, added: 5}}, f.notifier.merged)

	other := f.ask(t, warehouse, "prod-2", 1)
	require.NotEqual(t, first.ID, other.ID)
}

func TestResponseReachesMergedRequesters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.ask(t, warehouse, "prod-1", 10)
	f.ask(t, colleague, "prod-1", 5)
	f.ask(t, warehouse, "prod-1", 1)
	f.ask(t, colleague, "prod-1", 2)

	stored, err := f.service.Get(ctx, admin, q.ID)
	require.NoError(t, err)
	require.Equal(t, []string{colleague.ID}, stored.Contributors)
	require.Equal(t, 3, stored.MergeCount)

	_, err = f.service.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusRejected})
	require.NoError(t, err)
	require.Len(t, f.notifier.responded, 1)
	require.Equal(t, []string{warehouse.ID, colleague.ID}, f.notifier.responded[0].Requesters())
}

func TestConcurrentRequestsCollapseIntoOne(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Create(context.Background(), warehouse, requests.CreateInput{ProductID: "prod-1", Quantity: 2})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	list, _, err := f.service.List(context.Background(), admin, requests.ListFilter{Status: requests.StatusPending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 16, list[0].RequestedQuantity)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Create(ctx, supplier, requests.CreateInput{ProductID: "prod-1", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = f.service.Create(ctx, warehouse, requests.CreateInput{ProductID: "prod-1", Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.Create(ctx, warehouse, requests.CreateInput{ProductID: "prod-1", SupplierID: "sup-2", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.Create(ctx, warehouse, requests.CreateInput{ProductID: "nope", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApprovalMaterializesInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.ask(t, warehouse, "prod-1", 40)

	_, err := f.service.Respond(ctx, rival, q.ID, requests.RespondInput{Status: requests.StatusApprovedFull})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = f.service.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusApprovedPartial, ApprovedQuantity: intPtr(40)})
	require.ErrorIs(t, err, shared.ErrValidation)

	q, err = f.service.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusApprovedFull, Notes: "shipping Monday"})
	require.NoError(t, err)
	require.Equal(t, requests.StatusApprovedFull, q.Status)
	require.Equal(t, 40, *q.ApprovedQuantity)
	require.NotEmpty(t, q.InventoryItemID)
	require.NotNil(t, q.RespondedAt)

	item, err := f.store.Inventory().GetItem(ctx, q.InventoryItemID)
	require.NoError(t, err)
	require.Equal(t, 40, item.Quantity)
	require.Equal(t, 4, item.MinStockLevel)
	require.Equal(t, 80, item.MaxStockLevel)
	require.Equal(t, 19.5, item.UnitPrice)
	require.Equal(t, "lighting", item.Category)
	require.Equal(t, "prod-1", item.ProductID)
	require.False(t, item.IsPublished)

	_, err = f.service.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusRejected})
	require.ErrorIs(t, err, shared.ErrConflict)

	again := f.ask(t, warehouse, "prod-1", 10)
	require.NotEqual(t, q.ID, again.ID, "approved requests no longer absorb new ones")
	again, err = f.service.Respond(ctx, admin, again.ID, requests.RespondInput{Status: requests.StatusApprovedPartial, ApprovedQuantity: intPtr(6)})
	require.NoError(t, err)
	require.Equal(t, q.InventoryItemID, again.InventoryItemID)

	item, err = f.store.Inventory().GetItem(ctx, q.InventoryItemID)
	require.NoError(t, err)
	require.Equal(t, 46, item.Quantity)
	require.Len(t, f.notifier.responded, 2)
}

type failingTx struct {
	requests.TxRepository
}

func (failingTx) UpdateQuantityRequest(context.Context, requests.QuantityRequest) error {
	return errors.New("write failed")
}

type failingRepo struct {
	requests.RepositoryPort
}

func (r failingRepo) WithTx(ctx context.Context, fn func(context.Context, requests.TxRepository) error) error {
	return r.RepositoryPort.WithTx(ctx, func(ctx context.Context, tx requests.TxRepository) error {
		return fn(ctx, failingTx{tx})
	})
}

func TestApprovalFailureLeavesNoInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.ask(t, warehouse, "prod-1", 5)

	broken := requests.NewService(failingRepo{f.store.Requests()}, directory.NewService(f.store), requests.ServiceConfig{})
	_, err := broken.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusApprovedFull})
	require.EqualError(t, err, "write failed")

	got, err := f.service.Get(ctx, supplier, q.ID)
	require.NoError(t, err)
	require.Equal(t, requests.StatusPending, got.Status)
	items, _, err := f.store.Inventory().ListItems(ctx, inventory.ListFilter{SupplierID: "sup-1"})
	require.NoError(t, err)
	require.Empty(t, items, "the created item is rolled back with the request")

	_, err = f.service.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusApprovedPartial})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRejectDoesNotTouchInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.ask(t, warehouse, "prod-1", 5)
	q, err := f.service.Respond(ctx, supplier, q.ID, requests.RespondInput{Status: requests.StatusRejected, Notes: "discontinued"})
	require.NoError(t, err)
	require.Nil(t, q.ApprovedQuantity)
	require.Empty(t, q.InventoryItemID)
	items, _, err := f.store.Inventory().ListItems(ctx, inventory.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestCancelAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.ask(t, warehouse, "prod-1", 5)

	require.ErrorIs(t, f.service.Delete(ctx, warehouse, q.ID), shared.ErrConflict)
	_, err := f.service.Cancel(ctx, colleague, q.ID)
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	q, err = f.service.Cancel(ctx, warehouse, q.ID)
	require.NoError(t, err)
	require.Equal(t, requests.StatusCancelled, q.Status)
	_, err = f.service.Cancel(ctx, warehouse, q.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	require.ErrorIs(t, f.service.Delete(ctx, colleague, q.ID), shared.ErrUnauthorized)
	require.NoError(t, f.service.Delete(ctx, admin, q.ID))
	_, err = f.service.Get(ctx, admin, q.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSupplierVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.ask(t, warehouse, "prod-1", 5)
	f.ask(t, warehouse, "prod-2", 5)

	mine, _, err := f.service.List(ctx, supplier, requests.ListFilter{SupplierID: "sup-2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, q.ID, mine[0].ID)

	_, err = f.service.Get(ctx, rival, q.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, _, err = f.service.List(ctx, shared.Actor{ID: "u", Role: shared.RoleUser}, requests.ListFilter{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestDisplayRequestAcceptanceSpawnsQuantityRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateDisplayRequest(ctx, supplier, requests.DisplayInput{ProductID: "prod-2"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.CreateDisplayRequest(ctx, warehouse, requests.DisplayInput{ProductID: "prod-1"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	d, err := f.service.CreateDisplayRequest(ctx, supplier, requests.DisplayInput{ProductID: "prod-1", Description: "Brass finish"})
	require.NoError(t, err)
	require.Equal(t, requests.DisplayPending, d.Status)
	require.Equal(t, "Desk Lamp", d.ProductName)
	require.Equal(t, "Brass finish", d.Description)

	_, _, err = f.service.AcceptDisplayRequest(ctx, supplier, d.ID, requests.DecisionInput{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	d, q, err := f.service.AcceptDisplayRequest(ctx, warehouse, d.ID, requests.DecisionInput{Notes: "welcome"})
	require.NoError(t, err)
	require.Equal(t, requests.DisplayAccepted, d.Status)
	require.Equal(t, 1, q.RequestedQuantity)
	require.Equal(t, d.ID, q.DisplayRequestID)
	require.Equal(t, q.ID, d.QuantityRequestID)
	require.Len(t, f.notifier.decided, 1)

	_, err = f.service.RejectDisplayRequest(ctx, warehouse, d.ID, requests.DecisionInput{Notes: "late"})
	require.ErrorIs(t, err, shared.ErrConflict)

	second, err := f.service.CreateDisplayRequest(ctx, supplier, requests.DisplayInput{ProductID: "prod-1"})
	require.NoError(t, err)
	_, merged, err := f.service.AcceptDisplayRequest(ctx, admin, second.ID, requests.DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, q.ID, merged.ID, "acceptance goes through the merge path")
	require.Equal(t, 2, merged.RequestedQuantity)
}

func TestDisplayRequestRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.service.CreateDisplayRequest(ctx, supplier, requests.DisplayInput{ProductID: "prod-1"})
	require.NoError(t, err)

	_, err = f.service.RejectDisplayRequest(ctx, warehouse, d.ID, requests.DecisionInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	d, err = f.service.RejectDisplayRequest(ctx, warehouse, d.ID, requests.DecisionInput{Notes: "not a fit"})
	require.NoError(t, err)
	require.Equal(t, requests.DisplayRejected, d.Status)
	require.Equal(t, "not a fit", d.DecisionNotes)

	list, _, err := f.service.ListDisplayRequests(ctx, rival, requests.DisplayFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
	list, _, err = f.service.ListDisplayRequests(ctx, supplier, requests.DisplayFilter{Status: requests.DisplayRejected})
	require.NoError(t, err)
	require.Len(t, list, 1)

	pending, _, err := f.service.List(ctx, admin, requests.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, pending)
}

func intPtr(v int) *int { return &v }

package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/auth"
	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/notify"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
	"github.com/supplyhub/supplyhub/internal/store/memory"
	"github.com/supplyhub/supplyhub/jobs"
)

type queue struct {
	sent []jobs.SendEmailPayload
	err  error
}

func (q *queue) EnqueueSendEmail(ctx context.Context, p jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.sent = append(q.sent, p)
	return &asynq.TaskInfo{}, nil
}

func setup(t *testing.T) (*notify.Notifier, *queue) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutSupplier(ctx, directory.Supplier{ID: "sup-1", Name: "Acme", Email: "acme@example.com"}))
	require.NoError(t, store.PutUser(ctx, auth.User{ID: "u1", Name: "Una", Email: "una@example.com", Role: shared.RoleUser, IsActive: true}))
	require.NoError(t, store.PutUser(ctx, auth.User{ID: "w1", Name: "Wes", Email: "wes@example.com", Role: shared.RoleWarehouse, IsActive: true}))
	require.NoError(t, store.PutUser(ctx, auth.User{ID: "w2", Name: "Wil", Email: "wil@example.com", Role: shared.RoleWarehouse, IsActive: true}))
	q := &queue{}
	return notify.New(directory.NewService(store), q, nil), q
}

func TestOrderStatusMail(t *testing.T) {
	n, q := setup(t)
	n.OrderStatusChanged(context.Background(), orders.Order{
		OrderNumber: "ORD-1", UserID: "u1", Status: orders.StatusCancelled, CancellationReason: "damaged",
	})
	require.Len(t, q.sent, 1)
	require.Equal(t, []string{"una@example.com"}, q.sent[0].To)
	require.Contains(t, q.sent[0].Body, "damaged")
}

func TestMergeMailsBothRequesters(t *testing.T) {
	n, q := setup(t)
	req := requests.QuantityRequest{ProductName: "Lamp", SupplierName: "Acme", RequestedQuantity: 15}
	n.QuantityRequestMerged(context.Background(), req, "w1", "w2", 5)
	require.Len(t, q.sent, 1)
	require.ElementsMatch(t, []string{"wes@example.com", "wil@example.com"}, q.sent[0].To)

	n.QuantityRequestMerged(context.Background(), req, "w1", "w1", 5)
	require.Equal(t, []string{"wes@example.com"}, q.sent[1].To)
}

func TestResponseMailsEveryRequester(t *testing.T) {
	n, q := setup(t)
	approved := 12
	n.QuantityRequestResponded(context.Background(), requests.QuantityRequest{
		ProductName: "Lamp", SupplierName: "Acme", RequestedQuantity: 15, Status: requests.StatusApprovedPartial,
		ApprovedQuantity: &approved, RequestedBy: "w1", Contributors: []string{"w2", "w1"},
	})
	require.Len(t, q.sent, 1)
	require.Equal(t, []string{"wes@example.com", "wil@example.com"}, q.sent[0].To)
	require.Contains(t, q.sent[0].Body, "Approved quantity: 12")
}

func TestSupplierMails(t *testing.T) {
	n, q := setup(t)
	n.QuantityRequestCreated(context.Background(), requests.QuantityRequest{SupplierID: "sup-1", ProductName: "Lamp", RequestedQuantity: 2})
	n.DisplayRequestDecided(context.Background(), requests.DisplayRequest{SupplierID: "sup-1", ProductName: "Lamp", Status: requests.DisplayAccepted})
	require.Len(t, q.sent, 2)
	for _, m := range q.sent {
		require.Equal(t, []string{"acme@example.com"}, m.To)
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	n, q := setup(t)
	n.OrderStatusChanged(context.Background(), orders.Order{UserID: "ghost", Status: orders.StatusApproved})
	require.Empty(t, q.sent, "unknown users receive nothing")

	q.err = errors.New("redis down")
	approved := 3
	require.NotPanics(t, func() {
		n.QuantityRequestResponded(context.Background(), requests.QuantityRequest{RequestedBy: "w1", ApprovedQuantity: &approved})
	})
}

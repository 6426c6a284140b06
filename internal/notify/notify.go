// Package notify turns domain changes into transactional email tasks.
// Delivery failures are logged and never surface to the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/jobs"
)

const enqueueTimeout = 3 * time.Second

// Directory resolves recipients.
type Directory interface {
	User(ctx context.Context, id string) (directory.User, error)
	Supplier(ctx context.Context, id string) (directory.Supplier, error)
	StaffEmails(ctx context.Context) ([]string, error)
}

// Queue accepts mail tasks.
type Queue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Notifier implements the order and request notifier ports.
type Notifier struct {
	dir    Directory
	queue  Queue
	logger *slog.Logger
}

var (
	_ orders.Notifier   = (*Notifier)(nil)
	_ requests.Notifier = (*Notifier)(nil)
)

// New constructs a Notifier.
func New(dir Directory, queue Queue, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{dir: dir, queue: queue, logger: logger}
}

// OrderStatusChanged mails the order owner.
func (n *Notifier) OrderStatusChanged(ctx context.Context, o orders.Order) {
	body := fmt.Sprintf("Your order %s is now %s.\nTotal: %.2f\n", o.OrderNumber, o.Status, o.TotalAmount)
	if o.Status == orders.StatusCancelled && o.CancellationReason != "" {
		body += "Reason: " + o.CancellationReason + "\n"
	}
	n.send(ctx, "order.status", n.userEmails(ctx, o.UserID), fmt.Sprintf("Order %s %s", o.OrderNumber, o.Status), body)
}

// QuantityRequestCreated mails the supplier.
func (n *Notifier) QuantityRequestCreated(ctx context.Context, q requests.QuantityRequest) {
	body := fmt.Sprintf("%s requested %d x %s.\n", q.RequesterName, q.RequestedQuantity, q.ProductName)
	if q.Notes != "" {
		body += "Notes: " + q.Notes + "\n"
	}
	n.send(ctx, "request.created", n.supplierEmails(ctx, q.SupplierID), "New quantity request: "+q.ProductName, body)
}

// QuantityRequestMerged tells the original requester and the new one that
// their requests were combined.
func (n *Notifier) QuantityRequestMerged(ctx context.Context, q requests.QuantityRequest, previousRequester, newRequester string, added int) {
	body := fmt.Sprintf("A request for %s was merged: %d added, %d now pending with %s.\n",
		q.ProductName, added, q.RequestedQuantity, q.SupplierName)
	recipients := n.userEmails(ctx, previousRequester)
	if newRequester != previousRequester {
		recipients = append(recipients, n.userEmails(ctx, newRequester)...)
	}
	n.send(ctx, "request.merged", recipients, "Quantity request merged: "+q.ProductName, body)
}

// QuantityRequestResponded mails the requester, and every staff member whose
// request was merged into it, with the supplier decision.
func (n *Notifier) QuantityRequestResponded(ctx context.Context, q requests.QuantityRequest) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s responded to your request for %d x %s: %s.\n", q.SupplierName, q.RequestedQuantity, q.ProductName, q.Status)
	if q.ApprovedQuantity != nil {
		fmt.Fprintf(&b, "Approved quantity: %d\n", *q.ApprovedQuantity)
	}
	if q.ResponseNotes != "" {
		b.WriteString("Notes: " + q.ResponseNotes + "\n")
	}
	var recipients []string
	for _, id := range q.Requesters() {
		recipients = append(recipients, n.userEmails(ctx, id)...)
	}
	n.send(ctx, "request.responded", recipients, "Quantity request "+string(q.Status), b.String())
}

// DisplayRequestDecided mails the supplier.
func (n *Notifier) DisplayRequestDecided(ctx context.Context, d requests.DisplayRequest) {
	body := fmt.Sprintf("Your display request for %s was %s.\n", d.ProductName, d.Status)
	if d.DecisionNotes != "" {
		body += "Notes: " + d.DecisionNotes + "\n"
	}
	n.send(ctx, "display.decided", n.supplierEmails(ctx, d.SupplierID), "Display request "+string(d.Status), body)
}

func (n *Notifier) userEmails(ctx context.Context, id string) []string {
	if id == "" || n.dir == nil {
		return nil
	}
	u, err := n.dir.User(ctx, id)
	if err != nil {
		n.logger.Warn("notify: user lookup", slog.String("user_id", id), slog.Any("error", err))
		return nil
	}
	if u.Email == "" {
		return nil
	}
	return []string{u.Email}
}

func (n *Notifier) supplierEmails(ctx context.Context, id string) []string {
	if id == "" || n.dir == nil {
		return nil
	}
	s, err := n.dir.Supplier(ctx, id)
	if err != nil {
		n.logger.Warn("notify: supplier lookup", slog.String("supplier_id", id), slog.Any("error", err))
		return nil
	}
	if s.Email == "" {
		return nil
	}
	return []string{s.Email}
}

func (n *Notifier) send(ctx context.Context, kind string, to []string, subject, body string) {
	if n == nil || n.queue == nil || len(to) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	payload := jobs.SendEmailPayload{To: dedupe(to), Subject: subject, Body: body}
	if _, err := n.queue.EnqueueSendEmail(ctx, payload); err != nil {
		n.logger.Warn("notify: enqueue mail", slog.String("kind", kind), slog.Any("error", err))
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
)

const requestTimeout = 2 * time.Second

// ItemCounter counts inventory items.
type ItemCounter interface {
	ListItems(ctx context.Context, filter inventory.ListFilter) ([]inventory.Item, int, error)
}

// OrderCounter counts orders.
type OrderCounter interface {
	ListOrders(ctx context.Context, filter orders.ListFilter) ([]orders.Order, int, error)
}

// RequestCounter counts quantity and display requests.
type RequestCounter interface {
	ListQuantityRequests(ctx context.Context, filter requests.ListFilter) ([]requests.QuantityRequest, int, error)
	ListDisplayRequests(ctx context.Context, filter requests.DisplayFilter) ([]requests.DisplayRequest, int, error)
}

// Summary holds per-status totals visible to one actor.
type Summary struct {
	Inventory        map[string]int `json:"inventory,omitempty"`
	Orders           map[string]int `json:"orders,omitempty"`
	QuantityRequests map[string]int `json:"quantityRequests,omitempty"`
	DisplayRequests  map[string]int `json:"displayRequests,omitempty"`
	GeneratedAt      time.Time      `json:"generatedAt"`
}

// Service aggregates counts across modules.
type Service struct {
	items    ItemCounter
	orders   OrderCounter
	requests RequestCounter
}

// NewService constructs Service.
func NewService(items ItemCounter, orders OrderCounter, requests RequestCounter) *Service {
	return &Service{items: items, orders: orders, requests: requests}
}

type count struct {
	group  string
	status string
	total  int
}

// Summary fans out one count query per (module, status) pair. Staff see
// everything, suppliers their own stock and requests, customers their orders.
func (s *Service) Summary(ctx context.Context, actor shared.Actor) (Summary, error) {
	if actor.ID == "" {
		return Summary{}, shared.ErrUnauthenticated
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var queries []func(context.Context) (count, error)
	staff := actor.IsStaff()
	supplier := actor.Role == shared.RoleSupplier

	if staff || supplier {
		for _, st := range []inventory.Status{inventory.StatusInStock, inventory.StatusLowStock, inventory.StatusOutOfStock, inventory.StatusDiscontinued} {
			queries = append(queries, func(ctx context.Context) (count, error) {
				_, n, err := s.items.ListItems(ctx, inventory.ListFilter{SupplierID: scope(actor), Status: st, PerPage: 1})
				return count{"inventory", string(st), n}, err
			})
		}
		for _, st := range []requests.Status{requests.StatusPending, requests.StatusApprovedFull, requests.StatusApprovedPartial, requests.StatusRejected, requests.StatusCancelled} {
			queries = append(queries, func(ctx context.Context) (count, error) {
				_, n, err := s.requests.ListQuantityRequests(ctx, requests.ListFilter{SupplierID: scope(actor), Status: st, PerPage: 1})
				return count{"quantity", string(st), n}, err
			})
		}
		for _, st := range []requests.DisplayStatus{requests.DisplayPending, requests.DisplayAccepted, requests.DisplayRejected} {
			queries = append(queries, func(ctx context.Context) (count, error) {
				_, n, err := s.requests.ListDisplayRequests(ctx, requests.DisplayFilter{SupplierID: scope(actor), Status: st, PerPage: 1})
				return count{"display", string(st), n}, err
			})
		}
	}
	if !supplier {
		owner := ""
		if !staff {
			owner = actor.ID
		}
		for _, st := range []orders.Status{orders.StatusPending, orders.StatusApproved, orders.StatusShipped, orders.StatusDelivered, orders.StatusCancelled} {
			queries = append(queries, func(ctx context.Context) (count, error) {
				_, n, err := s.orders.ListOrders(ctx, orders.ListFilter{UserID: owner, Status: st, PerPage: 1})
				return count{"orders", string(st), n}, err
			})
		}
	}

	results := make([]count, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			c, err := q(gctx)
			if err != nil {
				return fmt.Errorf("dashboard: %s %s: %w", c.group, c.status, err)
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	out := Summary{GeneratedAt: time.Now().UTC()}
	for _, c := range results {
		var bucket *map[string]int
		switch c.group {
		case "inventory":
			bucket = &out.Inventory
		case "orders":
			bucket = &out.Orders
		case "quantity":
			bucket = &out.QuantityRequests
		case "display":
			bucket = &out.DisplayRequests
		}
		if *bucket == nil {
			*bucket = map[string]int{}
		}
		(*bucket)[c.status] = c.total
	}
	return out, nil
}

func scope(actor shared.Actor) string {
	if actor.Role == shared.RoleSupplier {
		return actor.SupplierID
	}
	return ""
}

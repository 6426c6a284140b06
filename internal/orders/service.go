package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supplyhub/supplyhub/internal/events"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/observability"
	"github.com/supplyhub/supplyhub/internal/shared"
)

var now = func() time.Time { return time.Now().UTC() }

const idempotencyModule = "orders"

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Events      events.Publisher
	Inventory   StockObserver
	Notifier    Notifier
	Metrics     *observability.DomainMetrics
	Logger      *slog.Logger
}

// Service drives the order lifecycle and its stock side effects.
type Service struct {
	repo   RepositoryPort
	cfg    ServiceConfig
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cfg: cfg, logger: logger}
}

// CreateInput is a checkout request.
type CreateInput struct {
	Items          []LineInput `json:"items" validate:"required,min=1,dive"`
	Notes          string      `json:"notes" validate:"max=1000"`
	IdempotencyKey string      `json:"-"`
}

// StatusInput requests a transition.
type StatusInput struct {
	Status Status `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// BulkStatusInput requests the same transition for several orders.
type BulkStatusInput struct {
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Status Status   `json:"status" validate:"required"`
	Reason string   `json:"reason" validate:"max=500"`
}

// touched collects ledger rows changed inside a transaction.
type touched struct {
	order     []string
	items     map[string]inventory.Item
	movements []inventory.Movement
}

func (t *touched) item(item inventory.Item) {
	if t.items == nil {
		t.items = make(map[string]inventory.Item)
	}
	if _, ok := t.items[item.ID]; !ok {
		t.order = append(t.order, item.ID)
	}
	t.items[item.ID] = item
}

func (t *touched) list() []inventory.Item {
	out := make([]inventory.Item, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

// Create places an order, reserving every line in one transaction. Either
// all lines are reserved and the order exists, or nothing changes.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (Order, error) {
	if actor.ID == "" {
		return Order{}, shared.ErrUnauthenticated
	}
	lines, err := mergeLines(input.Items)
	if err != nil {
		return Order{}, err
	}

	var idemKey string
	if input.IdempotencyKey != "" && s.cfg.Idempotency != nil {
		idemKey = idempotencyModule + ":" + actor.ID + ":" + input.IdempotencyKey
		if err := s.cfg.Idempotency.CheckAndInsert(ctx, idemKey, idempotencyModule); err != nil {
			return Order{}, err
		}
	}

	at := now()
	order := Order{
		ID:          uuid.NewString(),
		OrderNumber: NewOrderNumber(at),
		UserID:      actor.ID,
		RequestedBy: actor.Name,
		Status:      StatusPending,
		Notes:       strings.TrimSpace(input.Notes),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	var changes touched
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order.Items = make([]Line, 0, len(lines))
		for _, in := range lines {
			line, err := s.reserveLine(ctx, tx, actor, order.OrderNumber, in, &changes)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, line)
		}
		order.recalculate()
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.cfg.Metrics.Reservation("insufficient")
		}
		if idemKey != "" {
			if derr := s.cfg.Idempotency.Delete(ctx, idemKey); derr != nil {
				s.logger.Warn("orders release idempotency key", slog.Any("error", derr))
			}
		}
		return Order{}, err
	}
	for range order.Items {
		s.cfg.Metrics.Reservation("reserved")
	}
	s.committed(ctx, actor, "created", []Order{order}, &changes)
	return order, nil
}

// Get returns an order visible to actor.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id string) (Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !actor.IsStaff() && !order.OwnedBy(actor) {
		return Order{}, fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	return order, nil
}

// List returns orders; non-staff actors only see their own.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Order, shared.Pagination, error) {
	if actor.ID == "" {
		return nil, shared.Pagination{}, shared.ErrUnauthenticated
	}
	if !actor.IsStaff() {
		filter.UserID = actor.ID
	}
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// UpdateStatus moves one order to target and applies the ledger side effect
// of that transition in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, actor shared.Actor, id string, input StatusInput) (Order, error) {
	var (
		order   Order
		from    Status
		changes touched
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = order.Status
		if err := authorizeTransition(actor, order, input.Status); err != nil {
			return err
		}
		if !CanTransition(order.Status, input.Status) {
			return &TransitionError{Target: input.Status, OrderNumbers: []string{order.OrderNumber}}
		}
		if input.Status == StatusCancelled && strings.TrimSpace(input.Reason) == "" {
			return shared.ErrMissingCancellationReason
		}
		return s.transition(ctx, tx, actor, &order, input.Status, input.Reason, &changes)
	})
	if err != nil {
		return Order{}, err
	}
	s.cfg.Metrics.OrderTransition(string(from), string(order.Status))
	s.committed(ctx, actor, "status."+string(order.Status), []Order{order}, &changes)
	return order, nil
}

// BulkUpdateStatus applies one transition to several orders atomically. When
// any order cannot reach target nothing changes and the error names every
// offending order.
func (s *Service) BulkUpdateStatus(ctx context.Context, actor shared.Actor, input BulkStatusInput) ([]Order, error) {
	if !actor.IsStaff() {
		return nil, shared.ErrUnauthorized
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("orders: %w: unknown status %q", shared.ErrValidation, input.Status)
	}
	if input.Status == StatusCancelled && strings.TrimSpace(input.Reason) == "" {
		return nil, shared.ErrMissingCancellationReason
	}
	ids := uniqueIDs(input.IDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("orders: %w: no orders selected", shared.ErrValidation)
	}
	var (
		updated []Order
		from    []Status
		changes touched
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loaded := make([]Order, 0, len(ids))
		var invalid []string
		for _, id := range ids {
			order, err := tx.GetOrderForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !CanTransition(order.Status, input.Status) {
				invalid = append(invalid, order.OrderNumber)
			}
			loaded = append(loaded, order)
		}
		if len(invalid) > 0 {
			return &TransitionError{Target: input.Status, OrderNumbers: invalid}
		}
		for i := range loaded {
			from = append(from, loaded[i].Status)
			if err := s.transition(ctx, tx, actor, &loaded[i], input.Status, input.Reason, &changes); err != nil {
				return fmt.Errorf("order %s: %w", loaded[i].OrderNumber, err)
			}
		}
		updated = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, order := range updated {
		s.cfg.Metrics.OrderTransition(string(from[i]), string(order.Status))
	}
	s.committed(ctx, actor, "status."+string(input.Status), updated, &changes)
	return updated, nil
}

// AdminCancel cancels an order in any open state. Approved and shipped
// orders already deducted their stock, which is restocked here.
func (s *Service) AdminCancel(ctx context.Context, actor shared.Actor, id, reason string) (Order, error) {
	if !actor.IsAdmin() {
		return Order{}, shared.ErrUnauthorized
	}
	if strings.TrimSpace(reason) == "" {
		return Order{}, shared.ErrMissingCancellationReason
	}
	var (
		order   Order
		from    Status
		changes touched
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = order.Status
		switch order.Status {
		case StatusPending:
			return s.transition(ctx, tx, actor, &order, StatusCancelled, reason, &changes)
		case StatusApproved, StatusShipped:
			for _, line := range order.Items {
				item, mv, err := inventory.AdjustStock(ctx, tx, inventory.AdjustInput{
					ItemID:   line.ProductID,
					Quantity: line.Quantity,
					Type:     inventory.MovementIn,
					Reason:   inventory.ReasonOrderCancellation,
					Actor:    actor.ID,
					Notes:    order.OrderNumber,
				})
				if err != nil {
					return err
				}
				changes.item(item)
				changes.movements = append(changes.movements, mv)
			}
			return s.finish(ctx, tx, &order, StatusCancelled, reason)
		default:
			return &TransitionError{Target: StatusCancelled, OrderNumbers: []string{order.OrderNumber}}
		}
	})
	if err != nil {
		return Order{}, err
	}
	s.cfg.Metrics.OrderTransition(string(from), string(StatusCancelled))
	s.committed(ctx, actor, "admin_cancelled", []Order{order}, &changes)
	return order, nil
}

// UpdateItems replaces the lines of a pending order, moving reservations
// from the old lines to the new ones.
func (s *Service) UpdateItems(ctx context.Context, actor shared.Actor, id string, items []LineInput) (Order, error) {
	lines, err := mergeLines(items)
	if err != nil {
		return Order{}, err
	}
	var (
		order   Order
		changes touched
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && !order.OwnedBy(actor) {
			return shared.ErrUnauthorized
		}
		if order.Status != StatusPending {
			return fmt.Errorf("orders: %w: %s is %s, only pending orders can be edited", shared.ErrConflict, order.OrderNumber, order.Status)
		}
		if err := s.releaseLines(ctx, tx, actor, order, &changes); err != nil {
			return err
		}
		next := make([]Line, 0, len(lines))
		for _, in := range lines {
			line, err := s.reserveLine(ctx, tx, actor, order.OrderNumber, in, &changes)
			if err != nil {
				return err
			}
			next = append(next, line)
		}
		order.Items = next
		order.recalculate()
		order.UpdatedAt = now()
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.committed(ctx, actor, "items_updated", []Order{order}, &changes)
	return order, nil
}

// Delete removes a pending order after releasing its reservations.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id string) error {
	var (
		order   Order
		changes touched
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && !order.OwnedBy(actor) {
			return shared.ErrUnauthorized
		}
		if order.Status != StatusPending {
			return fmt.Errorf("orders: %w: %s is %s, only pending orders can be deleted", shared.ErrConflict, order.OrderNumber, order.Status)
		}
		if err := s.releaseLines(ctx, tx, actor, order, &changes); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, actor, "deleted", []Order{order}, &changes)
	return nil
}

// transition applies the ledger effect of from -> target and saves the order.
// Callers validate the transition first.
func (s *Service) transition(ctx context.Context, tx TxRepository, actor shared.Actor, order *Order, target Status, reason string, changes *touched) error {
	if order.Status == StatusPending {
		switch target {
		case StatusCancelled:
			if err := s.releaseLines(ctx, tx, actor, *order, changes); err != nil {
				return err
			}
		default:
			for _, line := range order.Items {
				item, mv, err := inventory.ConfirmStockDeduction(ctx, tx, inventory.ReservationInput{
					ItemID:    line.ProductID,
					Quantity:  line.Quantity,
					Actor:     actor.ID,
					Reference: order.OrderNumber,
				})
				if err != nil {
					return err
				}
				changes.item(item)
				changes.movements = append(changes.movements, mv)
			}
		}
	}
	return s.finish(ctx, tx, order, target, reason)
}

func (s *Service) finish(ctx context.Context, tx TxRepository, order *Order, target Status, reason string) error {
	order.Status = target
	if target == StatusCancelled {
		order.CancellationReason = strings.TrimSpace(reason)
	}
	order.UpdatedAt = now()
	return tx.UpdateOrder(ctx, *order)
}

func (s *Service) reserveLine(ctx context.Context, tx TxRepository, actor shared.Actor, ref string, in LineInput, changes *touched) (Line, error) {
	current, err := tx.GetItemForUpdate(ctx, in.ProductID)
	if err != nil {
		return Line{}, err
	}
	if !current.IsPublished {
		return Line{}, fmt.Errorf("orders: %w: %s is not available for ordering", shared.ErrConflict, current.Name)
	}
	item, err := inventory.ReserveStock(ctx, tx, inventory.ReservationInput{
		ItemID:    in.ProductID,
		Quantity:  in.Quantity,
		Actor:     actor.ID,
		Reference: ref,
	})
	if err != nil {
		return Line{}, err
	}
	changes.item(item)
	return Line{
		ProductID:   item.ID,
		ProductName: item.Name,
		Quantity:    in.Quantity,
		UnitPrice:   item.EffectivePrice(),
		Supplier:    item.SupplierName,
	}, nil
}

func (s *Service) releaseLines(ctx context.Context, tx TxRepository, actor shared.Actor, order Order, changes *touched) error {
	for _, line := range order.Items {
		item, err := inventory.ReleaseReservation(ctx, tx, inventory.ReservationInput{
			ItemID:    line.ProductID,
			Quantity:  line.Quantity,
			Actor:     actor.ID,
			Reference: order.OrderNumber,
		})
		if err != nil {
			return err
		}
		changes.item(item)
	}
	return nil
}

// committed runs post-commit side effects. Failures are logged only.
func (s *Service) committed(ctx context.Context, actor shared.Actor, action string, orders []Order, changes *touched) {
	if s.cfg.Inventory != nil && len(changes.order) > 0 {
		s.cfg.Inventory.StockChanged(ctx, actor, "order."+action, changes.list(), changes.movements)
	}
	for _, order := range orders {
		if s.cfg.Audit != nil {
			meta := map[string]any{"order_number": order.OrderNumber, "status": order.Status, "total": order.TotalAmount}
			if order.CancellationReason != "" {
				meta["reason"] = order.CancellationReason
			}
			if err := s.cfg.Audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: "order." + action, Entity: "order", EntityID: order.ID, Meta: meta}); err != nil {
				s.logger.Warn("orders audit", slog.String("order_id", order.ID), slog.Any("error", err))
			}
		}
		if err := events.Emit(ctx, s.cfg.Events, events.TopicOrders, "order."+action, order.ID, order); err != nil {
			s.logger.Warn("orders publish event", slog.String("order_id", order.ID), slog.Any("error", err))
		}
		if s.cfg.Notifier != nil && action != "created" && action != "items_updated" {
			s.cfg.Notifier.OrderStatusChanged(ctx, order)
		}
	}
}

func authorizeTransition(actor shared.Actor, order Order, target Status) error {
	if actor.IsStaff() {
		return nil
	}
	if target == StatusCancelled && order.OwnedBy(actor) {
		return nil
	}
	return shared.ErrUnauthorized
}

func mergeLines(items []LineInput) ([]LineInput, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("orders: %w: at least one item required", shared.ErrValidation)
	}
	index := make(map[string]int, len(items))
	out := make([]LineInput, 0, len(items))
	for _, in := range items {
		in.ProductID = strings.TrimSpace(in.ProductID)
		if in.ProductID == "" || in.Quantity <= 0 {
			return nil, fmt.Errorf("orders: %w: each line needs a product and a positive quantity", shared.ErrValidation)
		}
		if i, ok := index[in.ProductID]; ok {
			out[i].Quantity += in.Quantity
			continue
		}
		index[in.ProductID] = len(out)
		out = append(out, in)
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

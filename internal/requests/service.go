package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supplyhub/supplyhub/internal/events"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/observability"
	"github.com/supplyhub/supplyhub/internal/shared"
)

var now = func() time.Time { return time.Now().UTC() }

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit     AuditPort
	Events    events.Publisher
	Inventory StockObserver
	Notifier  Notifier
	Metrics   *observability.DomainMetrics
	Logger    *slog.Logger
}

// Service runs the quantity and display request workflows.
type Service struct {
	repo      RepositoryPort
	directory Directory
	cfg       ServiceConfig
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, dir Directory, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: dir, cfg: cfg, logger: logger}
}

// CreateInput asks a supplier for stock.
type CreateInput struct {
	ProductID  string `json:"productId" validate:"required"`
	SupplierID string `json:"supplierId"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// RespondInput is the supplier's answer.
type RespondInput struct {
	Status           Status `json:"status" validate:"required,oneof=approved_full approved_partial rejected"`
	ApprovedQuantity *int   `json:"approvedQuantity" validate:"omitempty,gt=0"`
	Notes            string `json:"notes" validate:"max=1000"`
}

// DisplayInput proposes a product for the catalog.
type DisplayInput struct {
	ProductID   string  `json:"productId" validate:"required"`
	SupplierID  string  `json:"supplierId"`
	Category    string  `json:"category" validate:"max=100"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

// DecisionInput accepts or rejects a display request.
type DecisionInput struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type mergeResult struct {
	request           QuantityRequest
	merged            bool
	previousRequester string
	added             int
}

// Create records a quantity request. A pending request for the same product
// and supplier absorbs the quantity instead of a second row being created.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (QuantityRequest, error) {
	if !actor.IsStaff() {
		return QuantityRequest{}, shared.ErrUnauthorized
	}
	if input.Quantity <= 0 {
		return QuantityRequest{}, fmt.Errorf("requests: %w: quantity must be positive", shared.ErrValidation)
	}
	product, err := s.directory.Product(ctx, input.ProductID)
	if err != nil {
		return QuantityRequest{}, err
	}
	if input.SupplierID == "" {
		input.SupplierID = product.SupplierID
	}
	if input.SupplierID != product.SupplierID {
		return QuantityRequest{}, fmt.Errorf("requests: %w: product %s is not offered by supplier %s", shared.ErrValidation, product.ID, input.SupplierID)
	}
	supplier, err := s.directory.Supplier(ctx, input.SupplierID)
	if err != nil {
		return QuantityRequest{}, err
	}
	draft := QuantityRequest{
		ProductID:         product.ID,
		ProductName:       product.Name,
		ProductSKU:        product.SKU,
		Category:          product.Category,
		Description:       product.Description,
		UnitPrice:         product.UnitPrice,
		SupplierID:        supplier.ID,
		SupplierName:      supplier.Name,
		RequestedQuantity: input.Quantity,
		Notes:             clean(input.Notes),
	}

	var res mergeResult
	// A concurrent insert for the same pair trips the pending unique index;
	// the retry then sees the committed row and merges into it.
	for attempt := 0; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			res, err = s.createOrMerge(ctx, tx, actor, draft)
			return err
		})
		if err == nil || attempt > 0 || !errors.Is(err, shared.ErrConflict) {
			break
		}
	}
	if err != nil {
		return QuantityRequest{}, err
	}
	s.requestCommitted(ctx, actor, res)
	return res.request, nil
}

func (s *Service) createOrMerge(ctx context.Context, tx TxRepository, actor shared.Actor, draft QuantityRequest) (mergeResult, error) {
	at := now()
	existing, found, err := tx.FindPendingQuantityRequest(ctx, draft.ProductID, draft.SupplierID)
	if err != nil {
		return mergeResult{}, err
	}
	if found {
		previous := existing.RequestedBy
		existing.RequestedQuantity += draft.RequestedQuantity
		existing.MergeCount++
		if actor.ID != existing.RequestedBy && !slices.Contains(existing.Contributors, actor.ID) {
			existing.Contributors = append(existing.Contributors, actor.ID)
		}
		if draft.Notes != "" {
			if existing.Notes != "" {
				existing.Notes += "\n"
			}
			existing.Notes += draft.Notes
		}
		existing.UpdatedAt = at
		if err := tx.UpdateQuantityRequest(ctx, existing); err != nil {
			return mergeResult{}, err
		}
		return mergeResult{request: existing, merged: true, previousRequester: previous, added: draft.RequestedQuantity}, nil
	}
	draft.ID = uuid.NewString()
	draft.Status = StatusPending
	draft.RequestedBy = actor.ID
	draft.RequesterName = actor.Name
	draft.CreatedAt = at
	draft.UpdatedAt = at
	if err := tx.InsertQuantityRequest(ctx, draft); err != nil {
		return mergeResult{}, err
	}
	return mergeResult{request: draft, added: draft.RequestedQuantity}, nil
}

// Respond records the supplier's answer. Approval stocks the approved units
// into inventory in the same transaction.
func (s *Service) Respond(ctx context.Context, actor shared.Actor, id string, input RespondInput) (QuantityRequest, error) {
	var (
		req      QuantityRequest
		supplied []inventory.Item
		moves    []inventory.Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetQuantityRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.ActsForSupplier(req.SupplierID) {
			return shared.ErrUnauthorized
		}
		if req.Status != StatusPending {
			return fmt.Errorf("requests: %w: request is %s", shared.ErrConflict, req.Status)
		}
		approved, err := approvedQuantity(req, input)
		if err != nil {
			return err
		}
		at := now()
		if approved > 0 {
			item, mv, _, err := inventory.ReceiveSupply(ctx, tx, inventory.SupplyInput{
				ProductID:    req.ProductID,
				Name:         req.ProductName,
				SKU:          req.ProductSKU,
				Category:     req.Category,
				Description:  req.Description,
				SupplierID:   req.SupplierID,
				SupplierName: req.SupplierName,
				UnitPrice:    req.UnitPrice,
				Quantity:     approved,
				Actor:        actor.ID,
				Notes:        "Quantity request " + req.ID,
			})
			if err != nil {
				return err
			}
			req.ApprovedQuantity = &approved
			req.InventoryItemID = item.ID
			supplied = append(supplied, item)
			moves = append(moves, mv)
		}
		req.Status = input.Status
		req.ResponseNotes = clean(input.Notes)
		req.RespondedBy = actor.ID
		req.RespondedAt = &at
		req.UpdatedAt = at
		return tx.UpdateQuantityRequest(ctx, req)
	})
	if err != nil {
		return QuantityRequest{}, err
	}
	if s.cfg.Inventory != nil && len(supplied) > 0 {
		s.cfg.Inventory.StockChanged(ctx, actor, "supplied", supplied, moves)
	}
	s.cfg.Metrics.QuantityRequest(string(req.Status))
	s.record(ctx, actor, "quantity_request."+string(req.Status), req.ID, map[string]any{"approved": req.ApprovedQuantity, "item_id": req.InventoryItemID})
	s.emit(ctx, "quantity_request.responded", req.ID, req)
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.QuantityRequestResponded(ctx, req)
	}
	return req, nil
}

func approvedQuantity(req QuantityRequest, input RespondInput) (int, error) {
	switch input.Status {
	case StatusApprovedFull:
		if input.ApprovedQuantity != nil && *input.ApprovedQuantity != req.RequestedQuantity {
			return 0, fmt.Errorf("requests: %w: full approval must match the requested %d", shared.ErrValidation, req.RequestedQuantity)
		}
		return req.RequestedQuantity, nil
	case StatusApprovedPartial:
		if input.ApprovedQuantity == nil || *input.ApprovedQuantity <= 0 || *input.ApprovedQuantity >= req.RequestedQuantity {
			return 0, fmt.Errorf("requests: %w: partial approval must be between 1 and %d", shared.ErrValidation, req.RequestedQuantity-1)
		}
		return *input.ApprovedQuantity, nil
	case StatusRejected:
		return 0, nil
	default:
		return 0, fmt.Errorf("requests: %w: unsupported response %q", shared.ErrValidation, input.Status)
	}
}

// Cancel withdraws a pending request.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id string) (QuantityRequest, error) {
	var req QuantityRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetQuantityRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && req.RequestedBy != actor.ID {
			return shared.ErrUnauthorized
		}
		if req.Status != StatusPending {
			return fmt.Errorf("requests: %w: only pending requests can be cancelled", shared.ErrConflict)
		}
		req.Status = StatusCancelled
		req.UpdatedAt = now()
		return tx.UpdateQuantityRequest(ctx, req)
	})
	if err != nil {
		return QuantityRequest{}, err
	}
	s.cfg.Metrics.QuantityRequest("cancelled")
	s.record(ctx, actor, "quantity_request.cancelled", req.ID, nil)
	s.emit(ctx, "quantity_request.cancelled", req.ID, req)
	return req, nil
}

// Delete removes a request that is no longer pending.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetQuantityRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && req.RequestedBy != actor.ID {
			return shared.ErrUnauthorized
		}
		if req.Status == StatusPending {
			return fmt.Errorf("requests: %w: cancel the request before deleting it", shared.ErrConflict)
		}
		return tx.DeleteQuantityRequest(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "quantity_request.deleted", id, nil)
	s.emit(ctx, "quantity_request.deleted", id, map[string]string{"id": id})
	return nil
}

// Get returns a request visible to actor.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id string) (QuantityRequest, error) {
	req, err := s.repo.GetQuantityRequest(ctx, id)
	if err != nil {
		return QuantityRequest{}, err
	}
	if !actor.IsStaff() && !actor.ActsForSupplier(req.SupplierID) {
		return QuantityRequest{}, fmt.Errorf("quantity request %s: %w", id, shared.ErrNotFound)
	}
	return req, nil
}

// List returns requests; suppliers see the ones addressed to them.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]QuantityRequest, shared.Pagination, error) {
	switch {
	case actor.IsStaff():
	case actor.Role == shared.RoleSupplier:
		filter.SupplierID = actor.SupplierID
	default:
		return nil, shared.Pagination{}, shared.ErrUnauthorized
	}
	out, total, err := s.repo.ListQuantityRequests(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// CreateDisplayRequest lets a supplier propose one of its products.
func (s *Service) CreateDisplayRequest(ctx context.Context, actor shared.Actor, input DisplayInput) (DisplayRequest, error) {
	switch {
	case actor.Role == shared.RoleSupplier:
		input.SupplierID = actor.SupplierID
	case actor.IsAdmin():
	default:
		return DisplayRequest{}, shared.ErrUnauthorized
	}
	product, err := s.directory.Product(ctx, input.ProductID)
	if err != nil {
		return DisplayRequest{}, err
	}
	if input.SupplierID == "" {
		input.SupplierID = product.SupplierID
	}
	if product.SupplierID != input.SupplierID {
		return DisplayRequest{}, fmt.Errorf("requests: %w: product %s belongs to another supplier", shared.ErrValidation, product.ID)
	}
	supplier, err := s.directory.Supplier(ctx, input.SupplierID)
	if err != nil {
		return DisplayRequest{}, err
	}
	at := now()
	d := DisplayRequest{
		ID:           uuid.NewString(),
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		ProductID:    product.ID,
		ProductName:  product.Name,
		SKU:          product.SKU,
		Category:     firstNonEmpty(input.Category, product.Category),
		Description:  firstNonEmpty(clean(input.Description), product.Description),
		UnitPrice:    product.UnitPrice,
		Status:       DisplayPending,
		RequestedBy:  actor.ID,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if input.UnitPrice > 0 {
		d.UnitPrice = input.UnitPrice
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertDisplayRequest(ctx, d)
	})
	if err != nil {
		return DisplayRequest{}, err
	}
	s.record(ctx, actor, "display_request.created", d.ID, nil)
	s.emit(ctx, "display_request.created", d.ID, d)
	return d, nil
}

// AcceptDisplayRequest accepts a proposal and opens a quantity request of
// one unit for it, merged like any other request.
func (s *Service) AcceptDisplayRequest(ctx context.Context, actor shared.Actor, id string, input DecisionInput) (DisplayRequest, QuantityRequest, error) {
	if !actor.IsStaff() {
		return DisplayRequest{}, QuantityRequest{}, shared.ErrUnauthorized
	}
	var (
		d   DisplayRequest
		res mergeResult
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetDisplayRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != DisplayPending {
			return fmt.Errorf("requests: %w: display request is %s", shared.ErrConflict, d.Status)
		}
		res, err = s.createOrMerge(ctx, tx, actor, QuantityRequest{
			ProductID:         d.ProductID,
			ProductName:       d.ProductName,
			ProductSKU:        d.SKU,
			Category:          d.Category,
			Description:       d.Description,
			UnitPrice:         d.UnitPrice,
			SupplierID:        d.SupplierID,
			SupplierName:      d.SupplierName,
			RequestedQuantity: 1,
			DisplayRequestID:  d.ID,
		})
		if err != nil {
			return err
		}
		d.Status = DisplayAccepted
		d.DecidedBy = actor.ID
		d.DecisionNotes = clean(input.Notes)
		d.QuantityRequestID = res.request.ID
		d.UpdatedAt = now()
		return tx.UpdateDisplayRequest(ctx, d)
	})
	if err != nil {
		return DisplayRequest{}, QuantityRequest{}, err
	}
	s.displayDecided(ctx, actor, d)
	s.requestCommitted(ctx, actor, res)
	return d, res.request, nil
}

// RejectDisplayRequest declines a proposal; a reason is required.
func (s *Service) RejectDisplayRequest(ctx context.Context, actor shared.Actor, id string, input DecisionInput) (DisplayRequest, error) {
	if !actor.IsStaff() {
		return DisplayRequest{}, shared.ErrUnauthorized
	}
	if clean(input.Notes) == "" {
		return DisplayRequest{}, fmt.Errorf("requests: %w: rejection reason required", shared.ErrValidation)
	}
	var d DisplayRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetDisplayRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != DisplayPending {
			return fmt.Errorf("requests: %w: display request is %s", shared.ErrConflict, d.Status)
		}
		d.Status = DisplayRejected
		d.DecidedBy = actor.ID
		d.DecisionNotes = clean(input.Notes)
		d.UpdatedAt = now()
		return tx.UpdateDisplayRequest(ctx, d)
	})
	if err != nil {
		return DisplayRequest{}, err
	}
	s.displayDecided(ctx, actor, d)
	return d, nil
}

// GetDisplayRequest returns a display request visible to actor.
func (s *Service) GetDisplayRequest(ctx context.Context, actor shared.Actor, id string) (DisplayRequest, error) {
	d, err := s.repo.GetDisplayRequest(ctx, id)
	if err != nil {
		return DisplayRequest{}, err
	}
	if !actor.IsStaff() && !actor.ActsForSupplier(d.SupplierID) {
		return DisplayRequest{}, fmt.Errorf("display request %s: %w", id, shared.ErrNotFound)
	}
	return d, nil
}

// ListDisplayRequests lists proposals; suppliers see their own.
func (s *Service) ListDisplayRequests(ctx context.Context, actor shared.Actor, filter DisplayFilter) ([]DisplayRequest, shared.Pagination, error) {
	switch {
	case actor.IsStaff():
	case actor.Role == shared.RoleSupplier:
		filter.SupplierID = actor.SupplierID
	default:
		return nil, shared.Pagination{}, shared.ErrUnauthorized
	}
	out, total, err := s.repo.ListDisplayRequests(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) requestCommitted(ctx context.Context, actor shared.Actor, res mergeResult) {
	req := res.request
	if res.merged {
		s.cfg.Metrics.QuantityRequest("merged")
		s.record(ctx, actor, "quantity_request.merged", req.ID, map[string]any{"added": res.added, "total": req.RequestedQuantity})
		s.emit(ctx, "quantity_request.merged", req.ID, req)
		if s.cfg.Notifier != nil {
			s.cfg.Notifier.QuantityRequestMerged(ctx, req, res.previousRequester, actor.ID, res.added)
		}
		return
	}
	s.cfg.Metrics.QuantityRequest("created")
	s.record(ctx, actor, "quantity_request.created", req.ID, map[string]any{"quantity": req.RequestedQuantity})
	s.emit(ctx, "quantity_request.created", req.ID, req)
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.QuantityRequestCreated(ctx, req)
	}
}

func (s *Service) displayDecided(ctx context.Context, actor shared.Actor, d DisplayRequest) {
	s.record(ctx, actor, "display_request."+string(d.Status), d.ID, map[string]any{"notes": d.DecisionNotes})
	s.emit(ctx, "display_request."+string(d.Status), d.ID, d)
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.DisplayRequestDecided(ctx, d)
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, id string, meta map[string]any) {
	if s.cfg.Audit == nil {
		return
	}
	entity := "quantity_request"
	if strings.HasPrefix(action, "display_request.") {
		entity = "display_request"
	}
	if err := s.cfg.Audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: entity, EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("requests audit", slog.String("id", id), slog.Any("error", err))
	}
}

func (s *Service) emit(ctx context.Context, typ, id string, payload any) {
	if err := events.Emit(ctx, s.cfg.Events, events.TopicRequests, typ, id, payload); err != nil {
		s.logger.Warn("requests publish event", slog.String("id", id), slog.Any("error", err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

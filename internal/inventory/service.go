package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/supplyhub/supplyhub/internal/events"
	"github.com/supplyhub/supplyhub/internal/observability"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit   AuditPort
	Events  events.Publisher
	Catalog CatalogCache
	Metrics *observability.DomainMetrics
	Logger  *slog.Logger
}

// Service coordinates inventory operations.
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

// CreateItemInput describes a manually created item.
type CreateItemInput struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name" validate:"required,max=200"`
	SKU           string  `json:"sku" validate:"max=64"`
	Category      string  `json:"category" validate:"max=100"`
	Description   string  `json:"description"`
	Location      string  `json:"location"`
	Quantity      int     `json:"quantity" validate:"gte=0"`
	MinStockLevel int     `json:"minStockLevel" validate:"gte=0"`
	MaxStockLevel int     `json:"maxStockLevel" validate:"gte=0"`
	UnitPrice     float64 `json:"unitPrice" validate:"gte=0"`
	SupplierID    string  `json:"supplierId" validate:"required"`
	SupplierName  string  `json:"supplierName"`
}

// UpdateItemInput carries optional descriptive changes.
type UpdateItemInput struct {
	Name          *string  `json:"name" validate:"omitempty,max=200"`
	SKU           *string  `json:"sku" validate:"omitempty,max=64"`
	Category      *string  `json:"category"`
	Description   *string  `json:"description"`
	Location      *string  `json:"location"`
	MinStockLevel *int     `json:"minStockLevel" validate:"omitempty,gte=0"`
	MaxStockLevel *int     `json:"maxStockLevel" validate:"omitempty,gte=0"`
	UnitPrice     *float64 `json:"unitPrice" validate:"omitempty,gte=0"`
	// Reinstate clears a discontinued status.
	Reinstate bool `json:"reinstate"`
}

// DetailsInput is the curation step required before publishing.
type DetailsInput struct {
	SalePrice           *float64 `json:"salePrice" validate:"omitempty,gte=0"`
	CustomerDescription string   `json:"customerDescription" validate:"required"`
	Tags                []string `json:"tags" validate:"dive,max=40"`
}

// CatalogFilter narrows the customer catalog.
type CatalogFilter struct {
	Category string
	Search   string
	Page     int
	PerPage  int
}

// CatalogPage is a cached page of published items.
type CatalogPage struct {
	Items      []Item            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// CreateItem inserts an item, recording its opening balance as a movement.
func (s *Service) CreateItem(ctx context.Context, actor shared.Actor, input CreateItemInput) (Item, error) {
	if !actor.IsStaff() {
		return Item{}, shared.ErrUnauthorized
	}
	if strings.TrimSpace(input.Name) == "" || input.SupplierID == "" {
		return Item{}, fmt.Errorf("inventory: %w: name and supplier required", shared.ErrValidation)
	}
	if input.Quantity < 0 || input.MinStockLevel < 0 || input.UnitPrice < 0 {
		return Item{}, fmt.Errorf("inventory: %w: negative values not allowed", shared.ErrValidation)
	}
	if input.MaxStockLevel > 0 && input.MaxStockLevel < input.MinStockLevel {
		return Item{}, fmt.Errorf("inventory: %w: max stock level below min stock level", shared.ErrValidation)
	}
	at := now()
	item := Item{
		ID:            uuid.NewString(),
		ProductID:     input.ProductID,
		Name:          strings.TrimSpace(input.Name),
		SKU:           strings.TrimSpace(input.SKU),
		Category:      input.Category,
		Description:   input.Description,
		Location:      input.Location,
		Quantity:      input.Quantity,
		MinStockLevel: input.MinStockLevel,
		MaxStockLevel: input.MaxStockLevel,
		UnitPrice:     input.UnitPrice,
		SupplierID:    input.SupplierID,
		SupplierName:  input.SupplierName,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	item.refreshStatus()
	var movements []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, dup, err := FindExistingItem(ctx, tx, item.Name, item.SupplierID, item.SKU); err != nil {
			return err
		} else if dup {
			return fmt.Errorf("inventory: %w: %s already stocked for this supplier", shared.ErrConflict, item.Name)
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		if item.Quantity > 0 {
			mv := Movement{ID: uuid.NewString(), ItemID: item.ID, Type: MovementIn, Quantity: item.Quantity, Reason: "Opening balance", Actor: actor.ID, CreatedAt: at}
			if err := tx.InsertMovement(ctx, mv); err != nil {
				return err
			}
			movements = append(movements, mv)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.StockChanged(ctx, actor, "created", []Item{item}, movements)
	return item, nil
}

// GetItem returns a single item. Suppliers see their own items and other
// actors only see published ones.
func (s *Service) GetItem(ctx context.Context, actor shared.Actor, id string) (Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	switch {
	case actor.IsStaff():
	case actor.Role == shared.RoleSupplier && actor.SupplierID == item.SupplierID:
	case item.IsPublished:
	default:
		return Item{}, fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

// ListItems lists items; supplier actors only see their own.
func (s *Service) ListItems(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Item, shared.Pagination, error) {
	switch {
	case actor.IsStaff():
	case actor.Role == shared.RoleSupplier:
		filter.SupplierID = actor.SupplierID
	default:
		return nil, shared.Pagination{}, shared.ErrUnauthorized
	}
	items, total, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// UpdateItem edits descriptive fields and thresholds.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, id string, input UpdateItemInput) (Item, error) {
	if !actor.IsStaff() {
		return Item{}, shared.ErrUnauthorized
	}
	return s.mutate(ctx, actor, id, "updated", func(item *Item) error {
		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return fmt.Errorf("inventory: %w: name required", shared.ErrValidation)
			}
			item.Name = strings.TrimSpace(*input.Name)
		}
		if input.SKU != nil {
			item.SKU = strings.TrimSpace(*input.SKU)
		}
		if input.Category != nil {
			item.Category = *input.Category
		}
		if input.Description != nil {
			item.Description = *input.Description
		}
		if input.Location != nil {
			item.Location = *input.Location
		}
		if input.MinStockLevel != nil {
			item.MinStockLevel = *input.MinStockLevel
		}
		if input.MaxStockLevel != nil {
			item.MaxStockLevel = *input.MaxStockLevel
		}
		if item.MinStockLevel < 0 || (item.MaxStockLevel > 0 && item.MaxStockLevel < item.MinStockLevel) {
			return fmt.Errorf("inventory: %w: invalid stock thresholds", shared.ErrValidation)
		}
		if input.UnitPrice != nil {
			if *input.UnitPrice < 0 {
				return fmt.Errorf("inventory: %w: unit price must be >= 0", shared.ErrValidation)
			}
			item.UnitPrice = *input.UnitPrice
		}
		if input.Reinstate && item.Status == StatusDiscontinued {
			item.Status = ""
		}
		item.refreshStatus()
		if item.IsPublished && !item.Publishable() {
			item.IsPublished = false
		}
		return nil
	})
}

// AdjustStock runs a ledger adjustment in its own transaction.
func (s *Service) AdjustStock(ctx context.Context, actor shared.Actor, input AdjustInput) (Item, Movement, error) {
	if !actor.IsStaff() {
		return Item{}, Movement{}, shared.ErrUnauthorized
	}
	input.Actor = actor.ID
	var (
		item Item
		mv   Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, mv, err = AdjustStock(ctx, tx, input)
		return err
	})
	if err != nil {
		return Item{}, Movement{}, err
	}
	s.StockChanged(ctx, actor, "adjusted", []Item{item}, []Movement{mv})
	return item, mv, nil
}

// SaveDetails stores curation fields and marks the item as curated.
func (s *Service) SaveDetails(ctx context.Context, actor shared.Actor, id string, input DetailsInput) (Item, error) {
	if !actor.IsStaff() {
		return Item{}, shared.ErrUnauthorized
	}
	if strings.TrimSpace(input.CustomerDescription) == "" {
		return Item{}, fmt.Errorf("inventory: %w: customer description required", shared.ErrValidation)
	}
	if input.SalePrice != nil && *input.SalePrice < 0 {
		return Item{}, fmt.Errorf("inventory: %w: sale price must be >= 0", shared.ErrValidation)
	}
	return s.mutate(ctx, actor, id, "curated", func(item *Item) error {
		item.SalePrice = input.SalePrice
		item.CustomerDescription = strings.TrimSpace(input.CustomerDescription)
		item.Tags = normalizeTags(input.Tags)
		item.DetailsSaved = true
		if item.IsPublished && !item.Publishable() {
			item.IsPublished = false
		}
		return nil
	})
}

// Publish makes a curated, priced item visible in the catalog.
func (s *Service) Publish(ctx context.Context, actor shared.Actor, id string) (Item, error) {
	if !actor.IsStaff() {
		return Item{}, shared.ErrUnauthorized
	}
	return s.mutate(ctx, actor, id, "published", func(item *Item) error {
		if !item.DetailsSaved {
			return fmt.Errorf("inventory: %w: save product details before publishing", shared.ErrValidation)
		}
		if item.EffectivePrice() <= 0 {
			return fmt.Errorf("inventory: %w: a positive price is required before publishing", shared.ErrValidation)
		}
		if item.Status == StatusDiscontinued {
			return fmt.Errorf("inventory: %w: discontinued items cannot be published", shared.ErrConflict)
		}
		item.IsPublished = true
		return nil
	})
}

// Unpublish hides an item from the catalog.
func (s *Service) Unpublish(ctx context.Context, actor shared.Actor, id string) (Item, error) {
	if !actor.IsStaff() {
		return Item{}, shared.ErrUnauthorized
	}
	return s.mutate(ctx, actor, id, "unpublished", func(item *Item) error {
		item.IsPublished = false
		return nil
	})
}

// Discontinue marks an item as discontinued and withdraws it from sale.
func (s *Service) Discontinue(ctx context.Context, actor shared.Actor, id string) (Item, error) {
	if !actor.IsStaff() {
		return Item{}, shared.ErrUnauthorized
	}
	return s.mutate(ctx, actor, id, "discontinued", func(item *Item) error {
		item.Status = StatusDiscontinued
		item.IsPublished = false
		return nil
	})
}

// DeleteItem removes an item that no pending request or open order references.
func (s *Service) DeleteItem(ctx context.Context, actor shared.Actor, id string) error {
	if !actor.IsAdmin() {
		return shared.ErrUnauthorized
	}
	var deleted Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if item.ProductID != "" {
			pending, err := tx.CountPendingRequests(ctx, item.ProductID, item.SupplierID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return fmt.Errorf("inventory: %w: %d pending quantity request(s) reference %s", shared.ErrConflict, pending, item.Name)
			}
		}
		open, err := tx.CountOpenOrders(ctx, item.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("inventory: %w: %d open order(s) reference %s", shared.ErrConflict, open, item.Name)
		}
		deleted = item
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.StockChanged(ctx, actor, "deleted", []Item{deleted}, nil)
	return nil
}

// Movements lists the ledger history of an item, newest first.
func (s *Service) Movements(ctx context.Context, itemID string, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, itemID, limit)
}

// Catalog returns published, non-discontinued items through the catalog cache.
func (s *Service) Catalog(ctx context.Context, filter CatalogFilter) (CatalogPage, error) {
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	loader := func(ctx context.Context) (any, error) {
		published := true
		items, total, err := s.repo.ListItems(ctx, ListFilter{
			Published: &published,
			Category:  filter.Category,
			Search:    filter.Search,
			Page:      filter.Page,
			PerPage:   filter.PerPage,
		})
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []Item{}
		}
		return CatalogPage{Items: items, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
	}
	var page CatalogPage
	if s.cfg.Catalog == nil {
		value, err := loader(ctx)
		if err != nil {
			return CatalogPage{}, err
		}
		return value.(CatalogPage), nil
	}
	key, err := s.cfg.Catalog.Key(ctx, "page", strings.ToLower(filter.Category), strings.ToLower(filter.Search), fmt.Sprint(filter.Page), fmt.Sprint(filter.PerPage))
	if err != nil {
		return CatalogPage{}, err
	}
	if err := s.cfg.Catalog.FetchJSON(ctx, key, &page, loader); err != nil {
		return CatalogPage{}, err
	}
	return page, nil
}

// StockChanged runs post-commit side effects for items changed by this or
// another service: metrics, audit, events and catalog invalidation.
func (s *Service) StockChanged(ctx context.Context, actor shared.Actor, action string, items []Item, movements []Movement) {
	for _, mv := range movements {
		s.cfg.Metrics.StockMovement(string(mv.Type))
	}
	for _, item := range items {
		if s.cfg.Audit != nil {
			meta := map[string]any{"quantity": item.Quantity, "reserved": item.ReservedQuantity, "status": item.Status}
			if err := s.cfg.Audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: "inventory." + action, Entity: "inventory_item", EntityID: item.ID, Meta: meta}); err != nil {
				s.logger.Warn("inventory audit", slog.String("item_id", item.ID), slog.Any("error", err))
			}
		}
		if err := events.Emit(ctx, s.cfg.Events, events.TopicInventory, "item."+action, item.ID, item); err != nil {
			s.logger.Warn("inventory publish event", slog.String("item_id", item.ID), slog.Any("error", err))
		}
	}
	if s.cfg.Catalog != nil && len(items) > 0 {
		if err := s.cfg.Catalog.Bump(ctx); err != nil {
			s.logger.Warn("inventory catalog bump", slog.Any("error", err))
		}
	}
}

func (s *Service) mutate(ctx context.Context, actor shared.Actor, id, action string, fn func(*Item) error) (Item, error) {
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&item); err != nil {
			return err
		}
		item.UpdatedAt = now()
		return tx.SaveItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	s.StockChanged(ctx, actor, action, []Item{item}, nil)
	return item, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

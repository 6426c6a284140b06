package inventory

import (
	"strings"
	"time"
)

// Status is the stock state of an item.
type Status string

const (
	StatusInStock      Status = "in_stock"
	StatusLowStock     Status = "low_stock"
	StatusOutOfStock   Status = "out_of_stock"
	StatusDiscontinued Status = "discontinued"
)

// MovementType enumerates ledger movements.
type MovementType string

const (
	// MovementIn adds units.
	MovementIn MovementType = "in"
	// MovementOut removes units.
	MovementOut MovementType = "out"
	// MovementAdjustment sets the absolute quantity.
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut || t == MovementAdjustment
}

// Item is a stocked product line.
type Item struct {
	ID                  string    `json:"id"`
	ProductID           string    `json:"productId,omitempty"`
	Name                string    `json:"name"`
	SKU                 string    `json:"sku"`
	Category            string    `json:"category"`
	Description         string    `json:"description"`
	Location            string    `json:"location"`
	Quantity            int       `json:"quantity"`
	ReservedQuantity    int       `json:"reservedQuantity"`
	MinStockLevel       int       `json:"minStockLevel"`
	MaxStockLevel       int       `json:"maxStockLevel"`
	UnitPrice           float64   `json:"unitPrice"`
	SalePrice           *float64  `json:"salePrice,omitempty"`
	CustomerDescription string    `json:"customerDescription,omitempty"`
	Tags                []string  `json:"tags,omitempty"`
	DetailsSaved        bool      `json:"detailsSaved"`
	IsPublished         bool      `json:"isPublished"`
	Status              Status    `json:"status"`
	SupplierID          string    `json:"supplierId"`
	SupplierName        string    `json:"supplierName"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Available is the quantity that may still be reserved.
func (i Item) Available() int {
	return i.Quantity - i.ReservedQuantity
}

// EffectivePrice is the customer facing price.
func (i Item) EffectivePrice() float64 {
	if i.SalePrice != nil && *i.SalePrice > 0 {
		return *i.SalePrice
	}
	return i.UnitPrice
}

// Publishable reports whether curation allows catalog visibility.
func (i Item) Publishable() bool {
	return i.DetailsSaved && i.EffectivePrice() > 0
}

// Movement is an immutable ledger record.
type Movement struct {
	ID        string       `json:"id"`
	ItemID    string       `json:"itemId"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	Reason    string       `json:"reason"`
	Actor     string       `json:"actor"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// DeriveStatus maps quantity against the minimum stock level.
func DeriveStatus(quantity, minStockLevel int) Status {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= minStockLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// refreshStatus recomputes the status, leaving discontinued items alone.
func (i *Item) refreshStatus() {
	if i.Status == StatusDiscontinued {
		return
	}
	i.Status = DeriveStatus(i.Quantity, i.MinStockLevel)
}

// ListFilter narrows item listings.
type ListFilter struct {
	SupplierID string
	Status     Status
	Published  *bool
	Category   string
	Search     string
	Page       int
	PerPage    int
}

// Matches applies the filter to a single item. Repositories without a query
// language use it directly.
func (f ListFilter) Matches(item Item) bool {
	if f.SupplierID != "" && item.SupplierID != f.SupplierID {
		return false
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.Published != nil && item.IsPublished != *f.Published {
		return false
	}
	if f.Category != "" && !strings.EqualFold(item.Category, f.Category) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(item.Name), needle) && !strings.Contains(strings.ToLower(item.SKU), needle) {
			return false
		}
	}
	return true
}

// Reason recorded when an approved quantity request restocks an item.
const ReasonSupplyReplenishment = "Stock replenishment from approved quantity request"

// Reason recorded when an administrative cancellation returns stock.
const ReasonOrderCancellation = "Order cancellation - stock restoration"

package directory

import (
	"time"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// Supplier is a vendor account.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is an entry of a supplier's own catalog. It is not stock.
type Product struct {
	ID          string    `json:"id"`
	SupplierID  string    `json:"supplierId"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	UnitPrice   float64   `json:"unitPrice"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// User is the public profile of an account.
type User struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       shared.Role `json:"role"`
	SupplierID string      `json:"supplierId,omitempty"`
	IsActive   bool        `json:"isActive"`
}

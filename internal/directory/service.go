package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// Repository is the lookup store behind Service.
type Repository interface {
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsersByRole(ctx context.Context, role shared.Role) ([]User, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, supplierID string) ([]Product, error)
	InsertProduct(ctx context.Context, p Product) error
}

// Service answers directory lookups.
type Service struct {
	repo Repository
}

// NewService constructs Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Supplier returns a supplier by id.
func (s *Service) Supplier(ctx context.Context, id string) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// Suppliers lists every supplier.
func (s *Service) Suppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// User returns a user profile by id.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Product returns a supplier product by id.
func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// SupplierProducts lists the products a supplier offers.
func (s *Service) SupplierProducts(ctx context.Context, supplierID string) ([]Product, error) {
	if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, supplierID)
}

// StaffEmails returns addresses of active admin and warehouse users.
func (s *Service) StaffEmails(ctx context.Context) ([]string, error) {
	var out []string
	for _, role := range []shared.Role{shared.RoleAdmin, shared.RoleWarehouse} {
		users, err := s.repo.ListUsersByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.IsActive && u.Email != "" {
				out = append(out, u.Email)
			}
		}
	}
	return out, nil
}

// ProductInput describes a new supplier product.
type ProductInput struct {
	SupplierID  string  `json:"supplierId"`
	Name        string  `json:"name" validate:"required,max=200"`
	SKU         string  `json:"sku" validate:"max=64"`
	Category    string  `json:"category" validate:"max=100"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

// CreateProduct adds a product to a supplier catalog. Suppliers may only add
// to their own catalog.
func (s *Service) CreateProduct(ctx context.Context, actor shared.Actor, input ProductInput) (Product, error) {
	if actor.Role == shared.RoleSupplier {
		input.SupplierID = actor.SupplierID
	} else if !actor.IsAdmin() {
		return Product{}, shared.ErrUnauthorized
	}
	if input.SupplierID == "" || strings.TrimSpace(input.Name) == "" {
		return Product{}, fmt.Errorf("directory: %w: supplier and name required", shared.ErrValidation)
	}
	if _, err := s.repo.GetSupplier(ctx, input.SupplierID); err != nil {
		return Product{}, err
	}
	at := time.Now().UTC()
	p := Product{
		ID:          uuid.NewString(),
		SupplierID:  input.SupplierID,
		Name:        strings.TrimSpace(input.Name),
		SKU:         strings.TrimSpace(input.SKU),
		Category:    input.Category,
		Description: input.Description,
		UnitPrice:   input.UnitPrice,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := s.repo.InsertProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

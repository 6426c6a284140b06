package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplyhub/supplyhub/internal/platform/db"
	"github.com/supplyhub/supplyhub/internal/shared"
)

// PGRepository reads the directory tables.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const (
	supplierColumns = `id, name, email, phone, address, is_active, created_at`
	productColumns  = `id, supplier_id, name, sku, category, description, unit_price::float8, created_at, updated_at`
	userColumns     = `id, name, email, role, supplier_id, is_active`
)

func (r *PGRepository) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
	return s, db.NotFound(err, "supplier "+id)
}

func (r *PGRepository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSupplier)
}

func (r *PGRepository) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return u, db.NotFound(err, "user "+id)
}

func (r *PGRepository) ListUsersByRole(ctx context.Context, role shared.Role) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 ORDER BY name`, string(role))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

func (r *PGRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM supplier_products WHERE id=$1`, id))
	return p, db.NotFound(err, "product "+id)
}

func (r *PGRepository) ListProducts(ctx context.Context, supplierID string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM supplier_products WHERE supplier_id=$1 ORDER BY name`, supplierID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProduct)
}

func (r *PGRepository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO supplier_products (id, supplier_id, name, sku, category, description, unit_price, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, p.ID, p.SupplierID, p.Name, p.SKU, p.Category, p.Description, p.UnitPrice, p.CreatedAt, p.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("directory: %w: product %s already exists", shared.ErrConflict, p.Name)
	}
	return err
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.IsActive, &s.CreatedAt)
	return s, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Name, &p.SKU, &p.Category, &p.Description, &p.UnitPrice, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.SupplierID, &u.IsActive); err != nil {
		return User{}, err
	}
	u.Role = shared.Role(role)
	return u, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplyhub/supplyhub/internal/platform/db"
	"github.com/supplyhub/supplyhub/internal/shared"
)

const itemColumns = `id, product_id, name, sku, category, description, location, quantity, reserved_quantity,
min_stock_level, max_stock_level, unit_price::float8, sale_price::float8, customer_description, tags,
details_saved, is_published, status, supplier_id, supplier_name, created_at, updated_at`

// Querier is satisfied by both the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction. Other packages embed it to run
// ledger operations inside their own transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetItem loads an item without locking.
func (r *Repository) GetItem(ctx context.Context, id string) (Item, error) {
	return getItem(ctx, r.pool, id, false)
}

// ListItems returns a filtered page and the total match count.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	where, args := itemWhere(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := `SELECT ` + itemColumns + ` FROM inventory_items` + where +
		` ORDER BY name ASC, id ASC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// CountItems counts items matching filter.
func (r *Repository) CountItems(ctx context.Context, filter ListFilter) (int, error) {
	where, args := itemWhere(filter)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+where, args...).Scan(&total)
	return total, err
}

// ListMovements returns the latest movements of an item.
func (r *Repository) ListMovements(ctx context.Context, itemID string, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, movement_type, quantity, reason, actor, notes, created_at
FROM stock_movements WHERE item_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Movement{}
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.ItemID, &typ, &m.Quantity, &m.Reason, &m.Actor, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id string) (Item, error) {
	return getItem(ctx, r.tx, id, true)
}

func (r *txRepository) ListSupplierItemsForUpdate(ctx context.Context, supplierID string) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE supplier_id=$1 ORDER BY created_at ASC FOR UPDATE`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_items (id, product_id, name, sku, category, description, location,
quantity, reserved_quantity, min_stock_level, max_stock_level, unit_price, sale_price, customer_description, tags,
details_saved, is_published, status, supplier_id, supplier_name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		item.ID, item.ProductID, item.Name, item.SKU, item.Category, item.Description, item.Location,
		item.Quantity, item.ReservedQuantity, item.MinStockLevel, item.MaxStockLevel, item.UnitPrice, item.SalePrice,
		item.CustomerDescription, tagsOrEmpty(item.Tags), item.DetailsSaved, item.IsPublished, string(item.Status),
		item.SupplierID, item.SupplierName, item.CreatedAt, item.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("inventory: %w: item already exists", shared.ErrConflict)
	}
	return err
}

func (r *txRepository) SaveItem(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET name=$2, sku=$3, category=$4, description=$5, location=$6,
quantity=$7, reserved_quantity=$8, min_stock_level=$9, max_stock_level=$10, unit_price=$11, sale_price=$12,
customer_description=$13, tags=$14, details_saved=$15, is_published=$16, status=$17, supplier_name=$18, updated_at=$19
WHERE id=$1`,
		item.ID, item.Name, item.SKU, item.Category, item.Description, item.Location,
		item.Quantity, item.ReservedQuantity, item.MinStockLevel, item.MaxStockLevel, item.UnitPrice, item.SalePrice,
		item.CustomerDescription, tagsOrEmpty(item.Tags), item.DetailsSaved, item.IsPublished, string(item.Status),
		item.SupplierName, item.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory item %s: %w", item.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) DeleteItem(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (id, item_id, movement_type, quantity, reason, actor, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, m.ID, m.ItemID, string(m.Type), m.Quantity, m.Reason, m.Actor, m.Notes, m.CreatedAt)
	return err
}

func (r *txRepository) CountPendingRequests(ctx context.Context, productID, supplierID string) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM quantity_requests WHERE product_id=$1 AND supplier_id=$2 AND status='pending'`, productID, supplierID).Scan(&n)
	return n, err
}

func (r *txRepository) CountOpenOrders(ctx context.Context, itemID string) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders
WHERE status IN ('pending','approved','shipped') AND items @> jsonb_build_array(jsonb_build_object('productId', $1::text))`, itemID).Scan(&n)
	return n, err
}

func getItem(ctx context.Context, q Querier, id string, lock bool) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	item, err := scanItem(q.QueryRow(ctx, query, id))
	if err != nil {
		return Item{}, db.NotFound(err, "inventory item "+id)
	}
	return item, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var status string
	err := row.Scan(&item.ID, &item.ProductID, &item.Name, &item.SKU, &item.Category, &item.Description, &item.Location,
		&item.Quantity, &item.ReservedQuantity, &item.MinStockLevel, &item.MaxStockLevel, &item.UnitPrice, &item.SalePrice,
		&item.CustomerDescription, &item.Tags, &item.DetailsSaved, &item.IsPublished, &status,
		&item.SupplierID, &item.SupplierName, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.Status = Status(status)
	return item, nil
}

func itemWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.SupplierID != "" {
		add("supplier_id = ?", filter.SupplierID)
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Published != nil {
		add("is_published = ?", *filter.Published)
	}
	if filter.Category != "" {
		add("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.Search != "" {
		add("(name ILIKE ? OR sku ILIKE ?)", "%"+filter.Search+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

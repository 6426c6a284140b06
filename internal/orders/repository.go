package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/platform/db"
	"github.com/supplyhub/supplyhub/internal/shared"
)

const orderColumns = `id, order_number, user_id, requested_by, items, status, total_amount::float8, notes,
cancellation_reason, created_at, updated_at`

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

// GetOrder loads an order without locking.
func (r *Repository) GetOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// ListOrders returns a filtered page, newest first, and the total count.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	where, args := orderWhere(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+
		` ORDER BY created_at DESC, id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, order)
	}
	return out, total, rows.Err()
}

// CountByStatus groups orders by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, r.tx, id, true)
}

func (r *txRepository) InsertOrder(ctx context.Context, order Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO orders (id, order_number, user_id, requested_by, items, status, total_amount,
notes, cancellation_reason, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		order.ID, order.OrderNumber, order.UserID, order.RequestedBy, items, string(order.Status), order.TotalAmount,
		order.Notes, order.CancellationReason, order.CreatedAt, order.UpdatedAt)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("orders: %w: order number %s already used", shared.ErrConflict, order.OrderNumber)
	}
	return err
}

func (r *txRepository) UpdateOrder(ctx context.Context, order Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET items=$2, status=$3, total_amount=$4, notes=$5,
cancellation_reason=$6, updated_at=$7 WHERE id=$1`,
		order.ID, items, string(order.Status), order.TotalAmount, order.Notes, order.CancellationReason, order.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", order.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) DeleteOrder(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func getOrder(ctx context.Context, q inventory.Querier, id string, lock bool) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		return Order{}, db.NotFound(err, "order "+id)
	}
	return order, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		items  []byte
		status string
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.RequestedBy, &items, &status, &o.TotalAmount, &o.Notes,
		&o.CancellationReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("orders: decode items of %s: %w", o.ID, err)
	}
	return o, nil
}

func orderWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.UserID != "" {
		add("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Search != "" {
		add("order_number ILIKE ?", "%"+filter.Search+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

package requests

import (
	"context"
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

const quantityColumns = `id, product_id, product_name, product_sku, category, description, unit_price::float8,
supplier_id, supplier_name, requested_quantity, approved_quantity, status, display_request_id, requested_by,
requester_name, merge_count, contributors, notes, response_notes, responded_by, responded_at, inventory_item_id, created_at, updated_at`

const displayColumns = `id, supplier_id, supplier_name, product_id, product_name, sku, category, description,
unit_price::float8, status, requested_by, decided_by, decision_notes, quantity_request_id, created_at, updated_at`

// Repository persists quantity and display requests in PostgreSQL.
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
		return errors.New("requests repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

func (r *Repository) GetQuantityRequest(ctx context.Context, id string) (QuantityRequest, error) {
	q, err := scanQuantity(r.pool.QueryRow(ctx, `SELECT `+quantityColumns+` FROM quantity_requests WHERE id=$1`, id))
	if err != nil {
		return QuantityRequest{}, db.NotFound(err, "quantity request "+id)
	}
	return q, nil
}

func (r *Repository) ListQuantityRequests(ctx context.Context, filter ListFilter) ([]QuantityRequest, int, error) {
	var w where
	if filter.SupplierID != "" {
		w.add("supplier_id = ?", filter.SupplierID)
	}
	if filter.RequestedBy != "" {
		w.add("requested_by = ?", filter.RequestedBy)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	return list(ctx, r.pool, "quantity_requests", quantityColumns, w, filter.Page, filter.PerPage, scanQuantity)
}

func (r *Repository) GetDisplayRequest(ctx context.Context, id string) (DisplayRequest, error) {
	d, err := scanDisplay(r.pool.QueryRow(ctx, `SELECT `+displayColumns+` FROM display_requests WHERE id=$1`, id))
	if err != nil {
		return DisplayRequest{}, db.NotFound(err, "display request "+id)
	}
	return d, nil
}

func (r *Repository) ListDisplayRequests(ctx context.Context, filter DisplayFilter) ([]DisplayRequest, int, error) {
	var w where
	if filter.SupplierID != "" {
		w.add("supplier_id = ?", filter.SupplierID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	return list(ctx, r.pool, "display_requests", displayColumns, w, filter.Page, filter.PerPage, scanDisplay)
}

func (r *txRepository) FindPendingQuantityRequest(ctx context.Context, productID, supplierID string) (QuantityRequest, bool, error) {
	q, err := scanQuantity(r.tx.QueryRow(ctx, `SELECT `+quantityColumns+` FROM quantity_requests
WHERE product_id=$1 AND supplier_id=$2 AND status='pending' FOR UPDATE`, productID, supplierID))
	if errors.Is(err, pgx.ErrNoRows) {
		return QuantityRequest{}, false, nil
	}
	if err != nil {
		return QuantityRequest{}, false, err
	}
	return q, true, nil
}

func (r *txRepository) GetQuantityRequestForUpdate(ctx context.Context, id string) (QuantityRequest, error) {
	q, err := scanQuantity(r.tx.QueryRow(ctx, `SELECT `+quantityColumns+` FROM quantity_requests WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return QuantityRequest{}, db.NotFound(err, "quantity request "+id)
	}
	return q, nil
}

func (r *txRepository) InsertQuantityRequest(ctx context.Context, q QuantityRequest) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO quantity_requests (`+quantityColumnsPlain+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`, quantityArgs(q)...)
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("requests: %w: a pending request already exists for %s", shared.ErrConflict, q.ProductName)
	}
	return err
}

func (r *txRepository) UpdateQuantityRequest(ctx context.Context, q QuantityRequest) error {
	tag, err := r.tx.Exec(ctx, `UPDATE quantity_requests SET requested_quantity=$2, approved_quantity=$3, status=$4,
merge_count=$5, notes=$6, response_notes=$7, responded_by=$8, responded_at=$9, inventory_item_id=$10, updated_at=$11,
contributors=$12 WHERE id=$1`, q.ID, q.RequestedQuantity, q.ApprovedQuantity, string(q.Status), q.MergeCount, q.Notes, q.ResponseNotes,
		q.RespondedBy, q.RespondedAt, q.InventoryItemID, q.UpdatedAt, contributors(q))
	return affected(tag.RowsAffected(), err, "quantity request "+q.ID)
}

func (r *txRepository) DeleteQuantityRequest(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM quantity_requests WHERE id=$1`, id)
	return affected(tag.RowsAffected(), err, "quantity request "+id)
}

func (r *txRepository) GetDisplayRequestForUpdate(ctx context.Context, id string) (DisplayRequest, error) {
	d, err := scanDisplay(r.tx.QueryRow(ctx, `SELECT `+displayColumns+` FROM display_requests WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return DisplayRequest{}, db.NotFound(err, "display request "+id)
	}
	return d, nil
}

func (r *txRepository) InsertDisplayRequest(ctx context.Context, d DisplayRequest) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO display_requests (id, supplier_id, supplier_name, product_id, product_name, sku,
category, description, unit_price, status, requested_by, decided_by, decision_notes, quantity_request_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		d.ID, d.SupplierID, d.SupplierName, d.ProductID, d.ProductName, d.SKU, d.Category, d.Description, d.UnitPrice,
		string(d.Status), d.RequestedBy, d.DecidedBy, d.DecisionNotes, d.QuantityRequestID, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *txRepository) UpdateDisplayRequest(ctx context.Context, d DisplayRequest) error {
	tag, err := r.tx.Exec(ctx, `UPDATE display_requests SET status=$2, decided_by=$3, decision_notes=$4,
quantity_request_id=$5, updated_at=$6 WHERE id=$1`, d.ID, string(d.Status), d.DecidedBy, d.DecisionNotes, d.QuantityRequestID, d.UpdatedAt)
	return affected(tag.RowsAffected(), err, "display request "+d.ID)
}

var quantityColumnsPlain = strings.ReplaceAll(quantityColumns, "::float8", "")

func quantityArgs(q QuantityRequest) []any {
	return []any{q.ID, q.ProductID, q.ProductName, q.ProductSKU, q.Category, q.Description, q.UnitPrice,
		q.SupplierID, q.SupplierName, q.RequestedQuantity, q.ApprovedQuantity, string(q.Status), q.DisplayRequestID,
		q.RequestedBy, q.RequesterName, q.MergeCount, contributors(q), q.Notes, q.ResponseNotes, q.RespondedBy, q.RespondedAt,
		q.InventoryItemID, q.CreatedAt, q.UpdatedAt}
}

// contributors never binds NULL; the column is NOT NULL.
func contributors(q QuantityRequest) []string {
	if q.Contributors == nil {
		return []string{}
	}
	return q.Contributors
}

func scanQuantity(row pgx.Row) (QuantityRequest, error) {
	var q QuantityRequest
	var status string
	err := row.Scan(&q.ID, &q.ProductID, &q.ProductName, &q.ProductSKU, &q.Category, &q.Description, &q.UnitPrice,
		&q.SupplierID, &q.SupplierName, &q.RequestedQuantity, &q.ApprovedQuantity, &status, &q.DisplayRequestID,
		&q.RequestedBy, &q.RequesterName, &q.MergeCount, &q.Contributors, &q.Notes, &q.ResponseNotes, &q.RespondedBy, &q.RespondedAt,
		&q.InventoryItemID, &q.CreatedAt, &q.UpdatedAt)
	q.Status = Status(status)
	return q, err
}

func scanDisplay(row pgx.Row) (DisplayRequest, error) {
	var d DisplayRequest
	var status string
	err := row.Scan(&d.ID, &d.SupplierID, &d.SupplierName, &d.ProductID, &d.ProductName, &d.SKU, &d.Category,
		&d.Description, &d.UnitPrice, &status, &d.RequestedBy, &d.DecidedBy, &d.DecisionNotes, &d.QuantityRequestID,
		&d.CreatedAt, &d.UpdatedAt)
	d.Status = DisplayStatus(status)
	return d, err
}

func affected(n int64, err error, what string) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, shared.ErrNotFound)
	}
	return nil
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func list[T any](ctx context.Context, pool *pgxpool.Pool, table, columns string, w where, page, perPage int, scan func(pgx.Row) (T, error)) ([]T, int, error) {
	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage = shared.NormalizePage(page, perPage)
	args := append(append([]any(nil), w.args...), perPage, shared.Offset(page, perPage))
	rows, err := pool.Query(ctx, `SELECT `+columns+` FROM `+table+w.sql()+
		` ORDER BY created_at DESC, id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

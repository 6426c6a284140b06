// Package memory implements every repository port in process. Transactions
// are serialized and roll back to a snapshot on error.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/supplyhub/supplyhub/internal/audit"
	"github.com/supplyhub/supplyhub/internal/auth"
	"github.com/supplyhub/supplyhub/internal/directory"
	"github.com/supplyhub/supplyhub/internal/inventory"
	"github.com/supplyhub/supplyhub/internal/orders"
	"github.com/supplyhub/supplyhub/internal/requests"
	"github.com/supplyhub/supplyhub/internal/shared"
)

type state struct {
	items     map[string]inventory.Item
	movements []inventory.Movement
	orders    map[string]orders.Order
	quantity  map[string]requests.QuantityRequest
	display   map[string]requests.DisplayRequest
	suppliers map[string]directory.Supplier
	products  map[string]directory.Product
	users     map[string]auth.User
	idem      map[string]time.Time
	audit     []shared.AuditLog
}

func newState() *state {
	return &state{
		items:     map[string]inventory.Item{},
		orders:    map[string]orders.Order{},
		quantity:  map[string]requests.QuantityRequest{},
		display:   map[string]requests.DisplayRequest{},
		suppliers: map[string]directory.Supplier{},
		products:  map[string]directory.Product{},
		users:     map[string]auth.User{},
		idem:      map[string]time.Time{},
	}
}

func (s *state) clone() *state {
	return &state{
		items:     maps.Clone(s.items),
		movements: slices.Clone(s.movements),
		orders:    maps.Clone(s.orders),
		quantity:  maps.Clone(s.quantity),
		display:   maps.Clone(s.display),
		suppliers: maps.Clone(s.suppliers),
		products:  maps.Clone(s.products),
		users:     maps.Clone(s.users),
		idem:      maps.Clone(s.idem),
		audit:     slices.Clone(s.audit),
	}
}

// Store keeps all state in memory.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// update runs fn against a working copy and keeps it only when fn succeeds.
func (s *Store) update(ctx context.Context, fn func(*tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(*state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// Inventory returns the inventory repository view.
func (s *Store) Inventory() InventoryRepo { return InventoryRepo{s} }

// Orders returns the orders repository view.
func (s *Store) Orders() OrdersRepo { return OrdersRepo{s} }

// Requests returns the requests repository view.
func (s *Store) Requests() RequestsRepo { return RequestsRepo{s} }

// Audit returns the audit timeline view.
func (s *Store) Audit() AuditRepo { return AuditRepo{s} }

// InventoryRepo implements inventory.RepositoryPort.
type InventoryRepo struct{ s *Store }

func (r InventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.update(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r InventoryRepo) GetItem(ctx context.Context, id string) (inventory.Item, error) {
	var (
		item inventory.Item
		err  error
	)
	r.s.read(func(st *state) { item, err = (&tx{st: st}).GetItemForUpdate(ctx, id) })
	return item, err
}

func (r InventoryRepo) ListItems(ctx context.Context, filter inventory.ListFilter) ([]inventory.Item, int, error) {
	var matched []inventory.Item
	r.s.read(func(st *state) {
		for _, item := range st.items {
			if filter.Matches(item) {
				matched = append(matched, copyItem(item))
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return page(matched, filter.Page, filter.PerPage)
}

func (r InventoryRepo) ListMovements(ctx context.Context, itemID string, limit int) ([]inventory.Movement, error) {
	out := []inventory.Movement{}
	r.s.read(func(st *state) {
		for i := len(st.movements) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			if st.movements[i].ItemID == itemID {
				out = append(out, st.movements[i])
			}
		}
	})
	return out, nil
}

// OrdersRepo implements orders.RepositoryPort.
type OrdersRepo struct{ s *Store }

func (r OrdersRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	return r.s.update(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r OrdersRepo) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	var (
		o   orders.Order
		err error
	)
	r.s.read(func(st *state) { o, err = (&tx{st: st}).GetOrderForUpdate(ctx, id) })
	return o, err
}

func (r OrdersRepo) ListOrders(ctx context.Context, filter orders.ListFilter) ([]orders.Order, int, error) {
	var matched []orders.Order
	r.s.read(func(st *state) {
		for _, o := range st.orders {
			if filter.Matches(o) {
				matched = append(matched, copyOrder(o))
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, filter.Page, filter.PerPage)
}

// RequestsRepo implements requests.RepositoryPort.
type RequestsRepo struct{ s *Store }

func (r RequestsRepo) WithTx(ctx context.Context, fn func(context.Context, requests.TxRepository) error) error {
	return r.s.update(ctx, func(t *tx) error { return fn(ctx, t) })
}

func (r RequestsRepo) GetQuantityRequest(ctx context.Context, id string) (requests.QuantityRequest, error) {
	var (
		q   requests.QuantityRequest
		err error
	)
	r.s.read(func(st *state) { q, err = (&tx{st: st}).GetQuantityRequestForUpdate(ctx, id) })
	return q, err
}

func (r RequestsRepo) ListQuantityRequests(ctx context.Context, filter requests.ListFilter) ([]requests.QuantityRequest, int, error) {
	var matched []requests.QuantityRequest
	r.s.read(func(st *state) {
		for _, q := range st.quantity {
			if filter.Matches(q) {
				matched = append(matched, copyQuantity(q))
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, filter.Page, filter.PerPage)
}

func (r RequestsRepo) GetDisplayRequest(ctx context.Context, id string) (requests.DisplayRequest, error) {
	var (
		d   requests.DisplayRequest
		err error
	)
	r.s.read(func(st *state) { d, err = (&tx{st: st}).GetDisplayRequestForUpdate(ctx, id) })
	return d, err
}

func (r RequestsRepo) ListDisplayRequests(ctx context.Context, filter requests.DisplayFilter) ([]requests.DisplayRequest, int, error) {
	var matched []requests.DisplayRequest
	r.s.read(func(st *state) {
		for _, d := range st.display {
			if filter.Matches(d) {
				matched = append(matched, d)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, filter.Page, filter.PerPage)
}

// GetSupplier implements directory.Repository.
func (s *Store) GetSupplier(ctx context.Context, id string) (directory.Supplier, error) {
	var (
		v  directory.Supplier
		ok bool
	)
	s.read(func(st *state) { v, ok = st.suppliers[id] })
	if !ok {
		return directory.Supplier{}, fmt.Errorf("supplier %s: %w", id, shared.ErrNotFound)
	}
	return v, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]directory.Supplier, error) {
	out := []directory.Supplier{}
	s.read(func(st *state) {
		for _, v := range st.suppliers {
			out = append(out, v)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	var (
		u  auth.User
		ok bool
	)
	s.read(func(st *state) { u, ok = st.users[id] })
	if !ok {
		return directory.User{}, fmt.Errorf("user %s: %w", id, shared.ErrNotFound)
	}
	return profile(u), nil
}

func (s *Store) ListUsersByRole(ctx context.Context, role shared.Role) ([]directory.User, error) {
	out := []directory.User{}
	s.read(func(st *state) {
		for _, u := range st.users {
			if u.Role == role {
				out = append(out, profile(u))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (directory.Product, error) {
	var (
		p  directory.Product
		ok bool
	)
	s.read(func(st *state) { p, ok = st.products[id] })
	if !ok {
		return directory.Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, supplierID string) ([]directory.Product, error) {
	out := []directory.Product{}
	s.read(func(st *state) {
		for _, p := range st.products {
			if p.SupplierID == supplierID {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertProduct(ctx context.Context, p directory.Product) error {
	return s.update(ctx, func(t *tx) error {
		if _, ok := t.st.products[p.ID]; ok {
			return fmt.Errorf("directory: %w: product %s already exists", shared.ErrConflict, p.ID)
		}
		t.st.products[p.ID] = p
		return nil
	})
}

// PutSupplier adds or replaces a supplier.
func (s *Store) PutSupplier(ctx context.Context, v directory.Supplier) error {
	return s.update(ctx, func(t *tx) error {
		t.st.suppliers[v.ID] = v
		return nil
	})
}

// PutUser adds or replaces an account.
func (s *Store) PutUser(ctx context.Context, u auth.User) error {
	return s.update(ctx, func(t *tx) error {
		for id, other := range t.st.users {
			if id != u.ID && strings.EqualFold(other.Email, u.Email) {
				return fmt.Errorf("user %s: %w: email taken", u.Email, shared.ErrConflict)
			}
		}
		t.st.users[u.ID] = u
		return nil
	})
}

// FindByEmail implements auth.Repository.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	var found *auth.User
	s.read(func(st *state) {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
	}
	return found, nil
}

// CheckAndInsert implements the idempotency port.
func (s *Store) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" || module == "" {
		return errors.New("idempotency key and module required")
	}
	return s.update(ctx, func(t *tx) error {
		if _, ok := t.st.idem[key]; ok {
			return shared.ErrIdempotencyConflict
		}
		t.st.idem[key] = time.Now()
		return nil
	})
}

// Delete removes an idempotency key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.update(ctx, func(t *tx) error {
		delete(t.st.idem, key)
		return nil
	})
}

// Cleanup drops idempotency keys older than olderThan.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	var n int64
	cutoff := time.Now().Add(-olderThan)
	err := s.update(ctx, func(t *tx) error {
		for k, at := range t.st.idem {
			if at.Before(cutoff) {
				delete(t.st.idem, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// Record implements the audit port.
func (s *Store) Record(ctx context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	return s.update(ctx, func(t *tx) error {
		t.st.audit = append(t.st.audit, log)
		return nil
	})
}

// AuditTrail returns recorded audit entries, oldest first.
func (s *Store) AuditTrail() []shared.AuditLog {
	var out []shared.AuditLog
	s.read(func(st *state) { out = slices.Clone(st.audit) })
	return out
}

// AuditRepo implements audit.Repository.
type AuditRepo struct{ s *Store }

func (r AuditRepo) Window(ctx context.Context, f audit.Filters, offset, limit int) ([]audit.Entry, error) {
	all, _ := r.All(ctx, f)
	start := min(max(offset, 0), len(all))
	end := start + min(max(limit, 0), len(all)-start)
	return all[start:end], nil
}

func (r AuditRepo) All(_ context.Context, f audit.Filters) ([]audit.Entry, error) {
	out := []audit.Entry{}
	r.s.read(func(st *state) {
		for i := len(st.audit) - 1; i >= 0; i-- {
			if f.Match(st.audit[i]) {
				out = append(out, audit.FromLog(st.audit[i]))
			}
		}
	})
	return out, nil
}

func profile(u auth.User) directory.User {
	return directory.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, SupplierID: u.SupplierID, IsActive: u.IsActive}
}

func page[T any](all []T, p, perPage int) ([]T, int, error) {
	start, end := shared.Window(p, perPage, len(all))
	out := make([]T, 0, end-start)
	return append(out, all[start:end]...), len(all), nil
}

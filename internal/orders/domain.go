package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusShipped},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: nil,
	StatusCancelled: nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Open reports whether the order still holds or consumes stock.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusApproved || s == StatusShipped
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the states reachable from s.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// Line is one product line of an order. ProductID references the
// inventory item.
type Line struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	Supplier    string  `json:"supplier,omitempty"`
}

// Order is a customer order.
type Order struct {
	ID                 string    `json:"id"`
	OrderNumber        string    `json:"orderNumber"`
	UserID             string    `json:"userId"`
	RequestedBy        string    `json:"requestedBy"`
	Items              []Line    `json:"items"`
	Status             Status    `json:"status"`
	TotalAmount        float64   `json:"totalAmount"`
	Notes              string    `json:"notes,omitempty"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// OwnedBy reports whether actor placed the order.
func (o Order) OwnedBy(actor shared.Actor) bool {
	return actor.ID != "" && o.UserID == actor.ID
}

func (o *Order) recalculate() {
	var total float64
	for i := range o.Items {
		o.Items[i].TotalPrice = float64(o.Items[i].Quantity) * o.Items[i].UnitPrice
		total += o.Items[i].TotalPrice
	}
	o.TotalAmount = total
}

// LineInput requests qty units of an inventory item.
type LineInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	UserID  string
	Status  Status
	Search  string
	Page    int
	PerPage int
}

// Matches applies the filter to a single order.
func (f ListFilter) Matches(o Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(o.OrderNumber), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// TransitionError lists orders that cannot move to Target.
type TransitionError struct {
	Target       Status
	OrderNumbers []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("orders: cannot move %s to %s", strings.Join(e.OrderNumbers, ", "), e.Target)
}

func (e *TransitionError) Unwrap() error {
	return shared.ErrInvalidTransition
}

// NewOrderNumber returns ORD-<yyyymmddhhmmss>-<XXXXXXXX>. The suffix is 32
// random bits so replicas sharing a database do not collide within a second.
func NewOrderNumber(at time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%s-%X", at.UTC().Format("20060102150405"), id[:4])
}

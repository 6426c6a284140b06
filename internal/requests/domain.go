package requests

import (
	"strings"
	"time"
)

// Status is the state of a quantity request.
type Status string

const (
	StatusPending         Status = "pending"
	StatusApprovedFull    Status = "approved_full"
	StatusApprovedPartial Status = "approved_partial"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// Approved reports whether s is one of the approval outcomes.
func (s Status) Approved() bool {
	return s == StatusApprovedFull || s == StatusApprovedPartial
}

// DisplayStatus is the state of a display request.
type DisplayStatus string

const (
	DisplayPending  DisplayStatus = "pending"
	DisplayAccepted DisplayStatus = "accepted"
	DisplayRejected DisplayStatus = "rejected"
)

// QuantityRequest asks a supplier for more stock of a product.
type QuantityRequest struct {
	ID                string     `json:"id"`
	ProductID         string     `json:"productId"`
	ProductName       string     `json:"productName"`
	ProductSKU        string     `json:"productSku,omitempty"`
	Category          string     `json:"category,omitempty"`
	Description       string     `json:"description,omitempty"`
	UnitPrice         float64    `json:"unitPrice"`
	SupplierID        string     `json:"supplierId"`
	SupplierName      string     `json:"supplierName"`
	RequestedQuantity int        `json:"requestedQuantity"`
	ApprovedQuantity  *int       `json:"approvedQuantity,omitempty"`
	Status            Status     `json:"status"`
	DisplayRequestID  string     `json:"displayRequestId,omitempty"`
	RequestedBy       string     `json:"requestedBy"`
	RequesterName     string     `json:"requesterName"`
	MergeCount        int        `json:"mergeCount"`
	Contributors      []string   `json:"contributors,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	ResponseNotes     string     `json:"responseNotes,omitempty"`
	RespondedBy       string     `json:"respondedBy,omitempty"`
	RespondedAt       *time.Time `json:"respondedAt,omitempty"`
	InventoryItemID   string     `json:"inventoryItemId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Requesters lists the original requester followed by staff whose requests
// were merged in.
func (q QuantityRequest) Requesters() []string {
	out := make([]string, 0, 1+len(q.Contributors))
	if q.RequestedBy != "" {
		out = append(out, q.RequestedBy)
	}
	for _, id := range q.Contributors {
		if id != "" && id != q.RequestedBy {
			out = append(out, id)
		}
	}
	return out
}

// DisplayRequest is a supplier proposal to list a product.
type DisplayRequest struct {
	ID                string        `json:"id"`
	SupplierID        string        `json:"supplierId"`
	SupplierName      string        `json:"supplierName"`
	ProductID         string        `json:"productId"`
	ProductName       string        `json:"productName"`
	SKU               string        `json:"sku,omitempty"`
	Category          string        `json:"category,omitempty"`
	Description       string        `json:"description,omitempty"`
	UnitPrice         float64       `json:"unitPrice"`
	Status            DisplayStatus `json:"status"`
	RequestedBy       string        `json:"requestedBy"`
	DecidedBy         string        `json:"decidedBy,omitempty"`
	DecisionNotes     string        `json:"decisionNotes,omitempty"`
	QuantityRequestID string        `json:"quantityRequestId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// ListFilter narrows quantity request listings.
type ListFilter struct {
	SupplierID  string
	RequestedBy string
	Status      Status
	Page        int
	PerPage     int
}

// Matches applies the filter to one request.
func (f ListFilter) Matches(q QuantityRequest) bool {
	if f.SupplierID != "" && q.SupplierID != f.SupplierID {
		return false
	}
	if f.RequestedBy != "" && q.RequestedBy != f.RequestedBy {
		return false
	}
	return f.Status == "" || q.Status == f.Status
}

// DisplayFilter narrows display request listings.
type DisplayFilter struct {
	SupplierID string
	Status     DisplayStatus
	Page       int
	PerPage    int
}

// Matches applies the filter to one display request.
func (f DisplayFilter) Matches(d DisplayRequest) bool {
	if f.SupplierID != "" && d.SupplierID != f.SupplierID {
		return false
	}
	return f.Status == "" || d.Status == f.Status
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

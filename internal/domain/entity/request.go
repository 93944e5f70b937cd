package entity

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// RequestKind names one of the request tables sharing the approval lifecycle
type RequestKind string

const (
	KindExpense       RequestKind = "expense"
	KindPurchaseOrder RequestKind = "purchase_order"
)

// Kinds lists every request kind in display order
var Kinds = []RequestKind{KindExpense, KindPurchaseOrder}

// ParseKind accepts the singular kind or its URL collection name
func ParseKind(s string) (RequestKind, error) {
	switch s {
	case "expense", "expenses":
		return KindExpense, nil
	case "purchase_order", "purchase_orders", "purchase-orders":
		return KindPurchaseOrder, nil
	}
	return "", fmt.Errorf("unknown request kind: %q", s)
}

// Table returns the backing table name
func (k RequestKind) Table() string {
	switch k {
	case KindExpense:
		return "expenses"
	case KindPurchaseOrder:
		return "purchase_orders"
	}
	return ""
}

// Path returns the dashboard link segment for the kind
func (k RequestKind) Path() string {
	switch k {
	case KindExpense:
		return "expenses"
	case KindPurchaseOrder:
		return "purchase-orders"
	}
	return string(k)
}

// Noun is the human label used in notification messages
func (k RequestKind) Noun() string {
	if k == KindPurchaseOrder {
		return "purchase order"
	}
	return "expense"
}

// Request is the capability the approval workflow needs from any request kind
type Request interface {
	GetID() string
	GetKind() RequestKind
	GetAmount() float64
	GetStatus() workflow.State
	GetSubmitterID() string
	GetCreatedAt() time.Time
	Describe() string
}

// RequestSummary is the kind-agnostic view of a request. Kind-specific
// fields travel in Details and are never consulted by workflow logic.
type RequestSummary struct {
	ID          string                 `json:"id"`
	Kind        RequestKind            `json:"kind"`
	Amount      float64                `json:"amount"`
	Status      workflow.State         `json:"status"`
	SubmitterID string                 `json:"submitter_id"`
	Title       string                 `json:"title"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (r *RequestSummary) GetID() string             { return r.ID }
func (r *RequestSummary) GetKind() RequestKind      { return r.Kind }
func (r *RequestSummary) GetAmount() float64        { return r.Amount }
func (r *RequestSummary) GetStatus() workflow.State { return r.Status }
func (r *RequestSummary) GetSubmitterID() string    { return r.SubmitterID }
func (r *RequestSummary) GetCreatedAt() time.Time   { return r.CreatedAt }
func (r *RequestSummary) Describe() string          { return r.Title }

// WithStatus returns a copy of the summary carrying a new status
func (r *RequestSummary) WithStatus(s workflow.State) *RequestSummary {
	cp := *r
	cp.Status = s
	return &cp
}

// Summarize converts any request into its kind-agnostic view
func Summarize(r Request) *RequestSummary {
	if s, ok := r.(*RequestSummary); ok {
		return s
	}
	s := &RequestSummary{
		ID:          r.GetID(),
		Kind:        r.GetKind(),
		Amount:      r.GetAmount(),
		Status:      r.GetStatus(),
		SubmitterID: r.GetSubmitterID(),
		Title:       r.Describe(),
		CreatedAt:   r.GetCreatedAt(),
	}
	switch v := r.(type) {
	case *ExpenseClaim:
		s.Details = map[string]interface{}{
			"category":    v.Category,
			"description": v.Description,
			"receipt_url": v.ReceiptURL,
		}
	case *PurchaseOrder:
		s.Details = map[string]interface{}{
			"vendor_name":  v.VendorName,
			"item_details": v.ItemDetails,
		}
	}
	return s
}

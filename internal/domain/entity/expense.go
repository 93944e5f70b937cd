package entity

import (
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// Expense categories offered on the submission form
const (
	CategoryTravel   = "travel"
	CategoryMeals    = "meals"
	CategorySupplies = "supplies"
	CategorySoftware = "software"
	CategoryGeneral  = "general"
)

// Categories lists every accepted expense category
var Categories = []interface{}{
	CategoryTravel,
	CategoryMeals,
	CategorySupplies,
	CategorySoftware,
	CategoryGeneral,
}

// ExpenseClaim is an employee reimbursement request backed by a receipt
type ExpenseClaim struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Amount      float64        `json:"amount"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	ReceiptURL  string         `json:"receipt_url"`
	Status      workflow.State `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (e *ExpenseClaim) GetID() string             { return e.ID }
func (e *ExpenseClaim) GetKind() RequestKind      { return KindExpense }
func (e *ExpenseClaim) GetAmount() float64        { return e.Amount }
func (e *ExpenseClaim) GetStatus() workflow.State { return e.Status }
func (e *ExpenseClaim) GetSubmitterID() string    { return e.UserID }
func (e *ExpenseClaim) GetCreatedAt() time.Time   { return e.CreatedAt }
func (e *ExpenseClaim) Describe() string          { return e.Title }

// PurchaseOrder is a request to buy from a vendor
type PurchaseOrder struct {
	ID          string         `json:"id"`
	RequesterID string         `json:"requester_id"`
	VendorName  string         `json:"vendor_name"`
	ItemDetails string         `json:"item_details"`
	TotalCost   float64        `json:"total_cost"`
	Status      workflow.State `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (p *PurchaseOrder) GetID() string             { return p.ID }
func (p *PurchaseOrder) GetKind() RequestKind      { return KindPurchaseOrder }
func (p *PurchaseOrder) GetAmount() float64        { return p.TotalCost }
func (p *PurchaseOrder) GetStatus() workflow.State { return p.Status }
func (p *PurchaseOrder) GetSubmitterID() string    { return p.RequesterID }
func (p *PurchaseOrder) GetCreatedAt() time.Time   { return p.CreatedAt }
func (p *PurchaseOrder) Describe() string          { return p.VendorName }

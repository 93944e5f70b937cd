package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
)

// tableSpec maps the kind-agnostic summary onto one request table
type tableSpec struct {
	table     string
	submitter string
	amount    string
	title     string
	details   []string
}

var tables = map[entity.RequestKind]tableSpec{
	entity.KindExpense: {
		table:     "expenses",
		submitter: "user_id",
		amount:    "amount",
		title:     "title",
		details:   []string{"category", "description", "receipt_url"},
	},
	entity.KindPurchaseOrder: {
		table:     "purchase_orders",
		submitter: "requester_id",
		amount:    "total_cost",
		title:     "vendor_name",
		details:   []string{"vendor_name", "item_details"},
	},
}

func (s tableSpec) columns() string {
	cols := []string{"id", s.submitter, s.amount, "status", s.title, "created_at"}
	return strings.Join(append(cols, s.details...), ", ")
}

// RequestRepository implements port.RequestRepository over both request tables
type RequestRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqldb.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

func tableFor(kind entity.RequestKind) (tableSpec, error) {
	s, ok := tables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("unknown request kind: %q", kind)
	}
	return s, nil
}

// Get retrieves one request, or nil when it does not exist
func (r *RequestRepository) Get(ctx context.Context, kind entity.RequestKind, id string) (*entity.RequestSummary, error) {
	s, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", s.columns(), s.table)
	row := r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(query), id)

	summary, err := scanSummary(row, kind, s)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return summary, nil
}

// List returns matching requests newest first
func (r *RequestRepository) List(ctx context.Context, kind entity.RequestKind, filter port.RequestFilter) ([]*entity.RequestSummary, error) {
	s, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	where, args := s.where(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at DESC, id", s.columns(), s.table, where)
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.String("kind", string(kind)), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*entity.RequestSummary
	for rows.Next() {
		summary, err := scanSummary(rows, kind, s)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// CompareAndSwapStatus updates the status only while the row still holds
// `from` or one of its legacy aliases
func (r *RequestRepository) CompareAndSwapStatus(ctx context.Context, kind entity.RequestKind, id string, from, to workflow.State) error {
	s, err := tableFor(kind)
	if err != nil {
		return err
	}

	aliases := from.Aliases()
	args := make([]interface{}, 0, len(aliases)+2)
	args = append(args, string(to), id)
	for _, a := range aliases {
		args = append(args, string(a))
	}

	query := fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ? AND status IN (%s)", s.table, placeholders(len(aliases)))
	result, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.String("kind", string(kind)),
			zap.String("id", id),
			zap.String("to", string(to)),
			zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return port.ErrStaleStatus
	}
	return nil
}

// CreateExpense inserts a new expense claim
func (r *RequestRepository) CreateExpense(ctx context.Context, e *entity.ExpenseClaim) error {
	query := `
		INSERT INTO expenses (
			id, user_id, title, amount, category, description, receipt_url, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query),
		e.ID,
		e.UserID,
		e.Title,
		e.Amount,
		e.Category,
		e.Description,
		e.ReceiptURL,
		string(e.Status),
		e.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.String("id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// CreatePurchaseOrder inserts a new purchase order
func (r *RequestRepository) CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			id, requester_id, vendor_name, item_details, total_cost, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now()
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query),
		po.ID,
		po.RequesterID,
		po.VendorName,
		po.ItemDetails,
		po.TotalCost,
		string(po.Status),
		po.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order", zap.String("id", po.ID), zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}
	return nil
}

// SumAmount totals the amount column over matching rows
func (r *RequestRepository) SumAmount(ctx context.Context, kind entity.RequestKind, filter port.RequestFilter) (float64, error) {
	s, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	where, args := s.where(filter)
	query := fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM %s%s", s.amount, s.table, where)

	var total float64
	if err := r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum %s: %w", kind, err)
	}
	return total, nil
}

// Count returns the number of matching rows
func (r *RequestRepository) Count(ctx context.Context, kind entity.RequestKind, filter port.RequestFilter) (int, error) {
	s, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	where, args := s.where(filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table, where)

	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

func (s tableSpec) where(f port.RequestFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.SubmitterID != "" {
		clauses = append(clauses, s.submitter+" = ?")
		args = append(args, f.SubmitterID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if !f.CreatedBefore.IsZero() {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.CreatedBefore.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scanner, kind entity.RequestKind, s tableSpec) (*entity.RequestSummary, error) {
	var (
		summary entity.RequestSummary
		status  string
	)
	details := make([]sql.NullString, len(s.details))
	dest := []interface{}{
		&summary.ID,
		&summary.SubmitterID,
		&summary.Amount,
		&status,
		&summary.Title,
		&summary.CreatedAt,
	}
	for i := range details {
		dest = append(dest, &details[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	summary.Kind = kind
	summary.Status = workflow.State(status)
	summary.Details = make(map[string]interface{}, len(details))
	for i, col := range s.details {
		summary.Details[col] = details[i].String
	}
	return &summary, nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)

package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// ErrStaleStatus is returned by CompareAndSwapStatus when the row no longer
// holds the expected source status.
var ErrStaleStatus = errors.New("request status changed concurrently")

// RequestFilter narrows a request listing. Zero values mean "no constraint".
type RequestFilter struct {
	SubmitterID   string
	Statuses      []workflow.State
	CreatedBefore time.Time
	Limit         int
}

// RequestRepository is the record store for every request kind
type RequestRepository interface {
	// Get returns nil, nil when the request does not exist
	Get(ctx context.Context, kind entity.RequestKind, id string) (*entity.RequestSummary, error)
	// List returns requests newest first
	List(ctx context.Context, kind entity.RequestKind, filter RequestFilter) ([]*entity.RequestSummary, error)
	// CompareAndSwapStatus moves the row to `to` only if it still holds `from`
	// (or an alias of it). Returns ErrStaleStatus when no row matched.
	CompareAndSwapStatus(ctx context.Context, kind entity.RequestKind, id string, from, to workflow.State) error
	CreateExpense(ctx context.Context, e *entity.ExpenseClaim) error
	CreatePurchaseOrder(ctx context.Context, po *entity.PurchaseOrder) error
	// SumAmount totals the amount column of matching requests
	SumAmount(ctx context.Context, kind entity.RequestKind, filter RequestFilter) (float64, error)
	Count(ctx context.Context, kind entity.RequestKind, filter RequestFilter) (int, error)
}

// ProfileRepository stores user profiles and their roles
type ProfileRepository interface {
	Create(ctx context.Context, p *entity.Profile) error
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	GetByEmail(ctx context.Context, email string) (*entity.Profile, error)
	// ListOrderedByEmail returns every profile sorted by email
	ListOrderedByEmail(ctx context.Context) ([]*entity.Profile, error)
	ListByRole(ctx context.Context, role workflow.Role) ([]*entity.Profile, error)
	UpdateRole(ctx context.Context, id string, role workflow.Role) error
	CountByRole(ctx context.Context) (map[workflow.Role]int, error)
}

// NotificationRepository stores in-app notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	// Latest returns the newest notifications for a user, newest first
	Latest(ctx context.Context, userID string, limit int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// HistoryRepository stores the audit trail of request actions
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.HistoryEntry) error
	ListByRequest(ctx context.Context, kind entity.RequestKind, requestID string) ([]*entity.HistoryEntry, error)
}

// PushSubscriptionRepository stores device endpoints for push delivery
type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, s *entity.PushSubscription) error
	DeleteByEndpoint(ctx context.Context, userID, endpoint string) error
	ListForUser(ctx context.Context, userID string) ([]*entity.PushSubscription, error)
	ListForRole(ctx context.Context, role workflow.Role) ([]*entity.PushSubscription, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

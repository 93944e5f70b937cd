package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
	"github.com/garyjia/approval-workflow/internal/infrastructure/persistence/sqldb"
)

// PushSubscriptionRepository implements port.PushSubscriptionRepository
type PushSubscriptionRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewPushSubscriptionRepository creates a new push subscription repository
func NewPushSubscriptionRepository(db *sqldb.DB, logger *zap.Logger) port.PushSubscriptionRepository {
	return &PushSubscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores the subscription, taking over the endpoint if it already exists
func (r *PushSubscriptionRepository) Upsert(ctx context.Context, s *entity.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			p256dh = excluded.p256dh,
			auth = excluded.auth
	`
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query),
		s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to save push subscription", zap.String("user_id", s.UserID), zap.Error(err))
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint removes the user's subscription for an endpoint
func (r *PushSubscriptionRepository) DeleteByEndpoint(ctx context.Context, userID, endpoint string) error {
	query := "DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?"
	if _, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query), userID, endpoint); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// ListForUser returns every device registered by a user
func (r *PushSubscriptionRepository) ListForUser(ctx context.Context, userID string) ([]*entity.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = ?
		ORDER BY created_at
	`
	return r.list(ctx, query, userID)
}

// ListForRole returns every device registered by holders of a role
func (r *PushSubscriptionRepository) ListForRole(ctx context.Context, role workflow.Role) ([]*entity.PushSubscription, error) {
	query := `
		SELECT s.id, s.user_id, s.endpoint, s.p256dh, s.auth, s.created_at
		FROM push_subscriptions s
		JOIN profiles p ON p.id = s.user_id
		WHERE p.role = ?
		ORDER BY s.created_at
	`
	return r.list(ctx, query, string(role))
}

func (r *PushSubscriptionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.PushSubscription, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list push subscriptions", zap.Error(err))
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*entity.PushSubscription
	for rows.Next() {
		var s entity.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.PushSubscriptionRepository = (*PushSubscriptionRepository)(nil)

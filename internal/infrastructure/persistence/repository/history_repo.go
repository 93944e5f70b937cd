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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqldb.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, h *entity.HistoryEntry) error {
	query := `
		INSERT INTO request_history (
			kind, request_id, actor_id, actor_role, action,
			from_status, to_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}

	err := r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(query),
		string(h.Kind),
		h.RequestID,
		h.ActorID,
		string(h.ActorRole),
		string(h.Action),
		string(h.FromStatus),
		string(h.ToStatus),
		h.CreatedAt.UTC(),
	).Scan(&h.ID)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("request_id", h.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// ListByRequest returns the trail of one request oldest first
func (r *HistoryRepository) ListByRequest(ctx context.Context, kind entity.RequestKind, requestID string) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, kind, request_id, actor_id, actor_role, action,
			from_status, to_status, created_at
		FROM request_history
		WHERE kind = ? AND request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), string(kind), requestID)
	if err != nil {
		r.logger.Error("Failed to get history", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.HistoryEntry
	for rows.Next() {
		var h entity.HistoryEntry
		var kindCol, role, action, fromSt, toSt string
		if err := rows.Scan(&h.ID, &kindCol, &h.RequestID, &h.ActorID, &role, &action, &fromSt, &toSt, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		h.Kind = entity.RequestKind(kindCol)
		h.ActorRole = workflow.Role(role)
		h.Action = workflow.Trigger(action)
		h.FromStatus = workflow.State(fromSt)
		h.ToStatus = workflow.State(toSt)
		records = append(records, &h)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
